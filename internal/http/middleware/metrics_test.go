package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/rooms/:roomId", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/rooms/:roomId", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	serve(r, httptest.NewRequest(http.MethodGet, "/rooms/r1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/rooms/r2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/empty", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/rooms/:roomId", "200")); got != baseOK+2 {
		t.Fatalf("route counter = %v, want %v", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != base404+1 {
		t.Fatalf("404 counter = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}

func TestMetrics_WebsocketUpgradeSkipsInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/ws", func(c *gin.Context) {
		if got := testutil.ToFloat64(httpInflight); got != 0 {
			t.Errorf("websocket session counted as inflight: %v", got)
		}
		c.Status(http.StatusBadRequest)
	})

	base := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws", "400"))
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	serve(r, req)
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws", "400")); got != base+1 {
		t.Fatalf("upgrade counter = %v, want %v", got, base+1)
	}
}
