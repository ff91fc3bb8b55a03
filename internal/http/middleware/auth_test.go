package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-marketplace-chat/internal/auth"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

func TestAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := auth.NewVerifier("test-secret", "marketplace-api")
	good, err := v.Sign(domain.Identity{UserID: "u1", Role: domain.RoleSeller}, "s1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := v.Sign(domain.Identity{UserID: "u1", Role: domain.RoleSeller}, "s1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.Use(RequestID(), Authenticate(v, "accessToken"))
	r.GET("/me", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			t.Error("identity missing after Authenticate")
		}
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "role": id.Role, "uid": c.GetString("userID")})
	})

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		msg    string
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized, "authentication required"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, "invalid access token"},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, "access token has expired"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "accessToken", Value: good}) }, http.StatusOK, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := serve(r, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			m := decode(t, w)
			if tc.status == http.StatusOK {
				if m["user"] != "u1" || m["role"] != "seller" || m["uid"] != "u1" {
					t.Fatalf("body = %v", m)
				}
				return
			}
			if m["code"] != "unauthorized" || m["message"] != tc.msg || m["request_id"] == "" {
				t.Fatalf("body = %v", m)
			}
		})
	}
}

func TestIdentityFrom_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := IdentityFrom(c); ok {
		t.Fatal("empty context reported an identity")
	}
	c.Set(ctxKeyIdentity, domain.Identity{})
	if _, ok := IdentityFrom(c); ok {
		t.Fatal("blank identity accepted")
	}
}
