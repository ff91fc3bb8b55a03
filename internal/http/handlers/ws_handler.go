// Websocket upgrade handler.
//
// GET /chat/ws upgrades to the realtime protocol. Authentication happens here
// rather than in middleware: a client without a valid token is still upgraded,
// receives one error event, and is closed, so browser clients (which cannot
// read the body of a failed upgrade) learn why they were rejected.
package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-marketplace-chat/internal/auth"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/http/middleware"
	"github.com/tbourn/go-marketplace-chat/internal/realtime"
)

// Session serves one authenticated websocket connection until it closes.
type Session interface {
	Serve(ctx context.Context, conn *websocket.Conn, id domain.Identity)
}

// WSHandler upgrades and authenticates realtime connections.
type WSHandler struct {
	verifier   middleware.TokenVerifier
	cookieName string
	session    Session
	writeWait  time.Duration
	upgrader   websocket.Upgrader
}

// NewWSHandler builds the upgrade handler. allowedOrigins restricts the
// Origin header of browser clients; empty allows any origin.
func NewWSHandler(v middleware.TokenVerifier, cookieName string, s Session, writeWait time.Duration, allowedOrigins []string) *WSHandler {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &WSHandler{
		verifier:   v,
		cookieName: cookieName,
		session:    s,
		writeWait:  writeWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Serve godoc
// @ID          chatWebsocket
// @Summary     Realtime chat connection
// @Description Upgrades to a websocket speaking JSON frames {"event": "...", "data": {...}}. The access token is read from the auth cookie, the Authorization header, or the token query parameter.
// @Tags        Chat
// @Param       token  query  string  false  "Access token (for clients that cannot set headers)"
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     403  {string}  string  "Origin not allowed"
// @Router      /chat/ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	id, authErr := h.verifier.Verify(auth.TokenFromRequest(c.Request, h.cookieName))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	if authErr != nil {
		lg.Info().Err(authErr).Msg("websocket rejected")
		realtime.Reject(conn, h.writeWait, "authentication failed")
		return
	}
	middleware.SetIdentity(c, id)
	h.session.Serve(c.Request.Context(), conn, id)
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and, when allowed is non-empty, only the listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
