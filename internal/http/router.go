// Package httpapi wires the HTTP transport (Gin) to the chat services, the
// realtime hub, middleware, and route handlers. It owns middleware ordering:
// tracing, correlation IDs, logging with redaction, panic recovery, metrics,
// CORS, security headers, compression, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/docs"
	"github.com/tbourn/go-marketplace-chat/internal/config"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/http/handlers"
	"github.com/tbourn/go-marketplace-chat/internal/http/middleware"
	"github.com/tbourn/go-marketplace-chat/internal/realtime"
	"github.com/tbourn/go-marketplace-chat/internal/repo"
	"github.com/tbourn/go-marketplace-chat/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// roomRepoShim adapts the repository free functions to services.RoomRepo.
type roomRepoShim struct{}

// GetStoreWithOwner proxies repo.GetStoreWithOwner.
func (roomRepoShim) GetStoreWithOwner(ctx context.Context, db *gorm.DB, storeID string) (*domain.Store, error) {
	return repo.GetStoreWithOwner(ctx, db, storeID)
}

// GetUserWithProfile proxies repo.GetUserWithProfile.
func (roomRepoShim) GetUserWithProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.User, error) {
	return repo.GetUserWithProfile(ctx, db, userID)
}

// FindRoom proxies repo.FindRoom.
func (roomRepoShim) FindRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.FindRoom(ctx, db, storeID, buyerID)
}

// CreateRoom proxies repo.CreateRoom.
func (roomRepoShim) CreateRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.CreateRoom(ctx, db, storeID, buyerID)
}

// GetRoom proxies repo.GetRoom.
func (roomRepoShim) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	return repo.GetRoom(ctx, db, id)
}

// RegisterRoutes attaches all middleware and endpoints to the given engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs with redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers, gzip
//
// The chat API then runs Authenticate before the idempotency validator and
// the rate limiter, both of which key on the caller's identity. The
// websocket route authenticates inside its handler.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, verifier middleware.TokenVerifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskParams: []string{cfg.Auth.CookieName},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Web posture
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	wsPath := joinPath(apiBase, "/chat/ws")
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{wsPath, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	roomSvc := services.NewRoomService(db, roomRepoShim{})
	msgSvc := &services.MessageService{
		DB:               db,
		MaxMessageRunes:  cfg.Chat.MessageMaxRunes,
		MaxAttachmentLen: cfg.Chat.AttachmentMaxLen,
		IdempotencyTTL:   cfg.IdempotencyTTL,
	}
	inboxSvc := &services.InboxService{DB: db, PreviewMaxRunes: cfg.Chat.PreviewMaxRunes}

	h := handlers.New(roomSvc, msgSvc, inboxSvc, hub)
	session := &realtime.Handler{
		Rooms:    roomSvc,
		Messages: msgSvc,
		Hub:      hub,
		WS:       cfg.WS,
		PageSize: cfg.Chat.HistoryPageSize,
		Log:      log.Logger.With().Str("component", "realtime").Logger(),
	}
	ws := handlers.NewWSHandler(verifier, cfg.Auth.CookieName, session, cfg.WS.WriteWait, cfg.WS.AllowedOrigins)

	// Upgrades are limited per client address before any token is read.
	upgrades := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, apiBase)
	api.GET("/chat/ws", upgrades.Handler(), ws.Serve)

	chat := api.Group("/chat",
		middleware.Authenticate(verifier, cfg.Auth.CookieName),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		rl.Handler(),
	)
	{
		chat.GET("/init/:storeId", h.InitChat)
		chat.GET("/history/:storeId", h.ChatHistory)
		chat.GET("/my-chats", h.MyChats)
		chat.GET("/room/:roomId", h.RoomDetails)
		chat.POST("/room/:roomId/messages", h.PostMessage)
		chat.POST("/room/:roomId/read", h.MarkRead)
	}
}

// idempotencyLookup reports whether (user, room, key) already produced a
// message. A miss is not an error; other failures surface to the validator,
// which logs them and treats the request as new.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, roomID, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// corsMiddleware allows any origin when none are configured. With an
// allowlist the request Origin is echoed and credentials (the auth cookie)
// are permitted.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	expose := []string{middleware.HeaderRequestID, "Content-Length", "ETag", "Idempotent-Replay", "Retry-After"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
