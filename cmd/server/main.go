// Command server runs the marketplace chat API: REST endpoints for
// conversations and a websocket endpoint for realtime delivery.
//
// @title                      Marketplace Chat API
// @version                    1.0
// @description                Buyer to store conversations over REST and websocket.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-marketplace-chat/internal/auth"
	"github.com/tbourn/go-marketplace-chat/internal/config"
	httpapi "github.com/tbourn/go-marketplace-chat/internal/http"
	"github.com/tbourn/go-marketplace-chat/internal/observability"
	"github.com/tbourn/go-marketplace-chat/internal/realtime"
	"github.com/tbourn/go-marketplace-chat/internal/repo"
	"github.com/tbourn/go-marketplace-chat/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

const shutdownGrace = 15 * time.Second

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.OTEL.ServiceName, cfg.LogPretty)
	appVersion := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	hub := realtime.NewHub(cfg.Chat.PreviewMaxRunes)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience)
	httpapi.RegisterRoutes(r, db, hub, verifier, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", appVersion).
			Str("db", cfg.DB.Driver).
			Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		// Shutdown does not track hijacked websockets; sessions watch the
		// request context, which derives from BaseContext.
		err := srv.Shutdown(sctx)
		if terr := shutdownTracing(sctx); terr != nil {
			log.Warn().Err(terr).Msg("tracing shutdown")
		}
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}
