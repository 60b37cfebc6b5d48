package main

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/agromonitor/fincas-geom/internal/api/http"
	appAudit "github.com/agromonitor/fincas-geom/internal/application/audit"
	"github.com/agromonitor/fincas-geom/internal/application/moderation"
	"github.com/agromonitor/fincas-geom/internal/application/query"
	"github.com/agromonitor/fincas-geom/internal/config"
	"github.com/agromonitor/fincas-geom/internal/infrastructure/postgres"
	"github.com/agromonitor/fincas-geom/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	captureRepo := postgres.NewCaptureRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)

	// infrastructure
	hub := sse.NewHub()

	// services
	auditSvc := appAudit.NewService(auditRepo, loadHexKey(cfg.AuditSigningKey), logger)
	moderationSvc := moderation.NewService(captureRepo, auditSvc, hub, cfg.GeometrySRID, logger)
	querySvc := query.NewService(captureRepo, logger)

	// API server
	apiServer := httpapi.NewServer(moderationSvc, querySvc, hub, cfg.APITokens, logger)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE connections stay open until the client
		// disconnects. JSON endpoints are bounded by the router timeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	hub.Stop()
}

func loadHexKey(hexStr string) []byte {
	if hexStr == "" {
		return nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil
	}
	return b
}
