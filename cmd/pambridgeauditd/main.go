// Command pambridgeauditd is the audit companion's read API: an HTTP
// service over a Postgres-backed log of completed hook invocations,
// fed by internal/audit/ingest and never consulted by the core bridge
// (spec.md §9's "no persisted state" invariant binds the core only).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/config"
	httphandler "github.com/aras-services/pam-policy-bridge/internal/audit/delivery/http"
	"github.com/aras-services/pam-policy-bridge/internal/audit/ingest"
	"github.com/aras-services/pam-policy-bridge/internal/audit/jwtauth"
	auditmw "github.com/aras-services/pam-policy-bridge/internal/audit/middleware"
	"github.com/aras-services/pam-policy-bridge/internal/audit/repository/postgres"
	"github.com/aras-services/pam-policy-bridge/internal/audit/service"
)

func main() {
	cfg, err := config.Load(os.Getenv("PAMBRIDGE_AUDITD_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to audit database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping audit database", zap.Error(err))
	}
	logger.Info("connected to audit database")

	invocationRepo := postgres.NewInvocationRepository(db)
	invocationService := service.NewInvocationService(invocationRepo)

	tokens := jwtauth.NewService(cfg.JWT.SecretKey, cfg.JWT.Expiry)
	auth := auditmw.NewAuth(tokens)

	invocationHandler := httphandler.NewInvocationHandler(invocationService)
	adminHandler := httphandler.NewAdminHandler(tokens, cfg.JWT.AdminSecretHash)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(auditmw.NewCORS())
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		adminHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			invocationHandler.RegisterRoutes(r)
		})
	})

	server := &http.Server{Addr: cfg.Addr(), Handler: r}

	ingestListener, err := ingestIfConfigured(cfg, invocationService, logger)
	if err != nil {
		logger.Fatal("failed to start ingest listener", zap.Error(err))
	}
	if ingestListener != nil {
		go ingestListener.Serve()
		defer ingestListener.Close()
	}

	go func() {
		logger.Info("starting audit API", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start audit API", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down audit API...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("audit API forced to shutdown", zap.Error(err))
	}
	logger.Info("audit API exited")
}

// ingestIfConfigured starts the unix-socket ingest listener when
// PAMBRIDGE_AUDIT_SOCKET names a path; returns (nil, nil) otherwise,
// since running without one is a valid deployment (read-only API over
// whatever history already exists).
func ingestIfConfigured(cfg *config.Config, svc *service.InvocationService, logger *zap.Logger) (*ingest.Listener, error) {
	if cfg.Bridge.AuditSocket == "" {
		return nil, nil
	}
	return ingest.Listen(cfg.Bridge.AuditSocket, svc, logger)
}
