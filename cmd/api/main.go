package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sellerhub/affiliate-api/internal/config"
	"github.com/sellerhub/affiliate-api/internal/domain/audit"
	"github.com/sellerhub/affiliate-api/internal/domain/commission"
	"github.com/sellerhub/affiliate-api/internal/domain/payout"
	"github.com/sellerhub/affiliate-api/internal/domain/referral"
	"github.com/sellerhub/affiliate-api/internal/domain/team"
	"github.com/sellerhub/affiliate-api/internal/middleware"
	"github.com/sellerhub/affiliate-api/internal/pkg/database"
	"github.com/sellerhub/affiliate-api/internal/pkg/jwt"
	"github.com/sellerhub/affiliate-api/internal/pkg/logger"
	pkgresponse "github.com/sellerhub/affiliate-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Affiliate API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	referralRepo := referral.NewRepository(db)
	auditRepo := audit.NewRepository(db)
	commissionRepo := commission.NewRepository(db)
	payoutRepo := payout.NewRepository(db)
	teamRepo := team.NewRepository(db)

	// ---------- Services ----------
	auditService := audit.NewService(auditRepo)
	referralService := referral.NewService(referralRepo)
	commissionService := commission.NewService(commissionRepo, referralRepo, auditService)
	payoutService := payout.NewService(payoutRepo, referralRepo, auditService)
	teamService := team.NewService(teamRepo, redis)

	// ---------- Handlers ----------
	referralHandler := referral.NewHandler(referralService)
	commissionHandler := commission.NewHandler(commissionService)
	payoutHandler := payout.NewHandler(payoutService)
	teamHandler := team.NewHandler(teamService, commissionService, payoutService)
	auditHandler := audit.NewHandler(auditService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/referrals", referralHandler.Routes(authMiddleware))
		r.Mount("/payouts", payoutHandler.Routes(authMiddleware))

		r.Route("/affiliates", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/enable", referralHandler.Enable)
			r.Get("/me/summary", teamHandler.Summary)
			r.Get("/me/team", teamHandler.Tree)
			r.Get("/me/ledger", commissionHandler.MyLedger)
			r.Get("/me/balance", payoutHandler.Balance)
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", commissionHandler.RecordEvent)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())

		r.Get("/ledger", commissionHandler.AdminSearch)
		r.Post("/ledger/actions", commissionHandler.AdminAction)
		r.Get("/payouts", payoutHandler.AdminList)
		r.Post("/payouts/{id}/actions", payoutHandler.AdminAction)
		r.Get("/events/{externalRef}", commissionHandler.GetEvent)
		r.Mount("/audit", auditHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
