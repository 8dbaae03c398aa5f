package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/auth"
	"github.com/teamfines/platform/internal/guard"
	"github.com/teamfines/platform/internal/handler"
	"github.com/teamfines/platform/internal/ledger"
	"github.com/teamfines/platform/internal/repository"
	"github.com/teamfines/platform/internal/service"
)

// Database is what the router needs from the store: transactions plus a health ping.
// *pgxpool.Pool satisfies it.
type Database interface {
	repository.TxBeginner
	Ping(ctx context.Context) error
}

// Repositories bundles one implementation of every repository.
type Repositories struct {
	Players repository.PlayerRepository
	Fines   repository.FineRepository
	Presets repository.PresetRepository
	Audit   repository.AuditRepository
	Outbox  repository.OutboxRepository
}

// PostgresRepositories returns the pgx-backed repositories.
func PostgresRepositories() Repositories {
	return Repositories{
		Players: repository.NewPlayerRepository(),
		Fines:   repository.NewFineRepository(),
		Presets: repository.NewPresetRepository(),
		Audit:   repository.NewAuditRepository(),
		Outbox:  repository.NewOutboxRepository(),
	}
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB       Database
	Repos    Repositories
	JWTMgr   *auth.JWTManager
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Now      func() time.Time

	// WriteLimiter throttles mutations per organization; nil disables it.
	WriteLimiter *guard.RateLimiter
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	repos := deps.Repos

	// Core
	trail := audit.NewTrail(repos.Audit, deps.Now)
	engine := ledger.NewEngine(repos.Players, repos.Fines, repos.Presets, repos.Outbox, trail, deps.Now)

	// Services
	svcDeps := service.Deps{
		DB:      deps.DB,
		Logger:  logger,
		Metrics: service.NewMetrics(deps.Registry),
		Now:     deps.Now,
	}
	playerSvc := service.NewPlayerService(svcDeps, repos.Players, repos.Fines, trail)
	fineSvc := service.NewFineService(svcDeps, engine, repos.Fines, repos.Players)
	presetSvc := service.NewPresetService(svcDeps, repos.Presets, trail)
	auditSvc := service.NewAuditService(svcDeps, trail)

	// Handlers
	playerHandler := handler.NewPlayerHandler(playerSvc)
	fineHandler := handler.NewFineHandler(fineSvc)
	presetHandler := handler.NewPresetHandler(presetSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	httpMetrics := handler.NewHTTPMetrics(deps.Registry)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(httpMetrics.Middleware)
	r.Use(handler.CORS)

	// Unauthenticated
	r.With(handler.JSONContentType).Get("/health", handler.HealthHandler(deps.DB))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Use(auth.Authenticate(deps.JWTMgr))
		r.Use(handler.CaptureActor)

		writers := chi.Middlewares{auth.RequireRole(auth.WriteRoles()...), handler.ThrottleWrites(deps.WriteLimiter)}

		r.Route("/players", func(r chi.Router) {
			r.Get("/", playerHandler.List)
			r.Get("/{id}", playerHandler.Get)
			r.Get("/{id}/balance", playerHandler.Balance)
			r.With(writers...).Post("/", playerHandler.Create)
			r.With(writers...).Patch("/{id}", playerHandler.Update)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", presetHandler.List)
			r.Get("/{id}", presetHandler.Get)
			r.With(writers...).Post("/", presetHandler.Create)
			r.With(writers...).Patch("/{id}", presetHandler.Update)
			r.With(writers...).Post("/{id}/deactivate", presetHandler.Deactivate)
		})

		r.Route("/fines", func(r chi.Router) {
			r.Get("/", fineHandler.List)
			r.Get("/{id}", fineHandler.Get)
			r.With(writers...).Post("/", fineHandler.Issue)
			r.With(writers...).Post("/{id}/pay", fineHandler.Pay)
		})

		r.Get("/audit/{entityType}/{entityId}", auditHandler.List)
	})

	return r
}
