package api

import (
	"net/http"

	"github.com/ayo6706/escrow-ledger/internal/api/handler"
	"github.com/ayo6706/escrow-ledger/internal/api/middleware"
	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/api/spec"
	"github.com/ayo6706/escrow-ledger/internal/config"
	"github.com/ayo6706/escrow-ledger/internal/idempotency"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services groups the domain services the HTTP layer exposes.
type Services struct {
	Ledger       *service.LedgerService
	Escrows      *service.EscrowService
	Withdrawals  *service.WithdrawalService
	Webhooks     *service.WebhookService
	ServiceTypes *service.ServiceTypeCatalog
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	redis     redis.Cmdable
	idemStore *idempotency.Store
	services  Services
}

// NewRouter wires handlers onto a chi router. redisClient may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, idemStore *idempotency.Store, services Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		idemStore: idemStore,
		services:  services,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	accountHandler := handler.NewAccountHandler(api.services.Ledger)
	escrowHandler := handler.NewEscrowHandler(api.services.Escrows)
	withdrawalHandler := handler.NewWithdrawalHandler(api.services.Withdrawals)
	webhookHandler := handler.NewWebhookHandler(api.services.Webhooks)
	serviceTypeHandler := handler.NewServiceTypeHandler(api.services.ServiceTypes)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public Routes
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/webhooks/deposits", webhookHandler.HandleDepositWebhook)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.With(idem).Post("/v1/accounts", accountHandler.OpenAccount)
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)
		r.Get("/v1/accounts/{id}/entries", accountHandler.GetEntries)

		// Service types
		r.Get("/v1/service-types", serviceTypeHandler.List)
		r.With(middleware.RequireAdmin, idem).Put("/v1/service-types/{code}", serviceTypeHandler.Upsert)

		// Escrows
		r.Route("/v1/escrows", func(r chi.Router) {
			r.Get("/", escrowHandler.ListEscrows)
			r.With(idem).Post("/", escrowHandler.CreateEscrow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", escrowHandler.GetEscrow)
				r.Get("/events", escrowHandler.ListEvents)

				r.Group(func(r chi.Router) {
					r.Use(idem)
					r.Post("/post", escrowHandler.Post)
					r.Post("/accept", escrowHandler.Accept)
					r.Post("/fund", escrowHandler.Fund)
					r.Post("/confirm", escrowHandler.Confirm)
					r.Post("/cancel", escrowHandler.Cancel)
					r.Post("/dispute", escrowHandler.Dispute)
				})
			})
		})

		// Withdrawals
		r.With(idem).Post("/v1/withdrawals", withdrawalHandler.CreateWithdrawal)
		r.Get("/v1/withdrawals/{id}", withdrawalHandler.GetWithdrawal)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Status(w, r, http.StatusNotFound, problem.RouteNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem.Status(w, r, http.StatusMethodNotAllowed, problem.MethodNotAllowed, r.Method+" is not supported on this route")
	})

	return r
}
