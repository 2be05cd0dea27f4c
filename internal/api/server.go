package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"siteplan/internal/config"
	"siteplan/internal/logging"
	"siteplan/internal/metrics"
	"siteplan/internal/notify"
	"siteplan/internal/planner"
	"siteplan/internal/store"
	"siteplan/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Planner  *planner.Service
	Notifier *notify.Notifier
	Broker   notify.EventBroker
	Config   *config.Config
	Log      *zap.Logger

	closers []func() error
}

// NewServer wires the store, broker and planner. Without DATABASE_URL the
// in-memory store is used (seeded from SEED_FILE when set); without
// REDIS_URL events stay in process.
func NewServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{Config: cfg, Log: log}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		m := store.NewMemory()
		if cfg.SeedFile != "" {
			seed, err := store.LoadSeed(ctx, m, cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			log.Info("memory store seeded", zap.String("file", cfg.SeedFile), zap.Int("users", len(seed.Users)), zap.Int("sites", len(seed.Sites)), zap.Int("reports", len(seed.Reports)))
		}
		srv.Store = m
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, pg.Close)
		if cfg.DBMigrate {
			if err := pg.MigrateDir(ctx, cfg.MigrationsDir); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		srv.Store = pg
	}

	srv.Broker = notify.NewBroker()
	if cfg.RedisURL != "" {
		rb, err := notify.NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		} else {
			srv.Broker = rb
			srv.closers = append(srv.closers, rb.Close)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	srv.Notifier = notify.NewNotifier(srv.Store, srv.Broker, log)
	srv.Planner = planner.New(srv.Store, srv.Notifier, log, cfg.RouteDefaults(), loc)
	return srv, nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/users", s.UsersHandler)
	mux.HandleFunc("/v1/sites", s.SitesHandler)
	mux.HandleFunc("/v1/sites/reassign", s.ReassignHandler)
	mux.HandleFunc("/v1/sites/", s.SiteByIDHandler)
	mux.HandleFunc("/v1/reports", s.ReportsHandler)

	mux.HandleFunc("/v1/plans/", s.PlansHandler) // includes /moves, /moves/propose, /route
	mux.HandleFunc("/v1/drafts", s.DraftsHandler)
	mux.HandleFunc("/v1/drafts/confirm", s.DraftConfirmHandler)
	mux.HandleFunc("/v1/drafts/plans/", s.DraftPlanHandler)
	mux.HandleFunc("/v1/route-config", s.RouteConfigHandler)

	mux.HandleFunc("/v1/notifications", s.NotificationsHandler)
	mux.HandleFunc("/v1/notifications/stream", s.NotificationsStreamHandler)
	mux.HandleFunc("/v1/notifications/ws", s.NotificationsWSHandler)

	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	limiter := newIPRateLimiter(s.Config.RateRPS, s.Config.RateBurst)
	return logging.AccessLog(s.Log, instrument(limiter.middleware(s.Log, mux)))
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts, s.Log)
}

// Close releases the database pool and the Redis client.
func (s *Server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
