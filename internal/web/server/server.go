package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/mailtarget/internal/metrics"
	"github.com/foxzi/mailtarget/internal/web/config"
	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/handlers"
	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/middleware"
	"github.com/foxzi/mailtarget/internal/web/repository"
	"github.com/foxzi/mailtarget/internal/web/selector"
	"github.com/foxzi/mailtarget/internal/web/static"
	"github.com/foxzi/mailtarget/internal/web/views"
)

type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *db.DB
	handlers  *handlers.Handlers
	dashboard *selector.Dashboard
	http      *http.Server
}

// Services are the components shared by the web server and the CLI
type Services struct {
	DB           *db.DB
	Bundle       *i18n.Bundle
	Mailings     *repository.MailingRepository
	Members      *repository.MemberRepository
	Unsubscribes *repository.UnsubscribeRepository
	Selectors    *selector.Registry
	Dashboard    *selector.Dashboard
}

// NewServices opens and migrates the database, then builds the selectors
func NewServices(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	bundle, err := i18n.Load()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	return newServices(cfg, database, bundle, logger), nil
}

func newServices(cfg *config.Config, database *db.DB, bundle *i18n.Bundle, logger *slog.Logger) *Services {
	mailings := repository.NewMailingRepository(database)

	members := selector.NewMemberSelector(database, mailings, bundle.Translator(cfg.Locale.Language), selector.MemberOptions{
		Entity:   cfg.Tenant.Entity,
		Entities: cfg.Tenant.Entities(),
		BaseURL:  cfg.Server.BaseURL,
		Location: cfg.Locale.Location(),
	}, logger)

	registry := selector.NewRegistry(members)

	return &Services{
		DB:           database,
		Bundle:       bundle,
		Mailings:     mailings,
		Members:      repository.NewMemberRepository(database),
		Unsubscribes: repository.NewUnsubscribeRepository(database),
		Selectors:    registry,
		Dashboard:    selector.NewDashboard(database, registry, logger),
	}
}

// Close releases the database
func (s *Services) Close() error {
	return s.DB.Close()
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	svc, err := NewServices(cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, svc, logger)
	if err != nil {
		svc.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, svc *Services, logger *slog.Logger) (*Server, error) {
	viewEngine, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize views: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        svc.DB,
		dashboard: svc.Dashboard,
		handlers: handlers.New(cfg, logger, handlers.Deps{
			Views:     viewEngine,
			Bundle:    svc.Bundle,
			Mailings:  svc.Mailings,
			Members:   svc.Members,
			Selectors: svc.Selectors,
			Dashboard: svc.Dashboard,
		}),
	}

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Routes returns the HTTP handler of the web interface
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	if len(s.cfg.Server.AllowedIPs) > 0 {
		r.Use(middleware.IPFilter(s.cfg.Server.AllowedIPs, s.logger))
	}
	r.Use(metrics.HTTPMiddleware)

	r.Handle("/static/*", static.Handler())
	s.handlers.RegisterRoutes(r)

	return r
}

func (s *Server) Run(ctx context.Context) error {
	var (
		metricsServer *metrics.Server
		collector     *metrics.Collector
	)

	if s.cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)

		metricsServer = metrics.NewServerWithAllowedIPs(m, s.cfg.Metrics.ListenAddr, s.cfg.Metrics.Path, s.cfg.Metrics.AllowedIPs, s.logger)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics server error", "error", err)
			}
		}()

		collector = metrics.NewCollector(m, s.dashboard, s.cfg.Database.Path, 0, s.logger)
		collector.Start(ctx)
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting web server", "addr", s.cfg.Server.ListenAddr)
		if s.cfg.Server.TLS.Enabled {
			errCh <- s.http.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		} else {
			errCh <- s.http.ListenAndServe()
		}
	}()

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
	}

	if collector != nil {
		collector.Stop()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("metrics shutdown error", "error", err)
		}
	}

	s.db.Close()
	return runErr
}
