// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/incident-portal/internal/assistant"
	"github.com/bissquit/incident-portal/internal/catalog"
	"github.com/bissquit/incident-portal/internal/config"
	"github.com/bissquit/incident-portal/internal/digest"
	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/identity"
	"github.com/bissquit/incident-portal/internal/incidents"
	incidentspostgres "github.com/bissquit/incident-portal/internal/incidents/postgres"
	"github.com/bissquit/incident-portal/internal/notifications"
	"github.com/bissquit/incident-portal/internal/notifications/mattermost"
	"github.com/bissquit/incident-portal/internal/notifications/telegram"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/bissquit/incident-portal/internal/pkg/metrics"
	"github.com/bissquit/incident-portal/internal/pkg/postgres"
	"github.com/bissquit/incident-portal/internal/reports"
	"github.com/bissquit/incident-portal/internal/upstream"
	"github.com/bissquit/incident-portal/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 30 * time.Second
	dbMetricsInterval = 15 * time.Second
	requestTimeout    = 60 * time.Second
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	upstream      *upstream.Client
	incidents     *incidents.Service
	reports       *reports.Service
	conversations *assistant.Store
	server        *http.Server
	metricsServer *http.Server
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.UsesUpstream() {
		client, err := upstream.NewClient(upstream.Config{
			BaseURL: cfg.Upstream.BaseURL,
			Timeout: cfg.Upstream.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create upstream client: %w", err)
		}
		app.upstream = client
	}

	source, err := app.incidentSource()
	if err != nil {
		return nil, err
	}

	app.incidents = incidents.NewService(source, incidents.Config{
		SourceName:     cfg.Incidents.Source,
		FetchTimeout:   cfg.Incidents.FetchTimeout,
		EnforceMarkets: cfg.Incidents.EnforceMarkets,
	})

	router, err := app.setupRouter()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) incidentSource() (incidents.Source, error) {
	switch a.config.Incidents.Source {
	case config.SourcePostgres:
		connectCtx, cancel := context.WithTimeout(context.Background(), a.config.Database.ConnectTimeout)
		defer cancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             a.config.Database.URL,
			MaxOpenConns:    a.config.Database.MaxOpenConns,
			MaxIdleConns:    a.config.Database.MaxIdleConns,
			ConnMaxLifetime: a.config.Database.ConnMaxLifetime,
			ConnectAttempts: a.config.Database.ConnectAttempts,
			ApplicationName: "incident-portal",
			ReadOnly:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		return incidentspostgres.NewRepository(db), nil

	case config.SourceUpstream:
		return a.upstream, nil

	default:
		slog.Warn("no incident backend configured: serving the built-in sample incidents")
		return incidents.NewFallbackSource(nil), nil
	}
}

// Run starts the HTTP servers and background loops. It blocks until ctx is
// done or a server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		return listen(a.metricsServer, "metrics server")
	})

	g.Go(func() error {
		a.logger.Info("starting server",
			"host", a.config.Server.Host,
			"port", a.config.Server.Port,
			"incident_source", a.config.Incidents.Source,
		)
		return listen(a.server, "server")
	})

	g.Go(func() error {
		a.conversations.Run(gctx)
		return nil
	})

	if a.db != nil {
		g.Go(func() error {
			metrics.CollectDBPoolMetrics(gctx, a.db, dbMetricsInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Close()
	return err
}

func listen(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s error: %w", name, err)
	}
	return nil
}

// Shutdown gracefully shuts down both servers and waits for on-call alerts
// that are still being delivered.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	alertsDone := make(chan struct{})
	go func() {
		a.reports.Wait()
		close(alertsDone)
	}()
	select {
	case <-alertsDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for on-call alerts: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}

// Close releases the database pool. It is safe to call more than once.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Reports returns the reports service. Tests use it to wait for alerts.
func (a *App) Reports() *reports.Service {
	return a.reports
}

func (a *App) setupRouter() (*chi.Mux, error) {
	cfg := a.config
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Incident Portal API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	pages := make([]catalog.StatusPage, 0, len(cfg.Catalog.StatusPages))
	for _, p := range cfg.Catalog.StatusPages {
		pages = append(pages, catalog.StatusPage{Brand: p.Brand, URL: p.URL, Region: p.Region})
	}
	brandCatalog := catalog.New(cfg.Catalog.Brands, cfg.Catalog.Markets, cfg.Catalog.Systems, pages)
	catalogHandler := catalog.NewHandler(brandCatalog)

	identityService := a.setupIdentity()
	identityHandler := identity.NewHandler(identityService)

	alerter, err := a.setupAlerter()
	if err != nil {
		return nil, err
	}
	a.reports = reports.NewService(a.reportSink(), brandCatalog, alerter)
	reportsHandler := reports.NewHandler(a.reports)

	incidentsHandler := incidents.NewHandler(a.incidents)

	assistantLoc, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load assistant timezone: %w", err)
	}
	engine, err := assistant.NewEngine(assistant.EngineConfig{
		ReportedUptime: cfg.Digest.ReportedUptime,
		Location:       assistantLoc,
	})
	if err != nil {
		return nil, fmt.Errorf("create assistant engine: %w", err)
	}
	chat := assistant.New(engine, a.chatSnapshots())
	a.conversations = assistant.NewStore(chat, assistant.StoreConfig{
		TTL:         cfg.Assistant.ConversationTTL,
		Max:         cfg.Assistant.MaxConversations,
		TypingDelay: cfg.Assistant.TypingDelay,
	})
	assistantHandler := assistant.NewHandler(chat, a.conversations)

	digestLoc, err := time.LoadLocation(cfg.Digest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load digest timezone: %w", err)
	}
	digestHandler := digest.NewHandler(digest.NewStore(), a.incidents, brandCatalog, digest.Config{
		ReportedUptime: cfg.Digest.ReportedUptime,
		Location:       digestLoc,
	})

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(identity.ScopeMiddleware(identityService, cfg.Auth.AllowAnonymous))

			identityHandler.RegisterProtectedRoutes(r)
			catalogHandler.RegisterRoutes(r)
			incidentsHandler.RegisterRoutes(r)
			assistantHandler.RegisterRoutes(r)
			reportsHandler.RegisterRoutes(r)
			digestHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) setupIdentity() *identity.Service {
	cfg := a.config

	grants := make([]identity.Grant, 0, len(cfg.Access.Scopes))
	for _, s := range cfg.Access.Scopes {
		grants = append(grants, identity.Grant{
			Email: s.Email,
			Scope: domain.AccessScope{Brands: s.Brands, Markets: s.Markets},
		})
	}

	var sender identity.LinkSender = identity.LogLinkSender{}
	if cfg.Auth.LinkDelivery == config.LinkDeliveryUpstream {
		sender = identity.NewUpstreamLinkSender(a.upstream)
	}

	if cfg.Auth.ExposeLink {
		slog.Warn("login links are returned in API responses: do not enable auth.expose_link in production")
	}

	return identity.NewService(
		identity.NewTokenIssuer(cfg.Auth.SecretKey),
		identity.NewScopeResolver(cfg.Access.DefaultScope, grants),
		sender,
		identity.Config{
			LinkTTL:    cfg.Auth.LinkTTL,
			SessionTTL: cfg.Auth.SessionTTL,
			PortalURL:  cfg.Auth.PortalURL,
			ExposeLink: cfg.Auth.ExposeLink,
		},
	)
}

// setupAlerter returns nil when no on-call channel is configured.
func (a *App) setupAlerter() (reports.Alerter, error) {
	cfg := a.config.Notifications

	var (
		senders []notifications.Sender
		targets []notifications.Target
	)

	if cfg.Mattermost.WebhookURL != "" {
		senders = append(senders, mattermost.NewSender(mattermost.Config{Username: cfg.Mattermost.Username}))
		targets = append(targets, notifications.Target{
			Channel: notifications.ChannelTypeMattermost,
			To:      cfg.Mattermost.WebhookURL,
		})
	}

	if cfg.Telegram.Enabled {
		telegramSender, err := telegram.NewSender(telegram.Config{
			Enabled:   true,
			BotToken:  cfg.Telegram.BotToken,
			RateLimit: cfg.Telegram.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram sender: %w", err)
		}
		senders = append(senders, telegramSender)
		targets = append(targets, notifications.Target{
			Channel: notifications.ChannelTypeTelegram,
			To:      cfg.Telegram.ChatID,
		})
	}

	slog.Info("on-call alerts configured",
		"mattermost_enabled", cfg.Mattermost.WebhookURL != "",
		"telegram_enabled", cfg.Telegram.Enabled,
	)

	if len(targets) == 0 {
		slog.Warn("no on-call channel configured: P1/P2 reports will not alert anyone")
		return nil, nil
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	return notifications.NewDispatcher(renderer, notifications.DispatcherConfig{}, targets, senders...), nil
}

func (a *App) reportSink() reports.Sink {
	if a.config.Reports.Sink == config.ReportSinkUpstream {
		return reports.NewUpstreamSink(a.upstream)
	}
	return reports.NewLogSink()
}

func (a *App) chatSnapshots() assistant.SnapshotProvider {
	if a.config.Assistant.IncidentSource == config.AssistantSourceLive {
		return assistant.NewLiveSnapshot(a.incidents)
	}
	slog.Warn("chat answers use canned incident data and may not match the dashboard",
		"hint", "set assistant.incident_source=live")
	return assistant.CannedSnapshot{}
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.incidents.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Incident source unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.TimeOnly})
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
