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

	"github.com/bookline/notifier/internal/alerts"
	alertspostgres "github.com/bookline/notifier/internal/alerts/postgres"
	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/channel/email"
	"github.com/bookline/notifier/internal/channel/inapp"
	"github.com/bookline/notifier/internal/channel/push"
	"github.com/bookline/notifier/internal/channel/sms"
	"github.com/bookline/notifier/internal/channel/whatsapp"
	"github.com/bookline/notifier/internal/config"
	"github.com/bookline/notifier/internal/dispatch"
	"github.com/bookline/notifier/internal/notify"
	"github.com/bookline/notifier/internal/pkg/ctxlog"
	"github.com/bookline/notifier/internal/pkg/httputil"
	"github.com/bookline/notifier/internal/pkg/metrics"
	"github.com/bookline/notifier/internal/pkg/postgres"
	queuepostgres "github.com/bookline/notifier/internal/queue/postgres"
	"github.com/bookline/notifier/internal/scheduler"
	"github.com/bookline/notifier/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	worker        *dispatch.Worker
	dispatcher    *dispatch.Dispatcher
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(cfg.Database.MigrateURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setup(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup: %w", err)
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

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	// Stop the dispatch worker first so in-flight jobs drain before
	// contexts are cancelled and the pool closes.
	if a.worker != nil {
		a.worker.Stop()
	}

	a.metricsCancel()

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

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.ObservePoolStats(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.ObservePoolStats(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Worker returns the dispatch worker instance. Used in tests.
func (a *App) Worker() *dispatch.Worker {
	return a.worker
}

func (a *App) setup(ctx context.Context) (*chi.Mux, error) {
	senders, err := a.buildSenders()
	if err != nil {
		return nil, err
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	store := queuepostgres.NewStore(a.db)
	a.dispatcher = dispatch.NewDispatcher(senders...)
	gate := dispatch.NewRateGate(a.config.RateLimit.MinInterval)

	// The built-in worker can be switched off so an external consumer
	// owns the queue.
	if a.config.Worker.Enabled {
		a.worker = dispatch.NewWorker(dispatch.WorkerConfig{
			BatchSize:    a.config.Worker.BatchSize,
			PollInterval: a.config.Worker.PollInterval,
			NumWorkers:   a.config.Worker.Concurrency,
			BaseDelay:    a.config.Retry.BaseDelay,
			MaxBackoff:   a.config.Retry.MaxBackoff,
		}, store, a.dispatcher, renderer, gate)
		a.worker.Start(ctx)
	}

	reminderScheduler := scheduler.NewScheduler(scheduler.Config{
		Interval:    a.config.Reminders.Interval,
		MinLead:     a.config.Reminders.MinLead,
		MaxAttempts: a.config.Retry.MaxAttempts,
	}, store)
	schedulerHandler := scheduler.NewHandler(reminderScheduler, store)

	alertsRepo := alertspostgres.NewRepository(a.db)
	alertService := alerts.NewService(
		alerts.ServiceConfig{MaxAttempts: a.config.Retry.MaxAttempts},
		alerts.NewProcessor(alerts.DefaultProcessorConfig()),
		alertsRepo,
		store,
	)
	alertsHandler := alerts.NewHandler(alertService)

	return a.buildRouter(schedulerHandler, alertsHandler), nil
}

func (a *App) buildSenders() ([]channel.Sender, error) {
	cfg := a.config.Channels

	emailSender, err := email.NewSender(email.Config{
		Enabled:      cfg.Email.Enabled,
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		FromAddress:  cfg.Email.FromAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	smsSender := sms.NewSender(sms.Config{
		Enabled:    cfg.SMS.Enabled,
		APIURL:     cfg.SMS.APIURL,
		APIKey:     cfg.SMS.APIKey,
		FromNumber: cfg.SMS.FromNumber,
		Timeout:    cfg.SMS.Timeout,
	})

	whatsappSender := whatsapp.NewSender(whatsapp.Config{
		Enabled:       cfg.WhatsApp.Enabled,
		APIURL:        cfg.WhatsApp.APIURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		Timeout:       cfg.WhatsApp.Timeout,
	})

	pushSender, err := push.NewSender(push.Config{
		Enabled:   cfg.Push.Enabled,
		ServerKey: cfg.Push.ServerKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create push sender: %w", err)
	}

	// In-app delivery rides on the main database, always available.
	inappSender := inapp.NewSender(a.db)

	for _, s := range []channel.Sender{emailSender, smsSender, whatsappSender, pushSender} {
		if status := s.HealthCheck(); !status.Healthy {
			a.logger.Warn("channel sender not healthy at startup",
				"channel_type", s.Type(),
				"message", status.Message,
			)
		}
	}

	return []channel.Sender{emailSender, smsSender, whatsappSender, pushSender, inappSender}, nil
}

func (a *App) buildRouter(schedulerHandler *scheduler.Handler, alertsHandler *alerts.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Route("/api/v1", func(r chi.Router) {
		schedulerHandler.RegisterRoutes(r)
		alertsHandler.RegisterRoutes(r)
		r.Get("/channels/health", a.channelHealthHandler)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
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

func (a *App) channelHealthHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, a.dispatcher.HealthCheck())
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

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
