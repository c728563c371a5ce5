package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medbliss/medbliss/internal/config"
	"github.com/medbliss/medbliss/internal/domain/booking"
	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
	"github.com/medbliss/medbliss/internal/platform/auth"
	"github.com/medbliss/medbliss/internal/platform/db"
	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/jobs"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
	"github.com/medbliss/medbliss/internal/platform/logging"
	"github.com/medbliss/medbliss/internal/platform/middleware"
	"github.com/medbliss/medbliss/internal/platform/notification"
	"github.com/medbliss/medbliss/internal/platform/openapi"
	"github.com/medbliss/medbliss/internal/platform/sandbox"
	"github.com/medbliss/medbliss/internal/platform/telemetry"
	"github.com/medbliss/medbliss/internal/platform/webhook"
	"github.com/medbliss/medbliss/internal/platform/websocket"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	reminderJob     = "appointment-reminders"
	apiVersion      = "1.0.0"
)

// storage holds the backends chosen by STORAGE_BACKEND. Session slots and
// booking records always live in the same backend.
type storage struct {
	backend string
	kv      kvstore.Store
	repo    booking.Repository
	tx      db.Transactor
	pool    *pgxpool.Pool
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return &storage{
			backend: cfg.StorageBackend,
			kv:      kvstore.NewMemoryStore(),
			repo:    booking.NewMemoryRepo(),
			tx:      db.Passthrough{},
		}, nil
	case config.BackendBolt:
		bs, err := kvstore.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend: cfg.StorageBackend,
			kv:      bs,
			repo:    booking.NewBoltRepo(bs.DB()),
			tx:      db.Passthrough{},
		}, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend: cfg.StorageBackend,
			kv:      kvstore.NewPostgresStore(pool),
			repo:    booking.NewPGRepo(pool),
			tx:      db.NewPoolTransactor(pool),
			pool:    pool,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func (s *storage) Close() error {
	err := s.kv.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     "medbliss",
		SigningKey: cfg.SigningKey(),
		Skipper:    auth.AuthSkipper,
	}
}

// app is the assembled server: HTTP routes plus the background consumers
// hanging off the event bus.
type app struct {
	echo      *echo.Echo
	bus       *events.Bus
	scheduler *jobs.Scheduler
	webhooks  *webhook.Manager
	hub       *websocket.Hub
	metrics   *telemetry.Provider
	seeder    *sandbox.Seeder
}

// newApp wires every component. ctx bounds background work such as webhook
// retries and should live as long as the server.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, store *storage) (*app, error) {
	loc := cfg.Location()
	bus := events.New()
	slots := kvstore.NewSlots(store.kv)

	cat := catalog.Default()
	patients := patient.NewService(slots, bus)
	carts := cart.NewStore(slots, cat, patients, bus)

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	bookings := booking.NewService(slots, carts, patients, store.repo,
		booking.WithBus(bus),
		booking.WithTransactor(store.tx),
		booking.WithNode(node),
		booking.WithLogger(logger),
		booking.WithClock(time.Now, loc),
	)

	// Notifications
	logSender := notification.NewLogSender(logger)
	var email notification.EmailSender = logSender
	if cfg.SMTPHost != "" {
		email = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn().Msg("SMTP_HOST not set; emails will only be logged")
	}
	notifications := notification.NewManager(email, logSender, notification.NewTemplates())
	notifier := booking.NewNotifier(notifications, logger)
	if err := notifier.Subscribe(bus); err != nil {
		return nil, fmt.Errorf("subscribe notifier: %w", err)
	}

	// Outbound webhooks
	webhooks := webhook.NewManager(webhook.NewMemoryStore(), webhook.WithLogger(logger))
	if cfg.BookingWebhookURL != "" {
		if _, err := webhooks.RegisterEndpoint(ctx, cfg.BookingWebhookURL, cfg.BookingWebhookSecret, nil); err != nil {
			return nil, fmt.Errorf("register booking webhook: %w", err)
		}
	}
	if err := webhooks.Subscribe(ctx, bus); err != nil {
		return nil, fmt.Errorf("subscribe webhooks: %w", err)
	}

	// Realtime
	hub := websocket.NewHub(logger)
	if err := hub.Subscribe(bus); err != nil {
		return nil, fmt.Errorf("subscribe websocket hub: %w", err)
	}

	// Metrics
	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "medbliss",
		ServiceVersion: apiVersion,
		Environment:    cfg.Env,
	})
	if err := metrics.Subscribe(bus); err != nil {
		return nil, fmt.Errorf("subscribe metrics: %w", err)
	}
	metrics.GaugeFunc("medbliss_websocket_clients", "Connected websocket clients.", func() int64 {
		return int64(hub.ClientCount())
	})

	seeder := sandbox.NewSeeder(cat, patients, carts, bookings, logger)

	// Background jobs
	reminders := booking.NewReminders(store.repo, notifier, loc, logger)
	scheduler := jobs.New(logger, loc)
	if err := scheduler.Add(reminderJob, cfg.ReminderSchedule, func(ctx context.Context) error {
		_, err := reminders.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
		HSTS:     !cfg.IsDev(),
		DocsPath: "/api/v1/docs",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.SessionHeader},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout))

	e.GET("/health", db.HealthHandler(db.Check{
		Backend: store.backend,
		Probes:  []db.Probe{{Name: "storage", Check: store.kv.Ping}},
		Pool:    store.pool,
	}))
	e.GET("/metrics", metrics.Handler())

	// Group middleware must be installed before routes are added.
	apiV1 := e.Group("/api/v1")
	jwtCfg := jwtConfig(cfg)
	if cfg.ResolvedAuthMode() == "token" {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	} else {
		logger.Warn().Msg("development auth: sessions are taken from X-Session-ID without verification")
		apiV1.Use(auth.DevAuthMiddleware())
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	auth.NewSessionHandler(auth.NewSessionIssuer(jwtCfg, cfg.SessionTTL)).RegisterRoutes(apiV1)
	catalog.NewHandler(cat).RegisterRoutes(apiV1)
	patient.NewHandler(patients).RegisterRoutes(apiV1)
	cart.NewHandler(carts).RegisterRoutes(apiV1)
	booking.NewHandler(bookings).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", auth.RequireRole("admin"))
	notification.NewHandler(notifications).RegisterRoutes(admin)
	webhook.NewHandler(webhooks).RegisterRoutes(admin)
	jobs.NewHandler(scheduler).RegisterRoutes(admin)
	sandbox.NewSeedHandler(seeder).RegisterRoutes(admin)

	openapi.NewGenerator(e.Routes, apiVersion, "",
		openapi.WithPublic(auth.IsPublicPath),
		openapi.WithPaginated(
			"/api/v1/bookings",
			"/api/v1/admin/webhooks",
			"/api/v1/admin/webhooks/:id/deliveries",
		),
	).RegisterRoutes(apiV1)

	return &app{echo: e, bus: bus, scheduler: scheduler, webhooks: webhooks, hub: hub, metrics: metrics, seeder: seeder}, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer) {
	return logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser := newLogger(cfg)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("storage", cfg.StorageBackend).Msg("failed to open storage")
		return err
	}
	defer store.Close()
	logger.Info().Str("storage", store.backend).Msg("storage ready")

	a, err := newApp(ctx, cfg, logger, store)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.echo.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// Let in-flight notifications and webhook deliveries settle before the
	// store closes.
	a.bus.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
