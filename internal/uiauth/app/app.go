package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/captcha"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/events"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/identity"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/metrics"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/nonce"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/service"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/session"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/aussiebroadwan/uiauth/pkg/macaroonx"
	"github.com/aussiebroadwan/uiauth/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

const macaroonKeyID = "key"

// Application encapsulates the auth engine with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.WithTicker

	// Core dependencies
	db       store.Store
	nonces   nonce.Store
	sessions *session.Store
	codec    *macaroonx.Codec
	pubsub   *gochannel.GoChannel
	registry *prometheus.Registry
	metrics  *metrics.Recorder

	// Services
	authFlowService     *service.AuthFlowService
	tokenService        *service.TokenService
	accountService      *service.AccountService
	housekeepingService *service.HousekeepingService

	metricsServer *http.Server
}

// Option customises an Application before its services are built.
type Option func(*Application)

// WithLogger replaces the configured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// WithClock replaces the wall clock.
func WithClock(clk clock.WithTicker) Option {
	return func(app *Application) { app.clock = clk }
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg, clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service:    "uiauth",
			Version:    BuildVersion,
			Env:        cfg.Env,
			Level:      cfg.LogLevel,
			Format:     cfg.LogFormat,
			ServerName: cfg.ServerName,
		})
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initNonceStore(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initCodec(); err != nil {
		_ = app.nonces.Close()
		_ = app.db.Close()
		return nil, err
	}

	app.initMetrics()
	app.initEvents()
	app.initServices()

	return app, nil
}

func (app *Application) AuthFlow() *service.AuthFlowService { return app.authFlowService }
func (app *Application) Tokens() *service.TokenService       { return app.tokenService }
func (app *Application) Accounts() *service.AccountService   { return app.accountService }
func (app *Application) Store() store.Store                  { return app.db }
func (app *Application) Logger() *slog.Logger                { return app.logger }

// Run starts background work and blocks until ctx is done, a shutdown
// signal arrives or a listener fails.
func (app *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.housekeepingService.Start()

	app.logger.Info("uiauth starting",
		"server_name", app.cfg.ServerName,
		"nonce_backend", app.cfg.NonceBackend,
		"version", BuildVersion,
	)

	g, gctx := errgroup.WithContext(ctx)

	passwordChanges, err := app.pubsub.Subscribe(gctx, events.TopicPasswordChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to password changes: %w", err)
	}
	g.Go(func() error {
		for msg := range passwordChanges {
			ev, err := events.DecodePasswordChanged(msg)
			if err != nil {
				app.logger.Error("dropping malformed event", "topic", events.TopicPasswordChanged, "error", err)
				msg.Ack()
				continue
			}
			app.logger.Info("password changed",
				"user_id", ev.UserID,
				"tokens_revoked", ev.TokensRevoked,
			)
			msg.Ack()
		}
		return nil
	})

	if app.metricsServer != nil {
		g.Go(func() error {
			app.logger.Info("metrics listener starting", "addr", app.metricsServer.Addr)
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	<-gctx.Done()
	app.logger.Info("shutdown requested", "cause", context.Cause(gctx))

	shutdownErr := app.Shutdown()
	if err := g.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

// Shutdown gracefully stops an Application started by Run. Use Close for one
// that was never run.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down uiauth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.logger.Error("graceful metrics shutdown failed", "error", err)
			_ = app.metricsServer.Close()
		}
	}

	app.housekeepingService.Stop()

	if err := app.pubsub.Close(); err != nil {
		app.logger.Error("error closing event bus", "error", err)
	}
	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
	}
	if err := app.nonces.Close(); err != nil {
		app.logger.Error("error closing nonce store", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("uiauth stopped")
	return nil
}

// Close releases resources of an Application that was never Run.
func (app *Application) Close() error {
	_ = app.pubsub.Close()
	_ = app.nonces.Close()
	return app.db.Close()
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	version, _, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	app.logger.Info("database migrations applied successfully", "schema_version", version)
	return nil
}

func (app *Application) initNonceStore() error {
	switch app.cfg.NonceBackend {
	case NonceBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rs, err := nonce.NewRedisStore(ctx, app.cfg.RedisURL, app.clock)
		if err != nil {
			return fmt.Errorf("failed to connect nonce store: %w", err)
		}
		app.nonces = rs
	default:
		app.nonces = nonce.NewMemoryStore()
	}
	app.logger.Info("nonce store ready", "backend", app.cfg.NonceBackend)
	return nil
}

func (app *Application) initCodec() error {
	secret := app.cfg.MacaroonSecretKey
	if secret == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate macaroon secret: %w", err)
		}
		secret = generated
		app.logger.Warn("UIAUTH_MACAROON_SECRET_KEY is not set; tokens will not survive a restart")
	}

	codec, err := macaroonx.NewCodec(app.cfg.ServerName, macaroonKeyID, []byte(secret))
	if err != nil {
		return fmt.Errorf("failed to initialize macaroon codec: %w", err)
	}
	app.codec = codec
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	if app.cfg.MetricsPort <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func (app *Application) initEvents() {
	app.pubsub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewSlogLogger(app.logger),
	)
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	hasher := cryptox.PasswordHasher{}
	passwords := &service.PasswordAuthenticator{
		Store:      app.db,
		Hasher:     hasher,
		ServerName: app.cfg.ServerName,
	}

	checkers := map[domain.StageType]service.StageChecker{
		domain.StagePassword: &service.PasswordChecker{Auth: passwords},
		domain.StageDummy:    service.DummyChecker{},
		domain.StageTOTP:     &service.TOTPChecker{Auth: passwords, Clock: app.clock},
	}
	if app.cfg.RecaptchaPrivateKey != "" {
		checkers[domain.StageRecaptcha] = &service.CaptchaChecker{
			Verifier:  captcha.NewClient(app.cfg.RecaptchaPrivateKey, app.cfg.RecaptchaSiteVerifyAPI),
			PublicKey: app.cfg.RecaptchaPublicKey,
		}
	}
	if len(app.cfg.TrustedIDServers) > 0 {
		checkers[domain.StageEmailIdentity] = &service.EmailIdentityChecker{
			Resolver: identity.NewClient(app.cfg.IDServerScheme, app.cfg.TrustedIDServers),
		}
	}

	app.sessions = session.NewStore(app.clock, app.cfg.SessionTTL)

	app.authFlowService = &service.AuthFlowService{
		Sessions: app.sessions,
		Stages:   service.NewStageRegistry(checkers),
		Limiter:  service.NewAttemptLimiter(app.cfg.StageLimit, app.clock),
		Metrics:  app.metrics,
	}

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Codec:      app.codec,
		Nonces:     app.nonces,
		Passwords:  passwords,
		Clock:      app.clock,
		ServerName: app.cfg.ServerName,
		Metrics:    app.metrics,
	}

	app.accountService = &service.AccountService{
		Store:  app.db,
		Hasher: hasher,
		Clock:  app.clock,
		Events: events.NewPublisher(app.pubsub),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.nonces,
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.clock,
	)
	app.housekeepingService.Metrics = app.metrics
}
