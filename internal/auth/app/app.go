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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/aussiebroadwan/gatehouse/internal/auth/http"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv/drivers/memory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv/drivers/redis"
	"github.com/aussiebroadwan/gatehouse/internal/auth/mailer"
	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	fast     kv.Store
	mail     service.Mailer
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Services
	ledger              *service.TokenLedger
	sessionService      *service.SessionService
	authz               *service.AuthorizationResolver
	rolesService        *service.RolesService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(app.registry)

	ctx := slogx.WithContext(context.Background(), app.logger)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initFastStore(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.initMailer()

	if err := app.initServices(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler without starting a listener.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if c, ok := app.mail.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			app.logger.Error("error closing mailer", "error", err)
			errs = append(errs, err)
		}
	}
	if app.fast != nil {
		if err := app.fast.Close(); err != nil {
			app.logger.Error("error closing fast store", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the durable store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.Database.Driver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.Database.DSN)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", app.cfg.Database.File)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

// initFastStore opens the revocation store. The memory driver only suits a
// single instance since revocations are not shared.
func (app *Application) initFastStore(ctx context.Context) error {
	switch app.cfg.FastStore.Driver {
	case "redis":
		rs := redis.NewStore(redis.Options{
			Addr:     app.cfg.FastStore.RedisAddr,
			Password: app.cfg.FastStore.RedisPassword,
			DB:       app.cfg.FastStore.RedisDB,
			PoolSize: app.cfg.FastStore.RedisPoolSize,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = rs.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.FastStore.RedisAddr, err)
		}
		app.fast = rs
	default:
		app.logger.Warn("using in-memory fast store; revocations are lost on restart and not shared between instances")
		app.fast = memory.NewStore()
	}
	return nil
}

func (app *Application) initMailer() {
	switch app.cfg.Mailer.Driver {
	case "kafka":
		app.mail = mailer.NewKafkaMailer(app.cfg.Mailer.KafkaBrokers, app.cfg.Mailer.KafkaTopic)
		app.logger.Info("mail delivery via kafka", "topic", app.cfg.Mailer.KafkaTopic)
	default:
		app.mail = mailer.LogMailer{}
	}
}

// initServices builds the services and runs bootstrap seeding
func (app *Application) initServices(ctx context.Context) error {
	cfg := app.cfg.Auth

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher := cryptox.NewArgon2Hasher(pepper)

	accessCodec, err := jwtx.NewHS256(jwtx.PurposeAccess, []byte(cfg.AccessSecret), cfg.Issuer)
	if err != nil {
		return fmt.Errorf("access codec: %w", err)
	}
	refreshCodec, err := jwtx.NewHS256(jwtx.PurposeRefresh, []byte(cfg.RefreshSecret), cfg.Issuer)
	if err != nil {
		return fmt.Errorf("refresh codec: %w", err)
	}
	resetCodec, err := jwtx.NewHS256(jwtx.PurposeReset, []byte(cfg.ResetSecret), cfg.Issuer)
	if err != nil {
		return fmt.Errorf("reset codec: %w", err)
	}

	app.ledger = &service.TokenLedger{
		Store:        app.db,
		Fast:         app.fast,
		Metrics:      app.metrics,
		IdleTTL:      cfg.RefreshIdleTTL,
		AbsoluteTTL:  cfg.RefreshAbsoluteTTL,
		StoreTimeout: cfg.StoreTimeout,
	}
	app.sessionService = &service.SessionService{
		Store:  app.db,
		Fast:   app.fast,
		Ledger: app.ledger,
		Access: &service.AccessTokenIssuer{
			Codec:  accessCodec,
			Issuer: cfg.Issuer,
			TTL:    cfg.AccessTTL,
		},
		Hasher:       hasher,
		Mailer:       app.mail,
		Metrics:      app.metrics,
		RefreshCodec: refreshCodec,
		ResetCodec:   resetCodec,
		Issuer:       cfg.Issuer,
		ResetTTL:     cfg.ResetTTL,
		ResetURL:     app.cfg.Mailer.ResetURL,
		WelcomeURL:   app.cfg.Mailer.WelcomeURL,
		StoreTimeout: cfg.StoreTimeout,
	}
	app.authz = &service.AuthorizationResolver{
		Store:        app.db,
		Fast:         app.fast,
		Metrics:      app.metrics,
		CacheTTL:     cfg.PermissionCacheTTL,
		StoreTimeout: cfg.StoreTimeout,
	}
	app.rolesService = &service.RolesService{Store: app.db, Authz: app.authz, StoreTimeout: cfg.StoreTimeout}
	app.userService = &service.UserService{Store: app.db, Ledger: app.ledger, Authz: app.authz, StoreTimeout: cfg.StoreTimeout}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		cfg.RetentionPeriod,
	)

	seed := service.DefaultSeed()
	if cfg.SeedFile != "" {
		if seed, err = service.LoadSeedFile(cfg.SeedFile); err != nil {
			return fmt.Errorf("failed to load seed file: %w", err)
		}
	}
	boot := &service.BootstrapService{
		Store:         app.db,
		Hasher:        hasher,
		Seed:          seed,
		AdminEmail:    app.cfg.Bootstrap.AdminEmail,
		AdminPassword: app.cfg.Bootstrap.AdminPassword,
	}
	if err := boot.Run(ctx); err != nil {
		return err
	}

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.fast,
		app.registry,
		app.logger,
	)

	router.Session = app.sessionService
	router.Ledger = app.ledger
	router.Authz = app.authz
	router.Roles = app.rolesService
	router.Users = app.userService
	router.StrictLimit = app.cfg.RateLimit.strict()
	router.ModerateLimit = app.cfg.RateLimit.moderate()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
