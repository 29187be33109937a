package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/critiqdev/critiq/pkg/api"
	"github.com/critiqdev/critiq/pkg/async"
	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/config"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/notify"
	"github.com/critiqdev/critiq/pkg/observability"
	"github.com/critiqdev/critiq/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "critiq: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting critiq")

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations applied")

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	storeOpts := []store.Option{}
	if cfg.Cache.Enabled {
		storeOpts = append(storeOpts, store.WithCatalogCache(cfg.Cache.Size, cfg.Cache.TTL, metrics))
	}
	st := store.New(db, logger, storeOpts...)

	if cfg.SeedFile != "" {
		if err := st.SeedFromFile(ctx, cfg.SeedFile); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	codes, err := auth.NewConfirmationCodeIssuer(cfg.Auth.CodeSecret, cfg.Auth.CodeTTL)
	if err != nil {
		return err
	}
	tokens, err := auth.NewAccessTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	dispatcher, err := buildMailDispatcher(cfg, logger, metrics)
	if err != nil {
		return err
	}

	authService := auth.NewService(st, codes, tokens, dispatcher, logger)
	authMW := middleware.NewAuthMiddleware(tokens, st, logger)

	serverOpts := []api.ServerOption{
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, rate limiting will fail open")
		}
		defer redisClient.Close()

		limitCfg := middleware.AuthRateLimitConfig()
		if cfg.Redis.SignupRequestsPerMinute > 0 {
			limitCfg.RequestsPerWindow = cfg.Redis.SignupRequestsPerMinute
		}
		limiter := middleware.NewDistributedRateLimiter(redisClient, limitCfg, "ratelimit:auth")
		serverOpts = append(serverOpts, api.WithRateLimiter(middleware.NewRateLimitMiddleware(limiter, logger)))
		logger.WithField("requests_per_minute", limitCfg.RequestsPerWindow).Info("auth rate limiting enabled")
	}

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		serverOpts = append(serverOpts, api.WithTracing())
	}

	server := api.NewServer(st, authService, authMW, logger, metrics, serverOpts...)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRoutes(db, redisClient, metrics),
	}

	scheduler, err := startSaltPurge(cfg, st, logger)
	if err != nil {
		return err
	}

	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	sm.RegisterShutdownFunc(func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		return dispatcher.Close()
	})
	if providers != nil {
		sm.RegisterShutdownFunc(providers.Shutdown)
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
		}
	}()

	return sm.WaitForShutdown()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// buildMailDispatcher assembles the confirmation mail pipeline: transport,
// template renderer, and the retrying async dispatcher.
func buildMailDispatcher(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*notify.Dispatcher, error) {
	var notifier notify.Notifier
	switch cfg.Mail.Mode {
	case "smtp":
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			From:     cfg.Mail.From,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})
	default:
		mailLog := logrus.New()
		mailLog.SetFormatter(&logrus.JSONFormatter{})
		notifier = notify.NewLogNotifier(mailLog)
		logger.Info("mail mode is log, confirmation codes will be written to the log")
	}

	var renderer *notify.TemplateRenderer
	var err error
	if cfg.Mail.TemplatePath != "" {
		renderer, err = notify.NewTemplateRendererFromFile(cfg.Mail.TemplatePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load mail template: %w", err)
		}
	} else {
		renderer = notify.NewTemplateRenderer(logger)
	}

	retry := notify.DefaultRetryConfig()
	if cfg.Mail.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Mail.MaxRetries
	}
	return notify.NewDispatcher(notifier, renderer, cfg.Auth.CodeTTL, retry, logger, metrics), nil
}

// startSaltPurge schedules the sweep that clears confirmation salts older
// than the code window, so abandoned signups do not hold verifiable codes
// forever.
func startSaltPurge(cfg *config.Config, st *store.Store, logger *observability.Logger) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Observability.SaltPurgeSchedule, func() {
		async.SafeGo(logger, time.Minute, "salt purge", func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-cfg.Auth.CodeTTL)
			purged, err := st.PurgeExpiredSalts(ctx, cutoff)
			if err != nil {
				return err
			}
			if purged > 0 {
				logger.WithField("purged", purged).Info("cleared expired confirmation salts")
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("invalid salt purge schedule %q: %w", cfg.Observability.SaltPurgeSchedule, err)
	}
	scheduler.Start()
	return scheduler, nil
}

func healthRoutes(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)
	router := mux.NewRouter()
	router.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	router.HandleFunc("/readyz", checker.Readiness).Methods("GET")
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	return router
}
