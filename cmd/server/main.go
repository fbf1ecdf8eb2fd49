package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meetlines/meetlines/internal/api"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/config"
	"github.com/meetlines/meetlines/internal/db"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/observ"
	"github.com/meetlines/meetlines/internal/repository/cache"
	"github.com/meetlines/meetlines/internal/repository/postgres"
	"github.com/meetlines/meetlines/internal/tenancy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and Redis
	//
	// Startup has no deadline of its own; each request later gets one.
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	// Redis backs the project cache and the event stream. Neither is
	// required to take bookings, so a failed ping only warns.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable at startup", zap.String("url", redisOpts.Addr), zap.Error(err))
	}

	// ---------------------------------------------------------------
	// 4. Create repositories
	//
	// Every store shares the pool. Project lookups run on every tenant
	// request, so they go through the Redis read-through cache.
	// ---------------------------------------------------------------
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	projectRepo := cache.NewProjectCache(postgres.NewProjectStore(pool), rdb, cfg.ProjectCacheTTL, logger)
	employeeRepo := postgres.NewEmployeeStore(pool)
	serviceRepo := postgres.NewServiceStore(pool)
	customerRepo := postgres.NewCustomerStore(pool)
	botConfigRepo := postgres.NewBotConfigStore(pool)
	appointmentRepo := postgres.NewAppointmentStore(pool)

	// ---------------------------------------------------------------
	// 5. Metrics
	// ---------------------------------------------------------------
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observ.NewMetrics(registry)

	// ---------------------------------------------------------------
	// 6. Booking core
	// ---------------------------------------------------------------
	resolver := tenancy.NewResolver(tenancy.Options{
		BaseDomain:           cfg.Tenancy.BaseDomain,
		ReservedSubdomains:   cfg.Tenancy.ReservedSubdomains,
		PublicPathPrefixes:   cfg.Tenancy.PublicPathPrefixes,
		ServicePathKeywords:  cfg.Tenancy.ServicePathKeywords,
		TrustedOriginSchemes: cfg.Tenancy.TrustedOriginSchemes,
	}, projectRepo)

	engine := availability.NewEngine(botConfigRepo, employeeRepo, serviceRepo, appointmentRepo, logger)
	engine.Recorder = metrics

	bus := events.NewRedisBus(rdb)
	lifecycle := appointment.NewService(appointmentRepo, serviceRepo, employeeRepo, customerRepo, engine, logger)
	lifecycle.Publisher = bus
	lifecycle.Recorder = metrics

	// ---------------------------------------------------------------
	// 7. HTTP server
	// ---------------------------------------------------------------
	router := api.NewRouter(api.Deps{
		Users:          userRepo,
		Projects:       projectRepo,
		Employees:      employeeRepo,
		Services:       serviceRepo,
		BotConfigs:     botConfigRepo,
		Appointments:   appointmentRepo,
		Resolver:       resolver,
		Engine:         engine,
		Lifecycle:      lifecycle,
		Subscriber:     bus,
		DB:             database,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.JWTTTL,
		BaseDomain:     cfg.Tenancy.BaseDomain,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
		Gatherer:       registry,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting meetlines",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("base_domain", cfg.Tenancy.BaseDomain),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ---------------------------------------------------------------
	// 8. Graceful shutdown
	// ---------------------------------------------------------------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
