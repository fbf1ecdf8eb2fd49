// Command noshow marks appointments nobody showed up for. It is meant to run
// from cron every few minutes against the same database as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/config"
	"github.com/meetlines/meetlines/internal/db"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/observ"
	"github.com/meetlines/meetlines/internal/repository/postgres"
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
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	projectRepo := postgres.NewProjectStore(pool)
	employeeRepo := postgres.NewEmployeeStore(pool)
	serviceRepo := postgres.NewServiceStore(pool)
	appointmentRepo := postgres.NewAppointmentStore(pool)

	engine := availability.NewEngine(postgres.NewBotConfigStore(pool), employeeRepo, serviceRepo, appointmentRepo, logger)
	lifecycle := appointment.NewService(appointmentRepo, serviceRepo, employeeRepo, postgres.NewCustomerStore(pool), engine, logger)

	// Dashboards learn about swept appointments the same way they learn
	// about staff actions. Without Redis the sweep still runs.
	if redisOpts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Warn("invalid redis url, events disabled", zap.Error(err))
	} else {
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		lifecycle.Publisher = events.NewRedisBus(rdb)
	}

	res, err := lifecycle.SweepNoShows(ctx, projectRepo, cfg.NoShowGrace)
	logger.Info("no-show sweep finished",
		zap.Int("projects", res.Projects),
		zap.Int("marked", res.Marked),
		zap.Int("failed", res.Failed),
		zap.Duration("grace", cfg.NoShowGrace),
	)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("sweep failed for %d project(s)", res.Failed)
	}
	return nil
}
