package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/internal/tasks"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"github.com/tlogandesigns/site-visitor-dash/pkg/queue"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if !cfg.Redis.Enabled() {
		logger.Error("REDIS_HOST is required for the worker")
		os.Exit(1)
	}

	backlogSchedule, err := util.ParseCron(cfg.Worker.BacklogCron)
	if err != nil {
		logger.Error("invalid SYNC_BACKLOG_CRON", "expr", cfg.Worker.BacklogCron, "error", err)
		os.Exit(1)
	}

	logger.Info("starting lead tracker worker", "backlog_cron", cfg.Worker.BacklogCron)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	pipeline := crmsync.NewPipeline(db,
		crmsync.NewWebhookClient(cfg.CRM.WebhookURL, cfg.CRM.APIKey, cfg.CRM.Timeout()),
		crmsync.ConfigFrom(&cfg.CRM),
		logger,
	)

	// Create Asynq server and register handlers
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)
	mux := asynq.NewServeMux()
	tasks.NewHandler(db, logger, pipeline).RegisterHandlers(mux)

	// The backlog report is enqueued rather than run inline so a single
	// worker process handles it even when several are scheduled.
	client := queue.NewClient(&cfg.Redis)
	defer client.Close()

	scheduler := util.NewScheduler(logger)
	scheduler.Schedule(backlogSchedule, cron.FuncJob(func() {
		if _, err := client.Enqueue(tasks.NewBacklogReportTask()); err != nil {
			logger.Error("failed to enqueue backlog report", "error", err)
		}
	}))
	logger.Info("backlog report scheduled", "next_run", backlogSchedule.Next(time.Now().UTC()))

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		<-scheduler.Stop().Done()
		srv.Shutdown()
		cancel()
	}()

	scheduler.Start()
	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
