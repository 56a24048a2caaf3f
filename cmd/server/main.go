package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/internal/config"
	httpserver "github.com/K4R7IK/vulnmanage/internal/infra/http"
	"github.com/K4R7IK/vulnmanage/internal/infra/http/handler"
	"github.com/K4R7IK/vulnmanage/internal/infra/jobs"
	"github.com/K4R7IK/vulnmanage/internal/infra/postgres"
	"github.com/K4R7IK/vulnmanage/internal/infra/redis"
	"github.com/K4R7IK/vulnmanage/internal/infra/scheduler"
	"github.com/K4R7IK/vulnmanage/internal/infra/storage"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
	"github.com/K4R7IK/vulnmanage/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// Infrastructure
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()
	log.Info("database connected")

	if applied, err := postgres.NewMigrator(db).Up(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		return 1
	} else if len(applied) > 0 {
		log.Info("migrations applied", "versions", applied)
	}

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer redisClient.Close()

	// Repositories
	findingRepo := postgres.NewFindingRepository(db, cfg.Import.TxTimeout)
	companyRepo := postgres.NewCompanyRepository(db)
	summaryRepo := postgres.NewSummaryRepository(db)
	slaRepo := postgres.NewSLAPolicyRepository(db)
	importLocker := postgres.NewImportLocker(db)
	progressStore := redis.NewProgressStore(redisClient, cfg.Import.ProgressTTL)

	// Services
	summaryService := app.NewSummaryService(findingRepo, summaryRepo, companyRepo, log)
	companyService := app.NewCompanyService(companyRepo, log)
	slaService := app.NewSLAService(slaRepo, findingRepo, log)

	var importOpts []ingest.Option
	if cfg.Storage.Enabled {
		archiver, err := storage.New(ctx, &cfg.Storage, log)
		if err != nil {
			log.Error("failed to initialize upload archiver", "error", err)
			return 1
		}
		importOpts = append(importOpts, ingest.WithArchiver(archiver))
	}

	importService := ingest.NewService(
		findingRepo,
		importLocker,
		summaryService,
		progressStore,
		cfg.Import.ChunkSize,
		log,
		importOpts...,
	)

	// Background workers
	var jobClient *jobs.Client
	var worker *jobs.Worker
	if cfg.Worker.Enabled {
		jobClient = jobs.NewClient(jobs.ClientConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
		}, log)
		defer jobClient.Close()

		worker = jobs.NewWorker(jobs.WorkerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Worker.Concurrency,
		}, importService, log)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(&cfg.Scheduler, summaryService, log)
		if err != nil {
			log.Error("failed to initialize scheduler", "error", err)
			return 1
		}
	}

	// HTTP
	v := validator.New()
	router := httpserver.NewRouter(httpserver.Handlers{
		Company: handler.NewCompanyHandler(companyService, v, log),
		Import:  handler.NewImportHandler(importService, jobClient, progressStore, v, log),
		Summary: handler.NewSummaryHandler(summaryService, log),
		Finding: handler.NewFindingHandler(findingRepo, log),
		SLA:     handler.NewSLAHandler(slaService, v, log),
		Health:  handler.NewHealthHandler(db, redisClient, log),
	}, cfg.Server.MaxUploadSize, log)

	server := httpserver.NewServer(&cfg.Server, router, log)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()
	if worker != nil {
		go func() {
			errCh <- worker.Start()
		}()
	}
	if sched != nil {
		sched.Start()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	if sched != nil {
		sched.Stop()
	}
	if worker != nil {
		worker.Shutdown()
	}
	if err := server.Shutdown(); err != nil {
		log.Error("http shutdown failed", "error", err)
		return 1
	}

	log.Info("shutdown complete")
	return 0
}
