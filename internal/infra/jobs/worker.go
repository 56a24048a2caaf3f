package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a new background job worker.
func NewWorker(cfg WorkerConfig, importService *ingest.Service, log *logger.Logger) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueImports: 10,
				"default":    5,
			},
		},
	)

	mux := asynq.NewServeMux()

	importHandler := NewImportTaskHandler(importService, log)
	mux.HandleFunc(TypeImportCSV, importHandler.HandleImportCSV)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log.With("component", "job_worker"),
	}
}

// Start begins processing jobs. Blocks until Shutdown is called.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Run(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down job worker")
	w.server.Shutdown()
}
