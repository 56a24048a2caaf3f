// Package jobs manages background job enqueueing and processing with
// Asynq.
package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueImportCSV enqueues a CSV import job.
func (c *Client) EnqueueImportCSV(ctx context.Context, payload ImportCSVPayload, csvData []byte) error {
	task, err := NewImportCSVTask(payload, csvData)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue import",
			"operation_id", payload.OperationID,
			"company_id", payload.CompanyID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("import queued",
		"task_id", info.ID,
		"operation_id", payload.OperationID,
		"company_id", payload.CompanyID,
		"period", payload.PeriodLabel,
		"queue", info.Queue,
	)
	return nil
}
