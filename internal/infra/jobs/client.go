package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
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

// EnqueueScanJob enqueues a scan job for execution.
func (c *Client) EnqueueScanJob(ctx context.Context, jobID shared.ID) error {
	task, err := NewScanJobTask(jobID.String())
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue scan job",
			"job_id", jobID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("scan job queued",
		"task_id", info.ID,
		"job_id", jobID.String(),
		"queue", info.Queue,
	)
	return nil
}
