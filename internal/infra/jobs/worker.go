package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// JobRunner executes one scan job to a settled state. Implemented by
// the scanner manager.
type JobRunner interface {
	RunJob(ctx context.Context, jobID shared.ID) error
}

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

// NewWorker creates a new background job worker wired to the runner.
func NewWorker(cfg WorkerConfig, runner JobRunner, log *logger.Logger) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				ScanQueue: 10,
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	handler := &scanJobHandler{runner: runner, logger: log.With("component", "scan_job_handler")}
	mux.HandleFunc(TypeScanJobRun, handler.Handle)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log,
	}
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until shutdown.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}

type scanJobHandler struct {
	runner JobRunner
	logger *logger.Logger
}

// Handle executes one scan job task. Errors from the runner settle in
// the job's own status; only payload corruption is surfaced to asynq.
func (h *scanJobHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ScanJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal scan job payload: %w", err)
	}

	jobID, err := shared.IDFromString(payload.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", payload.JobID, err)
	}

	h.logger.Info("processing scan job", "job_id", payload.JobID)
	if err := h.runner.RunJob(ctx, jobID); err != nil {
		h.logger.Error("scan job execution failed", "job_id", payload.JobID, "error", err)
		return err
	}
	return nil
}
