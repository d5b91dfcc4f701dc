// Package jobs enqueues and processes background work using Asynq.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeScanJobRun is the task type for executing a scan job.
const TypeScanJobRun = "scan:job:run"

// ScanQueue is the dedicated queue for scan execution.
const ScanQueue = "scans"

// ScanJobPayload identifies the scan job a worker should run.
type ScanJobPayload struct {
	JobID string `json:"job_id"`
}

// NewScanJobTask creates a task for executing a scan job. Retries are
// disabled: a failed job is inspected and restarted through the API,
// not silently re-run.
func NewScanJobTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ScanJobPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal scan job payload: %w", err)
	}

	return asynq.NewTask(
		TypeScanJobRun,
		payload,
		asynq.MaxRetry(0),
		asynq.Queue(ScanQueue),
	), nil
}
