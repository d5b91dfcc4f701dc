package scan

import (
	"time"

	"github.com/hostscout/api/pkg/domain/shared"
)

// ScanTask is one (source, phase) unit of work inside a scan job.
// The fingerprint task has no source.
type ScanTask struct {
	ID       shared.ID
	JobID    shared.ID
	SourceID *shared.ID

	ScanType       ScanType
	Status         Status
	StatusMessage  string
	SequenceNumber int

	// Tasks that must reach completed before this one may start.
	PrerequisiteIDs []shared.ID

	SystemsCount       int
	SystemsScanned     int
	SystemsFailed      int
	SystemsUnreachable int

	StartTime *time.Time
	EndTime   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a pending task for a source and phase.
func NewTask(jobID shared.ID, sourceID *shared.ID, scanType ScanType, sequence int) *ScanTask {
	now := time.Now()
	return &ScanTask{
		ID:             shared.NewID(),
		JobID:          jobID,
		SourceID:       sourceID,
		ScanType:       scanType,
		Status:         StatusPending,
		SequenceNumber: sequence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// transition applies a transition against the task rule table.
func (t *ScanTask) transition(tr Transition) error {
	if err := checkTransition("scan task "+t.ID.String(), taskTransitions, t.Status, tr); err != nil {
		return err
	}
	t.Status = transitionTarget[tr]
	t.UpdatedAt = time.Now()
	return nil
}

// Start marks the task running and stamps its start time.
func (t *ScanTask) Start() error {
	if err := t.transition(TransitionStart); err != nil {
		return err
	}
	now := time.Now()
	t.StartTime = &now
	return nil
}

// Restart moves a paused task back to pending so the execution engine
// picks it up again.
func (t *ScanTask) Restart() error {
	if err := checkTransition("scan task "+t.ID.String(), taskTransitions, t.Status, TransitionRestart); err != nil {
		return err
	}
	t.Status = StatusPending
	t.UpdatedAt = time.Now()
	return nil
}

// Pause suspends the task unless it is already in a terminal state.
func (t *ScanTask) Pause() error {
	return t.transition(TransitionPause)
}

// Cancel cancels the task and stamps its end time.
func (t *ScanTask) Cancel() error {
	if err := t.transition(TransitionCancel); err != nil {
		return err
	}
	now := time.Now()
	t.EndTime = &now
	return nil
}

// Complete marks the task completed and stamps its end time.
func (t *ScanTask) Complete(message string) error {
	if err := t.transition(TransitionComplete); err != nil {
		return err
	}
	now := time.Now()
	t.EndTime = &now
	t.StatusMessage = message
	return nil
}

// Fail marks the task failed with a free-text message.
func (t *ScanTask) Fail(message string) error {
	if err := t.transition(TransitionFail); err != nil {
		return err
	}
	now := time.Now()
	t.EndTime = &now
	t.StatusMessage = message
	return nil
}

// SetCounts updates the per-system counters.
func (t *ScanTask) SetCounts(count, scanned, failed, unreachable int) {
	t.SystemsCount = count
	t.SystemsScanned = scanned
	t.SystemsFailed = failed
	t.SystemsUnreachable = unreachable
	t.UpdatedAt = time.Now()
}

// IncrementStats bumps the counters for one processed system.
func (t *ScanTask) IncrementStats(status SystemStatus) {
	switch status {
	case SystemStatusSuccess:
		t.SystemsScanned++
	case SystemStatusFailed:
		t.SystemsFailed++
	case SystemStatusUnreachable:
		t.SystemsUnreachable++
	}
	t.UpdatedAt = time.Now()
}
