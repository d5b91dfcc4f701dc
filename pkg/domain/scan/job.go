package scan

import (
	"time"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

// ScanJob is one execution of a scan over a set of sources.
type ScanJob struct {
	ID shared.ID

	// Parent scan definition, when the job was spawned from one.
	ScanID *shared.ID

	ScanType      ScanType
	Status        Status
	StatusMessage string

	SourceIDs []shared.ID
	Options   Options

	// Loaded tasks, ordered by sequence number. Kept relational in
	// storage; populated by the repository on demand.
	Tasks []*ScanTask

	StartTime *time.Time
	EndTime   *time.Time

	// Set when the fingerprint phase completes.
	ReportID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJob creates a scan job in the created state.
func NewJob(scanType ScanType, sourceIDs []shared.ID, opts Options) (*ScanJob, error) {
	if !scanType.IsValid() {
		return nil, shared.NewValidationError("VALIDATION", "invalid scan_type")
	}
	if scanType != TypeFingerprint && len(sourceIDs) == 0 {
		return nil, shared.NewValidationError("VALIDATION", "at least one source is required")
	}
	opts.Normalize()

	now := time.Now()
	return &ScanJob{
		ID:        shared.NewID(),
		ScanType:  scanType,
		Status:    StatusCreated,
		SourceIDs: sourceIDs,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// transition applies a transition against the job rule table.
func (j *ScanJob) transition(tr Transition) error {
	if err := checkTransition("scan job "+j.ID.String(), jobTransitions, j.Status, tr); err != nil {
		return err
	}
	j.Status = transitionTarget[tr]
	j.UpdatedAt = time.Now()
	return nil
}

// Queue copies the job configuration into the job record, replaces any
// partially created prior tasks, and moves the job to pending.
//
// For every source a connect task is created with an ascending sequence
// number; inspect jobs additionally get one inspect task per source with
// the connect task as prerequisite. Fingerprint-only jobs get a single
// fingerprint task.
func (j *ScanJob) Queue(sources []*source.Source) error {
	if err := j.transition(TransitionQueue); err != nil {
		return err
	}

	j.Tasks = j.Tasks[:0]
	seq := 0

	if j.ScanType == TypeFingerprint {
		j.Tasks = append(j.Tasks, NewTask(j.ID, nil, TypeFingerprint, seq))
		return nil
	}

	connectBySource := make(map[shared.ID]shared.ID, len(sources))
	for _, src := range sources {
		task := NewTask(j.ID, &src.ID, TypeConnect, seq)
		connectBySource[src.ID] = task.ID
		j.Tasks = append(j.Tasks, task)
		seq++
	}

	if j.ScanType == TypeInspect {
		for _, src := range sources {
			task := NewTask(j.ID, &src.ID, TypeInspect, seq)
			task.PrerequisiteIDs = []shared.ID{connectBySource[src.ID]}
			j.Tasks = append(j.Tasks, task)
			seq++
		}
	}
	return nil
}

// AddFingerprintTask appends the fingerprint task that runs after every
// inspect task has finished. The inspect task IDs become prerequisites.
func (j *ScanJob) AddFingerprintTask() *ScanTask {
	seq := len(j.Tasks)
	task := NewTask(j.ID, nil, TypeFingerprint, seq)
	for _, t := range j.Tasks {
		if t.ScanType == TypeInspect {
			task.PrerequisiteIDs = append(task.PrerequisiteIDs, t.ID)
		}
	}
	j.Tasks = append(j.Tasks, task)
	j.UpdatedAt = time.Now()
	return task
}

// Start marks the job running and stamps its start time.
func (j *ScanJob) Start() error {
	if err := j.transition(TransitionStart); err != nil {
		return err
	}
	now := time.Now()
	j.StartTime = &now
	return nil
}

// Restart resumes a pending, paused or running job. Every paused task is
// moved back to pending so the execution engine picks it up again.
func (j *ScanJob) Restart() error {
	if err := checkTransition("scan job "+j.ID.String(), jobTransitions, j.Status, TransitionRestart); err != nil {
		return err
	}
	j.Status = StatusRunning
	j.UpdatedAt = time.Now()
	for _, t := range j.Tasks {
		if t.Status == StatusPaused {
			// Restart on a paused task cannot fail.
			_ = t.Restart()
		}
	}
	return nil
}

// Pause suspends the job and cascades to every task not already in a
// terminal state.
func (j *ScanJob) Pause() error {
	if err := j.transition(TransitionPause); err != nil {
		return err
	}
	for _, t := range j.Tasks {
		if !t.Status.IsTerminal() {
			_ = t.Pause()
		}
	}
	return nil
}

// Cancel cancels the job, stamps its end time and cascades to every task
// not already in a terminal state.
func (j *ScanJob) Cancel() error {
	if err := j.transition(TransitionCancel); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	for _, t := range j.Tasks {
		if !t.Status.IsTerminal() {
			_ = t.Cancel()
		}
	}
	return nil
}

// Complete marks the job completed and stamps its end time.
func (j *ScanJob) Complete() error {
	if err := j.transition(TransitionComplete); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	return nil
}

// Fail marks the job failed, recording a free-text message.
func (j *ScanJob) Fail(message string) error {
	if err := j.transition(TransitionFail); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	j.StatusMessage = message
	return nil
}

// SetReport records the report produced by the fingerprint phase.
func (j *ScanJob) SetReport(reportID int64) {
	j.ReportID = &reportID
	j.UpdatedAt = time.Now()
}

// Stats is the per-job aggregation of task counters.
type Stats struct {
	SystemsCount       *int `json:"systems_count"`
	SystemsScanned     *int `json:"systems_scanned"`
	SystemsFailed      *int `json:"systems_failed"`
	SystemsUnreachable *int `json:"systems_unreachable"`
}

// CalculateStats aggregates counters across the job's tasks. Values are
// nil while the job has not started.
//
// For a connect-only scan all four counters come from the connect tasks.
// For an inspect scan the denominator (systems_count) comes from connect
// tasks, the numerator (systems_scanned) from inspect tasks, and failures
// and unreachables are summed across both phases.
func (j *ScanJob) CalculateStats() Stats {
	if j.Status == StatusCreated || j.Status == StatusPending {
		return Stats{}
	}

	var count, scanned, failed, unreachable int
	for _, t := range j.Tasks {
		switch t.ScanType {
		case TypeConnect:
			count += t.SystemsCount
			if j.ScanType == TypeConnect {
				scanned += t.SystemsScanned
			}
			failed += t.SystemsFailed
			unreachable += t.SystemsUnreachable
		case TypeInspect:
			scanned += t.SystemsScanned
			failed += t.SystemsFailed
			unreachable += t.SystemsUnreachable
		}
	}
	return Stats{
		SystemsCount:       &count,
		SystemsScanned:     &scanned,
		SystemsFailed:      &failed,
		SystemsUnreachable: &unreachable,
	}
}

// TaskByID returns the loaded task with the given ID, or nil.
func (j *ScanJob) TaskByID(id shared.ID) *ScanTask {
	for _, t := range j.Tasks {
		if t.ID.Equals(id) {
			return t
		}
	}
	return nil
}

// RunnableTasks returns pending tasks whose prerequisites have all
// completed, in sequence order.
func (j *ScanJob) RunnableTasks() []*ScanTask {
	var out []*ScanTask
	for _, t := range j.Tasks {
		if t.Status != StatusPending {
			continue
		}
		ready := true
		for _, pre := range t.PrerequisiteIDs {
			dep := j.TaskByID(pre)
			if dep == nil || dep.Status != StatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t)
		}
	}
	return out
}
