package scanner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/pkg/crypto"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

// Manager drives a scan job: it orders tasks by sequence and
// prerequisite edges, selects runners, applies the interrupt protocol,
// and settles the job's final status.
type Manager struct {
	scanRepo   scan.Repository
	sourceRepo source.Repository
	credRepo   credential.Repository
	store      Store
	registry   *Registry
	encryptor  crypto.Encryptor
	interrupts *InterruptHub
	logger     *logger.Logger
}

// NewManager creates a scan manager.
func NewManager(
	scanRepo scan.Repository,
	sourceRepo source.Repository,
	credRepo credential.Repository,
	store Store,
	registry *Registry,
	encryptor crypto.Encryptor,
	interrupts *InterruptHub,
	log *logger.Logger,
) *Manager {
	return &Manager{
		scanRepo:   scanRepo,
		sourceRepo: sourceRepo,
		credRepo:   credRepo,
		store:      store,
		registry:   registry,
		encryptor:  encryptor,
		interrupts: interrupts,
		logger:     log.With("component", "scan_manager"),
	}
}

// RunJob executes a queued (or restarted) scan job to a settled state:
// completed, failed, paused or canceled.
func (m *Manager) RunJob(ctx context.Context, jobID shared.ID) error {
	job, err := m.scanRepo.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load scan job %s: %w", jobID, err)
	}
	log := m.logger.With("job_id", job.ID.String(), "scan_type", job.ScanType.String())

	if err := job.Start(); err != nil {
		if scan.IsNoOpTransition(err) {
			log.Debug("job already running", "status", job.Status.String())
		} else {
			log.Error("cannot start job", "status", job.Status.String(), "error", err)
			return nil
		}
	}
	if err := m.scanRepo.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	interrupt := m.interrupts.Get(job.ID)
	defer m.interrupts.Release(job.ID)

	for {
		if suspended, err := m.observeInterrupt(ctx, job, interrupt, log); suspended || err != nil {
			return err
		}

		runnable := job.RunnableTasks()
		if len(runnable) == 0 {
			break
		}

		for _, task := range runnable {
			status, err := m.runTask(ctx, job, task, interrupt, log)
			if err != nil {
				log.Error("task execution error", "task_id", task.ID.String(), "error", err)
			}
			if status == scan.StatusPaused || status == scan.StatusCanceled {
				return m.suspendJob(ctx, job, status, log)
			}
		}

		// The inspect phase hands off to fingerprinting explicitly:
		// once every inspect task is terminal and at least one
		// completed, a fingerprint task joins the job.
		if job.ScanType == scan.TypeInspect && m.readyForFingerprint(job) {
			task := job.AddFingerprintTask()
			if err := m.scanRepo.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to save fingerprint task: %w", err)
			}
			log.Info("fingerprint task queued", "task_id", task.ID.String())
		}
	}

	return m.finishJob(ctx, job, log)
}

// observeInterrupt applies a pending pause or cancel between tasks.
func (m *Manager) observeInterrupt(ctx context.Context, job *scan.ScanJob, interrupt *Interrupt, log *logger.Logger) (bool, error) {
	switch interrupt.Observe() {
	case SignalPause:
		return true, m.suspendJob(ctx, job, scan.StatusPaused, log)
	case SignalCancel:
		return true, m.suspendJob(ctx, job, scan.StatusCanceled, log)
	}
	return false, nil
}

// runTask executes one task through its runner, with the framework
// bookkeeping: running on entry, complete/fail per the returned status,
// fail + stack trace + re-raise on panic.
func (m *Manager) runTask(ctx context.Context, job *scan.ScanJob, task *scan.ScanTask, interrupt *Interrupt, log *logger.Logger) (status scan.Status, err error) {
	tc, err := m.taskContext(ctx, job, task)
	if err != nil {
		m.failTask(ctx, task, err.Error(), log)
		return scan.StatusFailed, err
	}

	factory, err := m.registry.Lookup(sourceTypeOf(tc), task.ScanType)
	if err != nil {
		m.failTask(ctx, task, err.Error(), log)
		return scan.StatusFailed, err
	}
	runner := factory(tc, m.store)

	if err := task.Start(); err != nil {
		log.Error("cannot start task", "task_id", task.ID.String(), "error", err)
		return task.Status, nil
	}
	if err := m.store.SaveTask(ctx, task); err != nil {
		return scan.StatusFailed, fmt.Errorf("failed to save task: %w", err)
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.failTask(ctx, task, fmt.Sprintf("%v", r), log)
			log.Error("task panicked", "task_id", task.ID.String(),
				"panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
			panic(r)
		}
		metrics.ScanTaskDuration.WithLabelValues(sourceTypeOf(tc).String(), task.ScanType.String()).
			Observe(time.Since(started).Seconds())
	}()

	message, status, err := runner.Execute(ctx, interrupt)
	if err != nil {
		m.failTask(ctx, task, fmt.Sprintf("%T: %v", err, err), log)
		return scan.StatusFailed, err
	}

	switch status {
	case scan.StatusCompleted:
		if err := task.Complete(message); err != nil {
			log.Error("cannot complete task", "task_id", task.ID.String(), "error", err)
		}
	case scan.StatusFailed:
		if err := task.Fail(message); err != nil {
			log.Error("cannot fail task", "task_id", task.ID.String(), "error", err)
		}
	case scan.StatusPaused:
		task.StatusMessage = message
		if err := task.Pause(); err != nil {
			log.Error("cannot pause task", "task_id", task.ID.String(), "error", err)
		}
	case scan.StatusCanceled:
		task.StatusMessage = message
		if err := task.Cancel(); err != nil {
			log.Error("cannot cancel task", "task_id", task.ID.String(), "error", err)
		}
	default:
		m.failTask(ctx, task, fmt.Sprintf("runner returned unexpected status %s", status), log)
		status = scan.StatusFailed
	}

	if err := m.store.SaveTask(ctx, task); err != nil {
		return status, fmt.Errorf("failed to save task: %w", err)
	}
	log.Info("task settled", "task_id", task.ID.String(),
		"scan_type", task.ScanType.String(), "status", task.Status.String(),
		"message", message)
	return status, nil
}

// taskContext loads and decrypts everything the runner needs.
func (m *Manager) taskContext(ctx context.Context, job *scan.ScanJob, task *scan.ScanTask) (TaskContext, error) {
	tc := TaskContext{Job: job, Task: task, Options: job.Options}
	if task.SourceID == nil {
		return tc, nil
	}

	src, err := m.sourceRepo.GetByID(ctx, *task.SourceID)
	if err != nil {
		return tc, fmt.Errorf("failed to load source: %w", err)
	}
	tc.Source = src

	for _, credID := range src.CredentialIDs {
		cred, err := m.credRepo.GetByID(ctx, credID)
		if err != nil {
			return tc, fmt.Errorf("failed to load credential: %w", err)
		}
		if err := cred.DecryptSecrets(m.encryptor); err != nil {
			return tc, fmt.Errorf("failed to decrypt credential %s: %w", cred.Name, err)
		}
		tc.Credentials = append(tc.Credentials, cred)
	}
	return tc, nil
}

func (m *Manager) failTask(ctx context.Context, task *scan.ScanTask, message string, log *logger.Logger) {
	if err := task.Fail(message); err != nil && !scan.IsNoOpTransition(err) {
		log.Error("cannot fail task", "task_id", task.ID.String(), "error", err)
		return
	}
	if err := m.store.SaveTask(ctx, task); err != nil {
		log.Error("failed to save failed task", "task_id", task.ID.String(), "error", err)
	}
}

// suspendJob pauses or cancels the job, cascading to its tasks.
func (m *Manager) suspendJob(ctx context.Context, job *scan.ScanJob, status scan.Status, log *logger.Logger) error {
	var err error
	if status == scan.StatusCanceled {
		err = job.Cancel()
	} else {
		err = job.Pause()
	}
	if err != nil {
		if scan.IsNoOpTransition(err) {
			log.Debug("job already suspended", "status", job.Status.String())
		} else {
			log.Error("cannot suspend job", "target", status.String(), "error", err)
		}
	}
	if saveErr := m.scanRepo.SaveJob(ctx, job); saveErr != nil {
		return fmt.Errorf("failed to save suspended job: %w", saveErr)
	}
	log.Info("job suspended", "status", job.Status.String())
	return nil
}

// readyForFingerprint reports whether the fingerprint handoff should
// happen: no fingerprint task yet, every inspect task terminal, at
// least one completed.
func (m *Manager) readyForFingerprint(job *scan.ScanJob) bool {
	completed := false
	for _, t := range job.Tasks {
		switch t.ScanType {
		case scan.TypeFingerprint:
			return false
		case scan.TypeInspect:
			if !t.Status.IsTerminal() {
				return false
			}
			if t.Status == scan.StatusCompleted {
				completed = true
			}
		}
	}
	return completed
}

// finishJob flips the job to its final status: completed when at least
// one task completed with at least one scanned system (or, for
// fingerprint jobs, a completed fingerprint task), failed otherwise.
func (m *Manager) finishJob(ctx context.Context, job *scan.ScanJob, log *logger.Logger) error {
	anyCompleted := false
	for _, t := range job.Tasks {
		if t.Status != scan.StatusCompleted {
			continue
		}
		if t.ScanType == scan.TypeFingerprint || t.SystemsScanned > 0 || t.SystemsCount > 0 {
			anyCompleted = true
			break
		}
	}

	var err error
	if anyCompleted {
		err = job.Complete()
	} else {
		err = job.Fail("all scan tasks failed")
	}
	if err != nil {
		if scan.IsNoOpTransition(err) {
			log.Debug("job already settled", "status", job.Status.String())
		} else {
			log.Error("cannot settle job", "status", job.Status.String(), "error", err)
		}
	}
	if saveErr := m.scanRepo.SaveJob(ctx, job); saveErr != nil {
		return fmt.Errorf("failed to save finished job: %w", saveErr)
	}

	stats := job.CalculateStats()
	log.Info("scan job finished",
		"status", job.Status.String(),
		"systems_count", intOrZero(stats.SystemsCount),
		"systems_scanned", intOrZero(stats.SystemsScanned),
		"systems_failed", intOrZero(stats.SystemsFailed),
		"systems_unreachable", intOrZero(stats.SystemsUnreachable),
	)
	metrics.ScanJobsTotal.WithLabelValues(job.ScanType.String(), job.Status.String()).Inc()
	return nil
}

func sourceTypeOf(tc TaskContext) source.Type {
	if tc.Source != nil {
		return tc.Source.Type
	}
	return ""
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
