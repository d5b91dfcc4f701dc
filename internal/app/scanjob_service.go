package app

import (
	"context"
	"fmt"

	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/pagination"
)

// JobEnqueuer hands a queued scan job to the worker pool.
type JobEnqueuer interface {
	EnqueueScanJob(ctx context.Context, jobID shared.ID) error
}

// SignalPublisher delivers pause and cancel requests to whichever
// process runs the job.
type SignalPublisher interface {
	PublishPause(ctx context.Context, jobID shared.ID) error
	PublishCancel(ctx context.Context, jobID shared.ID) error
}

// ScanJobService provides business logic for scan job orchestration.
// State transitions follow the shared rule table: an invalid transition
// is an error and logs at ERROR; an idempotent one logs at DEBUG and
// succeeds.
type ScanJobService struct {
	repo       scan.Repository
	sourceRepo source.Repository
	enqueuer   JobEnqueuer
	signals    SignalPublisher
	logger     *logger.Logger
}

// NewScanJobService creates a new ScanJobService.
func NewScanJobService(repo scan.Repository, sourceRepo source.Repository, enqueuer JobEnqueuer, signals SignalPublisher, log *logger.Logger) *ScanJobService {
	return &ScanJobService{
		repo:       repo,
		sourceRepo: sourceRepo,
		enqueuer:   enqueuer,
		signals:    signals,
		logger:     log.With("service", "scanjob"),
	}
}

// StartScanInput represents input for starting a scan.
type StartScanInput struct {
	ScanType string       `json:"scan_type" validate:"required,scan_type"`
	Sources  []string     `json:"sources" validate:"required,min=1"`
	Options  scan.Options `json:"options"`
}

// Start creates a scan job over the given sources, queues its tasks
// and hands it to the worker pool.
func (s *ScanJobService) Start(ctx context.Context, input StartScanInput) (*scan.ScanJob, error) {
	scanType, err := scan.ParseScanType(input.ScanType)
	if err != nil {
		return nil, shared.NewValidationError("VALIDATION", err.Error())
	}

	var sourceIDs []shared.ID
	var sources []*source.Source
	for _, raw := range input.Sources {
		id, err := shared.IDFromString(raw)
		if err != nil {
			return nil, shared.NewValidationError("VALIDATION", fmt.Sprintf("invalid source id: %s", raw))
		}
		src, err := s.sourceRepo.GetByID(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.NewValidationError("VALIDATION", fmt.Sprintf("source %s does not exist", raw))
			}
			return nil, err
		}
		sourceIDs = append(sourceIDs, id)
		sources = append(sources, src)
	}

	job, err := scan.NewJob(scanType, sourceIDs, input.Options)
	if err != nil {
		return nil, err
	}
	if err := job.Queue(sources); err != nil {
		return nil, err
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if scanType == scan.TypeConnect || scanType == scan.TypeInspect {
		for _, src := range sources {
			src.MarkConnectScan(job.ID)
			if err := s.sourceRepo.Update(ctx, src); err != nil {
				s.logger.Warn("failed to record connect scan on source",
					"source_id", src.ID.String(), "error", err)
			}
		}
	}

	if err := s.enqueuer.EnqueueScanJob(ctx, job.ID); err != nil {
		return nil, err
	}

	s.logger.Info("scan job started",
		"job_id", job.ID.String(),
		"scan_type", scanType.String(),
		"sources", len(sources),
	)
	return job, nil
}

// Get returns a scan job with its tasks.
func (s *ScanJobService) Get(ctx context.Context, id shared.ID) (*scan.ScanJob, error) {
	return s.repo.GetJob(ctx, id)
}

// List lists scan jobs.
func (s *ScanJobService) List(ctx context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.ScanJob], error) {
	return s.repo.ListJobs(ctx, filter, page)
}

// Pause suspends a running job: state first, then the signal to the
// process running it.
func (s *ScanJobService) Pause(ctx context.Context, id shared.ID) (*scan.ScanJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := job.Pause(); err != nil {
		if s.skipTransition(job, "pause", err) {
			return job, nil
		}
		return nil, err
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.signals.PublishPause(ctx, job.ID); err != nil {
		s.logger.Error("failed to publish pause signal", "job_id", id.String(), "error", err)
	}
	s.logger.Info("scan job paused", "job_id", id.String())
	return job, nil
}

// Cancel cancels a job.
func (s *ScanJobService) Cancel(ctx context.Context, id shared.ID) (*scan.ScanJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := job.Cancel(); err != nil {
		if s.skipTransition(job, "cancel", err) {
			return job, nil
		}
		return nil, err
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.signals.PublishCancel(ctx, job.ID); err != nil {
		s.logger.Error("failed to publish cancel signal", "job_id", id.String(), "error", err)
	}
	s.logger.Info("scan job canceled", "job_id", id.String())
	return job, nil
}

// Restart resumes a paused or stalled job and re-enqueues it.
func (s *ScanJobService) Restart(ctx context.Context, id shared.ID) (*scan.ScanJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := job.Restart(); err != nil {
		if s.skipTransition(job, "restart", err) {
			return job, nil
		}
		return nil, err
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.enqueuer.EnqueueScanJob(ctx, job.ID); err != nil {
		return nil, err
	}
	s.logger.Info("scan job restarted", "job_id", id.String())
	return job, nil
}

// Delete removes a settled job and its results.
func (s *ScanJobService) Delete(ctx context.Context, id shared.ID) error {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return shared.NewDomainError("CONFLICT", "cannot delete a job that has not settled", shared.ErrConflict)
	}
	if err := s.repo.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.logger.Info("scan job deleted", "job_id", id.String())
	return nil
}

// skipTransition classifies a transition error: no-ops are logged at
// DEBUG and absorbed, invalid transitions logged at ERROR and returned.
func (s *ScanJobService) skipTransition(job *scan.ScanJob, verb string, err error) bool {
	if scan.IsNoOpTransition(err) {
		s.logger.Debug("transition is a no-op",
			"job_id", job.ID.String(), "verb", verb, "status", job.Status.String())
		return true
	}
	s.logger.Error("invalid job transition",
		"job_id", job.ID.String(), "verb", verb, "status", job.Status.String(), "error", err)
	return false
}
