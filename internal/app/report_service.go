package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// ReportService provides read access to reports and the two merge
// entry points that create fingerprint-only jobs.
type ReportService struct {
	repo     report.Repository
	scanRepo scan.Repository
	enqueuer JobEnqueuer
	logger   *logger.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(repo report.Repository, scanRepo scan.Repository, enqueuer JobEnqueuer, log *logger.Logger) *ReportService {
	return &ReportService{
		repo:     repo,
		scanRepo: scanRepo,
		enqueuer: enqueuer,
		logger:   log.With("service", "report"),
	}
}

// GetDetails returns a details report by its integer ID.
func (s *ReportService) GetDetails(ctx context.Context, id int64) (*report.DetailsReport, error) {
	return s.repo.GetDetails(ctx, id)
}

// GetDeployments returns a deployments report by its details report ID.
func (s *ReportService) GetDeployments(ctx context.Context, id int64) (*report.DeploymentsReport, error) {
	return s.repo.GetDeployments(ctx, id)
}

// MergeFromFacts accepts externally supplied raw facts, stores them as a
// details report and schedules a fingerprint-only job over it.
func (s *ReportService) MergeFromFacts(ctx context.Context, sources []report.SourceFacts) (*scan.ScanJob, error) {
	details, err := report.NewDetailsReport(nil, sources)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDetails(ctx, details); err != nil {
		return nil, err
	}
	return s.scheduleFingerprint(ctx, details.ID)
}

// MergeReports merges existing details reports into a new one and
// schedules a fingerprint-only job over the result.
//
// The reports value is the decoded JSON body field; it is validated here
// because the error vocabulary distinguishes shape problems (not a list,
// not integers) from content problems (too short, duplicates, unknown
// IDs).
func (s *ReportService) MergeReports(ctx context.Context, reports any) (*scan.ScanJob, error) {
	ids, err := parseMergeIDs(reports)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, fmt.Sprintf("%d", id))
		}
	}
	if len(missing) > 0 {
		return nil, shared.NewValidationError("REPORT_MERGE_NOT_FOUND",
			"report(s) not found: "+strings.Join(missing, ", "))
	}

	loaded := make([]*report.DetailsReport, 0, len(ids))
	for _, id := range ids {
		r, err := s.repo.GetDetails(ctx, id)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, r)
	}

	merged, err := report.Merge(loaded...)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDetails(ctx, merged); err != nil {
		return nil, err
	}

	job, err := s.scheduleFingerprint(ctx, merged.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reports merged",
		"report_id", merged.ID, "job_id", job.ID.String(), "merged", len(ids))
	return job, nil
}

// scheduleFingerprint creates and enqueues a fingerprint-only job bound
// to an existing details report.
func (s *ReportService) scheduleFingerprint(ctx context.Context, detailsID int64) (*scan.ScanJob, error) {
	job, err := scan.NewJob(scan.TypeFingerprint, nil, scan.Options{})
	if err != nil {
		return nil, err
	}
	job.SetReport(detailsID)
	if err := job.Queue(nil); err != nil {
		return nil, err
	}
	if err := s.scanRepo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.enqueuer.EnqueueScanJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// parseMergeIDs validates the reports field of a merge request.
func parseMergeIDs(reports any) ([]int64, error) {
	if reports == nil {
		return nil, shared.NewValidationError("REPORT_MERGE_REQUIRED", "reports field is required")
	}
	list, ok := reports.([]any)
	if !ok {
		return nil, shared.NewValidationError("REPORT_MERGE_NOT_LIST", "reports must be a list")
	}
	if len(list) < 2 {
		return nil, shared.NewValidationError("REPORT_MERGE_TOO_SHORT", "at least two reports are required")
	}

	ids := make([]int64, 0, len(list))
	seen := make(map[int64]bool, len(list))
	for _, el := range list {
		id, ok := mergeID(el)
		if !ok {
			return nil, shared.NewValidationError("REPORT_MERGE_NOT_INT", "report IDs must be integers")
		}
		if seen[id] {
			return nil, shared.NewValidationError("REPORT_MERGE_NOT_UNIQUE", "report IDs must be unique")
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// mergeID coerces one decoded JSON element to an integer report ID.
// encoding/json yields float64 for numbers and json.Number when the
// decoder is configured that way; both forms are accepted.
func mergeID(el any) (int64, bool) {
	switch v := el.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
