package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

var (
	errPaused   = errors.New("fingerprinting paused")
	errCanceled = errors.New("fingerprinting canceled")
)

// Runner executes the fingerprint task of a job: it assembles the
// details report from the job's inspection results (or loads a
// pre-built one for merge jobs), runs the engine, and persists the
// deployments report.
type Runner struct {
	tc         scanner.TaskContext
	store      scanner.Store
	engine     *Engine
	reportRepo report.Repository
	sourceRepo source.Repository
	serverID   string
	logger     *logger.Logger
}

// NewFactory builds the fingerprint runner factory. serverID is this
// deployment's stable identifier, stamped on every details report it
// assembles.
func NewFactory(engine *Engine, reportRepo report.Repository, sourceRepo source.Repository, serverID string, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &Runner{
			tc:         tc,
			store:      store,
			engine:     engine,
			reportRepo: reportRepo,
			sourceRepo: sourceRepo,
			serverID:   serverID,
			logger: log.With("component", "fingerprint_runner",
				"task_id", tc.Task.ID.String()),
		}
	}
}

// SupportsPartialResults reports that a resumed run recomputes from the
// start; fingerprinting is deterministic over its input.
func (r *Runner) SupportsPartialResults() bool { return false }

// Execute implements scanner.Runner.
func (r *Runner) Execute(ctx context.Context, interrupt *scanner.Interrupt) (string, scan.Status, error) {
	details, err := r.detailsReport(ctx)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	checkpoint := func(processed int) error {
		switch interrupt.Observe() {
		case scanner.SignalPause:
			return errPaused
		case scanner.SignalCancel:
			return errCanceled
		}
		return nil
	}

	result, err := r.engine.Process(details, checkpoint)
	if err != nil {
		switch {
		case errors.Is(err, errPaused):
			return "fingerprinting paused", scan.StatusPaused, nil
		case errors.Is(err, errCanceled):
			return "fingerprinting canceled", scan.StatusCanceled, nil
		}
		return "", scan.StatusFailed, err
	}

	masked := make([]*report.Fingerprint, len(result.Fingerprints))
	for i, fp := range result.Fingerprints {
		masked[i] = maskFingerprint(fp)
	}

	deployments := report.NewDeploymentsReport(details.ID)
	deployments.SetFingerprints(result.Fingerprints, masked)
	if err := r.reportRepo.SaveDeployments(ctx, deployments); err != nil {
		return "", scan.StatusFailed, fmt.Errorf("failed to save deployments report: %w", err)
	}

	r.tc.Job.SetReport(details.ID)
	r.tc.Task.SetCounts(result.TotalCount, result.ValidCount, result.InvalidCount, 0)
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	message := fmt.Sprintf("generated %d fingerprints (%d invalid) for report %d",
		result.ValidCount, result.InvalidCount, details.ID)
	if result.ValidCount == 0 {
		return message, scan.StatusFailed, nil
	}
	return message, scan.StatusCompleted, nil
}

// detailsReport loads the merge job's pre-built report, or assembles
// one from the job's inspection results.
func (r *Runner) detailsReport(ctx context.Context) (*report.DetailsReport, error) {
	if r.tc.Job.ReportID != nil {
		details, err := r.reportRepo.GetDetails(ctx, *r.tc.Job.ReportID)
		if err != nil {
			return nil, fmt.Errorf("failed to load details report %d: %w", *r.tc.Job.ReportID, err)
		}
		return details, nil
	}

	var sources []report.SourceFacts
	for _, task := range r.tc.Job.Tasks {
		if task.ScanType != scan.TypeInspect || task.SourceID == nil {
			continue
		}
		src, err := r.sourceRepo.GetByID(ctx, *task.SourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source: %w", err)
		}
		results, err := r.store.InspectionResults(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load inspection results: %w", err)
		}

		var facts []map[string]any
		for _, res := range results {
			if res.Status != scan.SystemStatusSuccess {
				continue
			}
			facts = append(facts, decodeFacts(res))
		}
		if len(facts) == 0 {
			continue
		}
		sources = append(sources, report.SourceFacts{
			ServerID:   r.serverID,
			SourceName: src.Name,
			SourceType: src.Type,
			Facts:      facts,
		})
	}

	details, err := report.NewDetailsReport(&r.tc.Job.ID, sources)
	if err != nil {
		return nil, fmt.Errorf("no inspection results to fingerprint: %w", err)
	}
	if err := r.reportRepo.CreateDetails(ctx, details); err != nil {
		return nil, fmt.Errorf("failed to save details report: %w", err)
	}
	return details, nil
}

// decodeFacts flattens an inspection result's raw facts to a plain
// map, decoding each JSON value.
func decodeFacts(res *scan.InspectionResult) map[string]any {
	facts := make(map[string]any, len(res.Facts))
	for _, f := range res.Facts {
		var v any
		if err := json.Unmarshal(f.Value, &v); err != nil {
			facts[f.Key] = string(f.Value)
			continue
		}
		facts[f.Key] = v
	}
	return facts
}
