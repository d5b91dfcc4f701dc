// Package apisource provides the connect and inspect runners for the
// API-backed source types (vcenter, openshift, ansible, rhacs). Each
// source type contributes a Collector; the runner pair around it is
// shared.
package apisource

import (
	"context"
	"errors"
	"fmt"

	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// System is one inspected system with its raw facts in collection
// order.
type System struct {
	Name  string
	Facts []scan.RawFact
}

// Collector is the per-source-type API surface. Probe verifies
// reachability and authentication; Systems enumerates and inspects.
type Collector interface {
	Probe(ctx context.Context) error
	Systems(ctx context.Context) ([]System, error)
}

// CollectorFactory builds a collector bound to one task's source and
// credential.
type CollectorFactory func(tc scanner.TaskContext) (Collector, error)

// ErrAuthFailed marks a probe rejected by the remote API rather than a
// transport failure.
var ErrAuthFailed = errors.New("authentication failed")

// ConnectRunner probes the source's API endpoint.
type ConnectRunner struct {
	tc        scanner.TaskContext
	store     scanner.Store
	collector CollectorFactory
	logger    *logger.Logger
}

// NewConnectFactory builds the connect factory for one source type.
func NewConnectFactory(collector CollectorFactory, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &ConnectRunner{
			tc:        tc,
			store:     store,
			collector: collector,
			logger: log.With("component", "api_connect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
		}
	}
}

// SupportsPartialResults reports that the probe is rerun on resume.
func (r *ConnectRunner) SupportsPartialResults() bool { return false }

// Execute implements scanner.Runner.
func (r *ConnectRunner) Execute(ctx context.Context, _ *scanner.Interrupt) (string, scan.Status, error) {
	c, err := r.collector(r.tc)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	host := r.tc.Source.Hosts[0]
	if err := c.Probe(ctx); err != nil {
		status := scan.SystemStatusUnreachable
		if errors.Is(err, ErrAuthFailed) {
			status = scan.SystemStatusFailed
		}
		r.logger.Error("api probe failed", "host", host, "error", err)
		if recErr := r.record(ctx, host, status, nil); recErr != nil {
			return "", scan.StatusFailed, recErr
		}
		return fmt.Sprintf("cannot reach %s", host), scan.StatusFailed, nil
	}

	cred := r.tc.Credentials[0]
	if err := r.record(ctx, host, scan.SystemStatusSuccess, &cred.ID); err != nil {
		return "", scan.StatusFailed, err
	}
	r.tc.Task.SystemsCount = 1
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}
	return fmt.Sprintf("connected to %s", host), scan.StatusCompleted, nil
}

func (r *ConnectRunner) record(ctx context.Context, host string, status scan.SystemStatus, credID *shared.ID) error {
	res := scan.NewConnectionResult(r.tc.Task.ID, host, status, credID)
	if err := r.store.AddConnectionResult(ctx, res); err != nil {
		return fmt.Errorf("failed to record connection result: %w", err)
	}
	r.tc.Task.IncrementStats(status)
	metrics.SystemsProcessedTotal.WithLabelValues(r.tc.Source.Type.String(), status.String()).Inc()
	return nil
}

// InspectRunner records one inspection result per system the collector
// reports.
type InspectRunner struct {
	tc        scanner.TaskContext
	store     scanner.Store
	collector CollectorFactory
	logger    *logger.Logger
}

// NewInspectFactory builds the inspect factory for one source type.
func NewInspectFactory(collector CollectorFactory, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &InspectRunner{
			tc:        tc,
			store:     store,
			collector: collector,
			logger: log.With("component", "api_inspect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
		}
	}
}

// SupportsPartialResults reports that recorded systems are skipped on
// resume.
func (r *InspectRunner) SupportsPartialResults() bool { return true }

// Execute implements scanner.Runner.
func (r *InspectRunner) Execute(ctx context.Context, interrupt *scanner.Interrupt) (string, scan.Status, error) {
	c, err := r.collector(r.tc)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	systems, err := c.Systems(ctx)
	if err != nil {
		return "", scan.StatusFailed, fmt.Errorf("failed to enumerate systems: %w", err)
	}

	r.tc.Task.SystemsCount = len(systems)
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	for i, sys := range systems {
		// Enumeration is one API round trip; results land in batches
		// of one, so the interrupt is observed per system.
		if sig := interrupt.Observe(); sig != scanner.SignalNone {
			return r.suspend(sig)
		}

		recorded, err := r.store.HasInspectionResult(ctx, r.tc.Task.ID, sys.Name)
		if err != nil {
			return "", scan.StatusFailed, err
		}
		if recorded {
			continue
		}

		res := scan.NewInspectionResult(r.tc.Task.ID, sys.Name, scan.SystemStatusSuccess, sys.Facts)
		if err := r.store.AddInspectionResult(ctx, res); err != nil {
			return "", scan.StatusFailed, fmt.Errorf("failed to record inspection result: %w", err)
		}
		r.tc.Task.IncrementStats(scan.SystemStatusSuccess)
		metrics.SystemsProcessedTotal.WithLabelValues(r.tc.Source.Type.String(), scan.SystemStatusSuccess.String()).Inc()

		if (i+1)%50 == 0 {
			if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
				return "", scan.StatusFailed, err
			}
		}
	}

	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	message := fmt.Sprintf("inspected %d systems", r.tc.Task.SystemsScanned)
	if r.tc.Task.SystemsScanned == 0 && r.tc.Task.SystemsCount > 0 {
		return message, scan.StatusFailed, nil
	}
	return message, scan.StatusCompleted, nil
}

func (r *InspectRunner) suspend(sig scanner.Signal) (string, scan.Status, error) {
	if sig == scanner.SignalCancel {
		return "inspection canceled", scan.StatusCanceled, nil
	}
	return "inspection paused", scan.StatusPaused, nil
}
