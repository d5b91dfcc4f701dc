package scanner

import (
	"context"
	"fmt"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

// TaskContext carries everything a runner needs about its task. Source
// and Credentials are nil for the fingerprint phase. Credentials arrive
// decrypted.
type TaskContext struct {
	Job         *scan.ScanJob
	Task        *scan.ScanTask
	Source      *source.Source
	Credentials []*credential.Credential
	Options     scan.Options
}

// Store is the persistence surface handed to runners: task checkpoints
// and the append-only result rows.
type Store interface {
	SaveTask(ctx context.Context, task *scan.ScanTask) error

	AddConnectionResult(ctx context.Context, res *scan.ConnectionResult) error
	HasConnectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error)
	ConnectionResults(ctx context.Context, taskID shared.ID) ([]*scan.ConnectionResult, error)
	SuccessfulConnections(ctx context.Context, jobID, sourceID shared.ID) ([]*scan.ConnectionResult, error)

	AddInspectionResult(ctx context.Context, res *scan.InspectionResult) error
	HasInspectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error)
	InspectionResults(ctx context.Context, taskID shared.ID) ([]*scan.InspectionResult, error)
}

// Runner executes one scan task. Execute returns a status message and
// the terminal (or suspended) status for the task: completed, failed,
// paused or canceled. A non-nil error means the runner itself broke and
// the task is failed with it.
type Runner interface {
	Execute(ctx context.Context, interrupt *Interrupt) (message string, status scan.Status, err error)

	// SupportsPartialResults reports whether the runner can resume
	// from a paused task by skipping already-recorded systems.
	SupportsPartialResults() bool
}

// Factory builds a runner bound to one task.
type Factory func(tc TaskContext, store Store) Runner

// RunnerKey selects a runner implementation.
type RunnerKey struct {
	Source source.Type
	Phase  scan.ScanType
}

// Registry maps (source type, scan type) pairs to runner factories.
// The fingerprint factory serves every source type.
type Registry struct {
	factories   map[RunnerKey]Factory
	fingerprint Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[RunnerKey]Factory)}
}

// Register binds a factory to a (source type, scan type) pair.
func (r *Registry) Register(sourceType source.Type, phase scan.ScanType, f Factory) {
	r.factories[RunnerKey{Source: sourceType, Phase: phase}] = f
}

// RegisterFingerprint binds the fingerprint factory.
func (r *Registry) RegisterFingerprint(f Factory) {
	r.fingerprint = f
}

// Lookup resolves the factory for a task. The mapping is closed: an
// unknown pair is a wiring bug surfaced as an error.
func (r *Registry) Lookup(sourceType source.Type, phase scan.ScanType) (Factory, error) {
	if phase == scan.TypeFingerprint {
		if r.fingerprint == nil {
			return nil, fmt.Errorf("no fingerprint runner registered")
		}
		return r.fingerprint, nil
	}
	f, ok := r.factories[RunnerKey{Source: sourceType, Phase: phase}]
	if !ok {
		return nil, fmt.Errorf("no runner registered for (%s, %s)", sourceType, phase)
	}
	return f, nil
}
