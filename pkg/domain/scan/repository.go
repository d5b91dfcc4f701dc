package scan

import (
	"context"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/pagination"
)

// Repository defines the interface for scan job and task persistence.
//
// SaveJob persists a job together with its tasks inside one atomic
// section; implementations retry a transient lock on the state row
// exactly once before giving up.
type Repository interface {
	CreateJob(ctx context.Context, job *ScanJob) error
	GetJob(ctx context.Context, id shared.ID) (*ScanJob, error)
	SaveJob(ctx context.Context, job *ScanJob) error
	DeleteJob(ctx context.Context, id shared.ID) error
	ListJobs(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*ScanJob], error)

	SaveTask(ctx context.Context, task *ScanTask) error
}

// Filter defines the filter options for listing scan jobs.
type Filter struct {
	Status   *Status
	ScanType *ScanType
	ScanID   *shared.ID
}

// ResultRepository persists per-system results. Rows are append-only
// while the owning task runs and frozen at task completion.
type ResultRepository interface {
	AddConnectionResult(ctx context.Context, res *ConnectionResult) error
	ConnectionResults(ctx context.Context, taskID shared.ID) ([]*ConnectionResult, error)
	HasConnectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error)

	AddInspectionResult(ctx context.Context, res *InspectionResult) error
	InspectionResults(ctx context.Context, taskID shared.ID) ([]*InspectionResult, error)
	HasInspectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error)

	// SuccessfulConnections returns the connection results that
	// succeeded for a source within a job, credential included. The
	// inspect phase runs against exactly these systems.
	SuccessfulConnections(ctx context.Context, jobID, sourceID shared.ID) ([]*ConnectionResult, error)
}
