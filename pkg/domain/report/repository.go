package report

import "context"

// Repository defines the interface for report persistence.
type Repository interface {
	// CreateDetails persists a details report and assigns its integer ID.
	CreateDetails(ctx context.Context, r *DetailsReport) error
	GetDetails(ctx context.Context, id int64) (*DetailsReport, error)

	// ExistingIDs returns the subset of the given IDs that exist.
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error)

	SaveDeployments(ctx context.Context, d *DeploymentsReport) error
	GetDeployments(ctx context.Context, id int64) (*DeploymentsReport, error)
}
