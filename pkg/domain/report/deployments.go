package report

import "time"

// DeploymentsReport holds the fingerprints produced from one details
// report, plus a masked variant safe to hand to external reporting.
type DeploymentsReport struct {
	// Shares the ID of its details report.
	ID int64

	Status       string
	Fingerprints []*Fingerprint

	// Cached variants, gzip-compressed JSON at rest.
	CachedFingerprints       []*Fingerprint
	CachedMaskedFingerprints []*Fingerprint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deployment report statuses.
const (
	DeploymentsPending  = "pending"
	DeploymentsComplete = "completed"
	DeploymentsFailed   = "failed"
)

// NewDeploymentsReport creates a pending deployments report for a
// details report.
func NewDeploymentsReport(detailsID int64) *DeploymentsReport {
	now := time.Now()
	return &DeploymentsReport{
		ID:        detailsID,
		Status:    DeploymentsPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetFingerprints records the engine output and flips the status.
func (d *DeploymentsReport) SetFingerprints(valid, masked []*Fingerprint) {
	d.Fingerprints = valid
	d.CachedFingerprints = valid
	d.CachedMaskedFingerprints = masked
	if len(valid) > 0 {
		d.Status = DeploymentsComplete
	} else {
		d.Status = DeploymentsFailed
	}
	d.UpdatedAt = time.Now()
}
