// Package report provides the details report (pre-fingerprint raw facts)
// and the system fingerprint aggregate.
package report

import (
	"time"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

// SourceFacts is one source's contribution to a details report: the
// union of the inspection results collected from it.
type SourceFacts struct {
	ServerID   string           `json:"server_id"`
	SourceName string           `json:"source_name"`
	SourceType source.Type      `json:"source_type"`
	Facts      []map[string]any `json:"facts"`
}

// DetailsReport is the consolidation of raw facts for one scan job,
// grouped by source. Report IDs are small integers so they can be quoted
// in merge requests.
type DetailsReport struct {
	ID int64

	// Stable identifier reported to external platforms.
	ReportPlatformID shared.ID

	ScanJobID *shared.ID
	Sources   []SourceFacts

	CreatedAt time.Time
}

// NewDetailsReport builds an unsaved details report; the repository
// assigns the integer ID on create.
func NewDetailsReport(scanJobID *shared.ID, sources []SourceFacts) (*DetailsReport, error) {
	if len(sources) == 0 {
		return nil, shared.NewValidationError("VALIDATION", "at least one source is required")
	}
	for _, s := range sources {
		if s.ServerID == "" || s.SourceName == "" {
			return nil, shared.NewValidationError("VALIDATION", "server_id and source_name are required")
		}
		if !s.SourceType.IsValid() {
			return nil, shared.NewValidationError("VALIDATION", "invalid source_type: "+string(s.SourceType))
		}
	}
	return &DetailsReport{
		ReportPlatformID: shared.NewID(),
		ScanJobID:        scanJobID,
		Sources:          sources,
		CreatedAt:        time.Now(),
	}, nil
}

// Merge produces a new unsaved report holding the union of the source
// records of the given reports, in argument order.
func Merge(reports ...*DetailsReport) (*DetailsReport, error) {
	var sources []SourceFacts
	for _, r := range reports {
		sources = append(sources, r.Sources...)
	}
	return NewDetailsReport(nil, sources)
}
