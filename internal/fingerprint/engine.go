package fingerprint

import (
	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

// in-source dedup key sets, applied in order.
var dedupKeys = map[string][]string{
	source.TypeNetwork.String():   {report.FieldSubscriptionManagerID, report.FieldBiosUUID},
	source.TypeVCenter.String():   {report.FieldVMUUID},
	source.TypeSatellite.String(): {report.FieldSubscriptionManagerID},
}

// Checkpoint is called every checkpointInterval processed fingerprints.
// Returning an error stops the engine and surfaces the error to the
// caller (the runner uses this to suspend on pause and cancel).
type Checkpoint func(processed int) error

const checkpointInterval = 100

// Result is the engine's output for one details report.
type Result struct {
	Fingerprints []*report.Fingerprint
	TotalCount   int
	ValidCount   int
	InvalidCount int
}

// Engine turns a details report into deduplicated system fingerprints.
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a fingerprint engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.With("component", "fingerprint_engine")}
}

// Process fingerprints every fact record, deduplicates within each
// source type, merges across source types, normalizes the creation
// date, and drops records failing validation.
func (e *Engine) Process(details *report.DetailsReport, checkpoint Checkpoint) (*Result, error) {
	builders := map[string]func(report.SourceFacts, map[string]any) *report.Fingerprint{
		source.TypeNetwork.String():   fingerprintNetwork,
		source.TypeVCenter.String():   fingerprintVCenter,
		source.TypeSatellite.String(): fingerprintSatellite,
		source.TypeOpenShift.String(): fingerprintOpenShift,
		source.TypeAnsible.String():   fingerprintAnsible,
		source.TypeRHACS.String():     fingerprintRHACS,
	}

	byType := make(map[string][]*report.Fingerprint)
	processed := 0
	for _, src := range details.Sources {
		sourceType := src.SourceType.String()
		build, ok := builders[sourceType]
		if !ok {
			e.logger.Error("unknown source type in details report", "source_type", sourceType)
			continue
		}
		for _, facts := range src.Facts {
			byType[sourceType] = append(byType[sourceType], build(src, facts))
			processed++
			if checkpoint != nil && processed%checkpointInterval == 0 {
				if err := checkpoint(processed); err != nil {
					return nil, err
				}
			}
		}
	}

	for sourceType, keys := range dedupKeys {
		byType[sourceType] = dedupSourceRecords(byType[sourceType], keys)
	}

	// Cross-source merge: network x satellite first, the result x
	// vcenter second with the reverse-priority keys, then the
	// unmerged source types appended.
	merged := mergeOnKeyPairs(
		byType[source.TypeNetwork.String()],
		byType[source.TypeSatellite.String()],
		[][2]string{
			{report.FieldSubscriptionManagerID, report.FieldSubscriptionManagerID},
			{report.FieldMACAddresses, report.FieldMACAddresses},
		}, nil)
	merged = mergeOnKeyPairs(merged,
		byType[source.TypeVCenter.String()],
		[][2]string{
			{report.FieldBiosUUID, report.FieldVMUUID},
			{report.FieldMACAddresses, report.FieldMACAddresses},
		}, vcenterReverseKeys)
	merged = append(merged, byType[source.TypeOpenShift.String()]...)
	merged = append(merged, byType[source.TypeAnsible.String()]...)
	merged = append(merged, byType[source.TypeRHACS.String()]...)

	result := &Result{TotalCount: len(merged)}
	for _, fp := range merged {
		normalizeCreationDate(fp, fp.Fields)

		if err := fp.Validate(); err != nil {
			e.logger.Error("dropping invalid fingerprint", "error", err,
				"sources", len(fp.Sources))
			result.InvalidCount++
			metrics.FingerprintsTotal.WithLabelValues("invalid").Inc()
			continue
		}
		result.ValidCount++
		result.Fingerprints = append(result.Fingerprints, fp)
		metrics.FingerprintsTotal.WithLabelValues("valid").Inc()
	}
	return result, nil
}
