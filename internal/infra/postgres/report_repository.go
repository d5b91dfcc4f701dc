package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/lib/pq"

	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/shared"
)

// ReportRepository implements report.Repository using PostgreSQL.
// Fingerprint caches are stored gzip-compressed; a details report's raw
// facts routinely run to megabytes of JSON.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateDetails persists a details report and assigns its serial ID.
func (r *ReportRepository) CreateDetails(ctx context.Context, rep *report.DetailsReport) error {
	sources, err := toJSONB(rep.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO details_reports (report_platform_id, scan_job_id, sources, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		rep.ReportPlatformID.String(),
		nullID(rep.ScanJobID),
		sources,
		rep.CreatedAt,
	).Scan(&rep.ID)
	if err != nil {
		return fmt.Errorf("failed to create details report: %w", err)
	}
	return nil
}

// GetDetails retrieves a details report by its ID.
func (r *ReportRepository) GetDetails(ctx context.Context, id int64) (*report.DetailsReport, error) {
	query := `
		SELECT id, report_platform_id, scan_job_id, sources, created_at
		FROM details_reports
		WHERE id = $1
	`

	var (
		rep       report.DetailsReport
		scanJobID sql.NullString
		sources   []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rep.ID,
		&rep.ReportPlatformID,
		&scanJobID,
		&sources,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get details report: %w", err)
	}

	rep.ScanJobID = parseNullID(scanJobID)
	if err := fromJSONB(sources, &rep.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return &rep, nil
}

// ExistingIDs returns the subset of the given IDs that exist.
func (r *ReportRepository) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	query := "SELECT id FROM details_reports WHERE id = ANY($1)"
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to check report ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// SaveDeployments upserts the deployments report of a details report.
func (r *ReportRepository) SaveDeployments(ctx context.Context, d *report.DeploymentsReport) error {
	cached, err := compressJSON(d.CachedFingerprints)
	if err != nil {
		return fmt.Errorf("failed to compress fingerprints: %w", err)
	}
	cachedMasked, err := compressJSON(d.CachedMaskedFingerprints)
	if err != nil {
		return fmt.Errorf("failed to compress masked fingerprints: %w", err)
	}

	query := `
		INSERT INTO deployments_reports (
			id, status, cached_fingerprints, cached_masked_fingerprints,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    cached_fingerprints = EXCLUDED.cached_fingerprints,
		    cached_masked_fingerprints = EXCLUDED.cached_masked_fingerprints,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.Status,
		cached,
		cachedMasked,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save deployments report: %w", err)
	}
	return nil
}

// GetDeployments retrieves a deployments report by its details report ID.
func (r *ReportRepository) GetDeployments(ctx context.Context, id int64) (*report.DeploymentsReport, error) {
	query := `
		SELECT id, status, cached_fingerprints, cached_masked_fingerprints,
		       created_at, updated_at
		FROM deployments_reports
		WHERE id = $1
	`

	var (
		d                    report.DeploymentsReport
		cached, cachedMasked []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.Status,
		&cached,
		&cachedMasked,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deployments report: %w", err)
	}

	if err := decompressJSON(cached, &d.CachedFingerprints); err != nil {
		return nil, fmt.Errorf("failed to decompress fingerprints: %w", err)
	}
	if err := decompressJSON(cachedMasked, &d.CachedMaskedFingerprints); err != nil {
		return nil, fmt.Errorf("failed to decompress masked fingerprints: %w", err)
	}
	d.Fingerprints = d.CachedFingerprints
	return &d, nil
}

// compressJSON marshals v and gzips the result. nil values produce a
// NULL column.
func compressJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressJSON gunzips data and unmarshals it into target. Empty
// input leaves target untouched.
func decompressJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gz.Close()

	decoded, err := io.ReadAll(gz)
	if err != nil {
		return err
	}
	return json.Unmarshal(decoded, target)
}
