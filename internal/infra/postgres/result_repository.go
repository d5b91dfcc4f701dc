package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
)

// ResultRepository implements scan.ResultRepository using PostgreSQL.
// Connection results are one row per attempted system; inspection
// results keep their facts as an ordered JSONB array on the row, so a
// system's facts are written atomically.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// AddConnectionResult appends one connection outcome.
func (r *ResultRepository) AddConnectionResult(ctx context.Context, res *scan.ConnectionResult) error {
	query := `
		INSERT INTO connection_results (id, task_id, name, status, credential_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID.String(),
		res.TaskID.String(),
		res.Name,
		res.Status.String(),
		nullID(res.CredentialID),
	)
	if err != nil {
		return fmt.Errorf("failed to add connection result: %w", err)
	}
	return nil
}

// ConnectionResults returns every connection result of a task.
func (r *ResultRepository) ConnectionResults(ctx context.Context, taskID shared.ID) ([]*scan.ConnectionResult, error) {
	query := `
		SELECT id, task_id, name, status, credential_id
		FROM connection_results
		WHERE task_id = $1
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, taskID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load connection results: %w", err)
	}
	defer rows.Close()

	var results []*scan.ConnectionResult
	for rows.Next() {
		res, err := scanConnectionResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// HasConnectionResult reports whether the task already recorded an
// outcome for the named system. Resumed tasks use this to skip work.
func (r *ResultRepository) HasConnectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM connection_results WHERE task_id = $1 AND name = $2)"
	err := r.db.QueryRowContext(ctx, query, taskID.String(), name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check connection result: %w", err)
	}
	return exists, nil
}

// AddInspectionResult appends one inspected system with its facts.
func (r *ResultRepository) AddInspectionResult(ctx context.Context, res *scan.InspectionResult) error {
	facts, err := toJSONB(res.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal facts: %w", err)
	}

	query := `
		INSERT INTO inspection_results (id, task_id, name, status, facts)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query,
		res.ID.String(),
		res.TaskID.String(),
		res.Name,
		res.Status.String(),
		facts,
	)
	if err != nil {
		return fmt.Errorf("failed to add inspection result: %w", err)
	}
	return nil
}

// InspectionResults returns every inspection result of a task.
func (r *ResultRepository) InspectionResults(ctx context.Context, taskID shared.ID) ([]*scan.InspectionResult, error) {
	query := `
		SELECT id, task_id, name, status, facts
		FROM inspection_results
		WHERE task_id = $1
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, taskID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection results: %w", err)
	}
	defer rows.Close()

	var results []*scan.InspectionResult
	for rows.Next() {
		var (
			res   scan.InspectionResult
			facts []byte
		)
		if err := rows.Scan(&res.ID, &res.TaskID, &res.Name, &res.Status, &facts); err != nil {
			return nil, fmt.Errorf("failed to scan inspection result: %w", err)
		}
		if err := fromJSONB(facts, &res.Facts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal facts: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// HasInspectionResult reports whether the task already recorded facts
// for the named system.
func (r *ResultRepository) HasInspectionResult(ctx context.Context, taskID shared.ID, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM inspection_results WHERE task_id = $1 AND name = $2)"
	err := r.db.QueryRowContext(ctx, query, taskID.String(), name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check inspection result: %w", err)
	}
	return exists, nil
}

// SuccessfulConnections returns the successful connection results of
// the source's connect task within the job.
func (r *ResultRepository) SuccessfulConnections(ctx context.Context, jobID, sourceID shared.ID) ([]*scan.ConnectionResult, error) {
	query := `
		SELECT cr.id, cr.task_id, cr.name, cr.status, cr.credential_id
		FROM connection_results cr
		JOIN scan_tasks t ON t.id = cr.task_id
		WHERE t.job_id = $1 AND t.source_id = $2
		  AND t.scan_type = 'connect' AND cr.status = 'success'
		ORDER BY cr.name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID.String(), sourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load successful connections: %w", err)
	}
	defer rows.Close()

	var results []*scan.ConnectionResult
	for rows.Next() {
		res, err := scanConnectionResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func scanConnectionResult(row rowScanner) (*scan.ConnectionResult, error) {
	var (
		res          scan.ConnectionResult
		credentialID sql.NullString
	)
	err := row.Scan(&res.ID, &res.TaskID, &res.Name, &res.Status, &credentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan connection result: %w", err)
	}
	res.CredentialID = parseNullID(credentialID)
	return &res, nil
}
