package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/pagination"
)

// ScanJobRepository implements scan.Repository using PostgreSQL.
// Jobs and their tasks live in separate tables; SaveJob writes both
// inside one transaction so a job state and its task states never
// diverge.
type ScanJobRepository struct {
	db *DB
}

// NewScanJobRepository creates a new ScanJobRepository.
func NewScanJobRepository(db *DB) *ScanJobRepository {
	return &ScanJobRepository{db: db}
}

const scanJobColumns = `
	id, scan_id, scan_type, status, status_message, source_ids,
	options, report_id, start_time, end_time, created_at, updated_at
`

const scanTaskColumns = `
	id, job_id, source_id, scan_type, status, status_message,
	sequence_number, prerequisite_ids,
	systems_count, systems_scanned, systems_failed, systems_unreachable,
	start_time, end_time, created_at, updated_at
`

// CreateJob persists a new scan job together with any tasks already
// attached to it.
func (r *ScanJobRepository) CreateJob(ctx context.Context, job *scan.ScanJob) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := insertJob(ctx, tx, job); err != nil {
			return err
		}
		for _, task := range job.Tasks {
			if err := upsertTask(ctx, tx, task); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetJob retrieves a scan job with its tasks in sequence order.
func (r *ScanJobRepository) GetJob(ctx context.Context, id shared.ID) (*scan.ScanJob, error) {
	query := "SELECT " + scanJobColumns + " FROM scan_jobs WHERE id = $1"
	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}

	tasks, err := r.tasksForJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Tasks = tasks
	return job, nil
}

// SaveJob persists the job and all its tasks atomically. A transient
// lock failure on the job row is retried exactly once.
func (r *ScanJobRepository) SaveJob(ctx context.Context, job *scan.ScanJob) error {
	save := func() error {
		return r.db.Transaction(ctx, func(tx *sql.Tx) error {
			if err := updateJob(ctx, tx, job); err != nil {
				return err
			}
			for _, task := range job.Tasks {
				if err := upsertTask(ctx, tx, task); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := save()
	if err != nil && isTransientLock(err) {
		err = save()
	}
	return err
}

// DeleteJob deletes a scan job; tasks and results cascade.
func (r *ScanJobRepository) DeleteJob(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scan_jobs WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete scan job: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// ListJobs lists scan jobs with filters and pagination. Tasks are
// loaded for every returned job.
func (r *ScanJobRepository) ListJobs(ctx context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.ScanJob], error) {
	var result pagination.Result[*scan.ScanJob]

	baseQuery := "SELECT " + scanJobColumns + " FROM scan_jobs"
	countQuery := "SELECT COUNT(*) FROM scan_jobs"

	var conditions []string
	var args []any
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ScanType != nil {
		args = append(args, filter.ScanType.String())
		conditions = append(conditions, fmt.Sprintf("scan_type = $%d", len(args)))
	}
	if filter.ScanID != nil {
		args = append(args, filter.ScanID.String())
		conditions = append(conditions, fmt.Sprintf("scan_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		where := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery += where
		countQuery += where
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count scan jobs: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list scan jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*scan.ScanJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return result, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to list scan jobs: %w", err)
	}

	for _, job := range jobs {
		tasks, err := r.tasksForJob(ctx, job.ID)
		if err != nil {
			return result, err
		}
		job.Tasks = tasks
	}

	return pagination.NewResult(jobs, total, page), nil
}

// SaveTask persists a single task.
func (r *ScanJobRepository) SaveTask(ctx context.Context, task *scan.ScanTask) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return upsertTask(ctx, tx, task)
	})
}

func insertJob(ctx context.Context, tx *sql.Tx, job *scan.ScanJob) error {
	options, err := toJSONB(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		INSERT INTO scan_jobs (` + scanJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = tx.ExecContext(ctx, query,
		job.ID.String(),
		nullID(job.ScanID),
		job.ScanType.String(),
		job.Status.String(),
		nullString(job.StatusMessage),
		pq.Array(idStrings(job.SourceIDs)),
		options,
		nullInt64(job.ReportID),
		nullTime(job.StartTime),
		nullTime(job.EndTime),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan job: %w", err)
	}
	return nil
}

func updateJob(ctx context.Context, tx *sql.Tx, job *scan.ScanJob) error {
	options, err := toJSONB(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		UPDATE scan_jobs
		SET status = $2, status_message = $3, source_ids = $4,
		    options = $5, report_id = $6, start_time = $7, end_time = $8,
		    updated_at = $9
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query,
		job.ID.String(),
		job.Status.String(),
		nullString(job.StatusMessage),
		pq.Array(idStrings(job.SourceIDs)),
		options,
		nullInt64(job.ReportID),
		nullTime(job.StartTime),
		nullTime(job.EndTime),
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan job: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func upsertTask(ctx context.Context, tx *sql.Tx, task *scan.ScanTask) error {
	query := `
		INSERT INTO scan_tasks (` + scanTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    status_message = EXCLUDED.status_message,
		    prerequisite_ids = EXCLUDED.prerequisite_ids,
		    systems_count = EXCLUDED.systems_count,
		    systems_scanned = EXCLUDED.systems_scanned,
		    systems_failed = EXCLUDED.systems_failed,
		    systems_unreachable = EXCLUDED.systems_unreachable,
		    start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		task.ID.String(),
		task.JobID.String(),
		nullID(task.SourceID),
		task.ScanType.String(),
		task.Status.String(),
		nullString(task.StatusMessage),
		task.SequenceNumber,
		pq.Array(idStrings(task.PrerequisiteIDs)),
		task.SystemsCount,
		task.SystemsScanned,
		task.SystemsFailed,
		task.SystemsUnreachable,
		nullTime(task.StartTime),
		nullTime(task.EndTime),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan task: %w", err)
	}
	return nil
}

func (r *ScanJobRepository) tasksForJob(ctx context.Context, jobID shared.ID) ([]*scan.ScanTask, error) {
	query := "SELECT " + scanTaskColumns + " FROM scan_tasks WHERE job_id = $1 ORDER BY sequence_number ASC"
	rows, err := r.db.QueryContext(ctx, query, jobID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load scan tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scan.ScanTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *ScanJobRepository) scanJob(row rowScanner) (*scan.ScanJob, error) {
	var (
		job               scan.ScanJob
		scanID            sql.NullString
		scanType, status  string
		statusMessage     sql.NullString
		sourceIDs         pq.StringArray
		options           []byte
		reportID          sql.NullInt64
		startTime, endTime sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&scanID,
		&scanType,
		&status,
		&statusMessage,
		&sourceIDs,
		&options,
		&reportID,
		&startTime,
		&endTime,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan scan job: %w", err)
	}

	job.ScanID = parseNullID(scanID)
	job.ScanType = scan.ScanType(scanType)
	job.Status = scan.Status(status)
	job.StatusMessage = nullStringValue(statusMessage)
	job.ReportID = nullInt64Value(reportID)
	job.StartTime = nullTimeValue(startTime)
	job.EndTime = nullTimeValue(endTime)

	if err := fromJSONB(options, &job.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}

	job.SourceIDs = make([]shared.ID, 0, len(sourceIDs))
	for _, s := range sourceIDs {
		id, err := shared.IDFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid source id %q on job %s: %w", s, job.ID, err)
		}
		job.SourceIDs = append(job.SourceIDs, id)
	}

	return &job, nil
}

func scanTask(row rowScanner) (*scan.ScanTask, error) {
	var (
		task               scan.ScanTask
		sourceID           sql.NullString
		scanType, status   string
		statusMessage      sql.NullString
		prerequisiteIDs    pq.StringArray
		startTime, endTime sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.JobID,
		&sourceID,
		&scanType,
		&status,
		&statusMessage,
		&task.SequenceNumber,
		&prerequisiteIDs,
		&task.SystemsCount,
		&task.SystemsScanned,
		&task.SystemsFailed,
		&task.SystemsUnreachable,
		&startTime,
		&endTime,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scan task: %w", err)
	}

	task.SourceID = parseNullID(sourceID)
	task.ScanType = scan.ScanType(scanType)
	task.Status = scan.Status(status)
	task.StatusMessage = nullStringValue(statusMessage)
	task.StartTime = nullTimeValue(startTime)
	task.EndTime = nullTimeValue(endTime)

	task.PrerequisiteIDs = make([]shared.ID, 0, len(prerequisiteIDs))
	for _, s := range prerequisiteIDs {
		id, err := shared.IDFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid prerequisite id %q on task %s: %w", s, task.ID, err)
		}
		task.PrerequisiteIDs = append(task.PrerequisiteIDs, id)
	}

	return &task, nil
}
