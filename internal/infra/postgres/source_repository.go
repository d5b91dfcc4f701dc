package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/pagination"
)

// SourceRepository implements source.Repository using PostgreSQL.
type SourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = `
	id, name, source_type, hosts, exclude_hosts, port,
	ssl_cert_verify, ssl_protocol, disable_ssl, use_paramiko, proxy_url,
	credential_ids, most_recent_connect_scan_id, created_at, updated_at
`

// Create persists a new source.
func (r *SourceRepository) Create(ctx context.Context, src *source.Source) error {
	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		src.ID.String(),
		src.Name,
		src.Type.String(),
		pq.Array(src.Hosts),
		pq.Array(src.ExcludeHosts),
		src.Port,
		src.SSLCertVerify,
		nullString(src.SSLProtocol),
		src.DisableSSL,
		src.UseParamiko,
		nullString(src.ProxyURL),
		pq.Array(idStrings(src.CredentialIDs)),
		nullID(src.MostRecentConnectScanID),
		src.CreatedAt,
		src.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "source with this name already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id shared.ID) (*source.Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	return r.scanSource(row)
}

// GetByName retrieves a source by its unique name.
func (r *SourceRepository) GetByName(ctx context.Context, name string) (*source.Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources WHERE name = $1"
	row := r.db.QueryRowContext(ctx, query, name)
	return r.scanSource(row)
}

// Update updates a source.
func (r *SourceRepository) Update(ctx context.Context, src *source.Source) error {
	query := `
		UPDATE sources
		SET name = $2, hosts = $3, exclude_hosts = $4, port = $5,
		    ssl_cert_verify = $6, ssl_protocol = $7, disable_ssl = $8,
		    use_paramiko = $9, proxy_url = $10, credential_ids = $11,
		    most_recent_connect_scan_id = $12, updated_at = $13
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		src.ID.String(),
		src.Name,
		pq.Array(src.Hosts),
		pq.Array(src.ExcludeHosts),
		src.Port,
		src.SSLCertVerify,
		nullString(src.SSLProtocol),
		src.DisableSSL,
		src.UseParamiko,
		nullString(src.ProxyURL),
		pq.Array(idStrings(src.CredentialIDs)),
		nullID(src.MostRecentConnectScanID),
		src.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "source with this name already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// Delete deletes a source.
func (r *SourceRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sources WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// List lists sources with filters and pagination.
func (r *SourceRepository) List(ctx context.Context, filter source.Filter, page pagination.Pagination) (pagination.Result[*source.Source], error) {
	var result pagination.Result[*source.Source]

	baseQuery := "SELECT " + sourceColumns + " FROM sources"
	countQuery := "SELECT COUNT(*) FROM sources"

	var conditions []string
	var args []any
	if filter.Type != nil {
		args = append(args, filter.Type.String())
		conditions = append(conditions, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		where := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery += where
		countQuery += where
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count sources: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY name ASC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*source.Source
	for rows.Next() {
		src, err := r.scanSource(rows)
		if err != nil {
			return result, err
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to list sources: %w", err)
	}

	return pagination.NewResult(sources, total, page), nil
}

// ListByCredential returns every source referencing the credential.
func (r *SourceRepository) ListByCredential(ctx context.Context, credentialID shared.ID) ([]*source.Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources WHERE $1 = ANY(credential_ids) ORDER BY name ASC"
	rows, err := r.db.QueryContext(ctx, query, credentialID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sources by credential: %w", err)
	}
	defer rows.Close()

	var sources []*source.Source
	for rows.Next() {
		src, err := r.scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (r *SourceRepository) scanSource(row rowScanner) (*source.Source, error) {
	var (
		src                     source.Source
		sourceType              string
		hosts, excludeHosts     pq.StringArray
		credentialIDs           pq.StringArray
		sslProtocol, proxyURL   sql.NullString
		mostRecentConnectScanID sql.NullString
	)

	err := row.Scan(
		&src.ID,
		&src.Name,
		&sourceType,
		&hosts,
		&excludeHosts,
		&src.Port,
		&src.SSLCertVerify,
		&sslProtocol,
		&src.DisableSSL,
		&src.UseParamiko,
		&proxyURL,
		&credentialIDs,
		&mostRecentConnectScanID,
		&src.CreatedAt,
		&src.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}

	src.Type = source.Type(sourceType)
	src.Hosts = hosts
	src.ExcludeHosts = excludeHosts
	src.SSLProtocol = nullStringValue(sslProtocol)
	src.ProxyURL = nullStringValue(proxyURL)
	src.MostRecentConnectScanID = parseNullID(mostRecentConnectScanID)

	src.CredentialIDs = make([]shared.ID, 0, len(credentialIDs))
	for _, s := range credentialIDs {
		id, err := shared.IDFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid credential id %q on source %s: %w", s, src.ID, err)
		}
		src.CredentialIDs = append(src.CredentialIDs, id)
	}

	return &src, nil
}

func idStrings(ids []shared.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
