package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/pagination"
)

// CredentialRepository implements credential.Repository using PostgreSQL.
// Secret columns hold vault-encrypted values; encryption happens in the
// service layer before the credential reaches this boundary.
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `
	id, name, cred_type, username, password,
	ssh_keyfile, ssh_key, ssh_passphrase,
	become_method, become_user, become_password,
	auth_token, created_at, updated_at
`

// Create persists a new credential.
func (r *CredentialRepository) Create(ctx context.Context, cred *credential.Credential) error {
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		cred.ID.String(),
		cred.Name,
		cred.Type.String(),
		nullString(cred.Username),
		nullString(cred.Password),
		nullString(cred.SSHKeyfile),
		nullString(cred.SSHKey),
		nullString(cred.SSHPassphrase),
		nullString(cred.BecomeMethod.String()),
		nullString(cred.BecomeUser),
		nullString(cred.BecomePassword),
		nullString(cred.AuthToken),
		cred.CreatedAt,
		cred.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "credential with this name already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetByID retrieves a credential by its ID.
func (r *CredentialRepository) GetByID(ctx context.Context, id shared.ID) (*credential.Credential, error) {
	query := "SELECT " + credentialColumns + " FROM credentials WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	return r.scanCredential(row)
}

// GetByName retrieves a credential by its unique name.
func (r *CredentialRepository) GetByName(ctx context.Context, name string) (*credential.Credential, error) {
	query := "SELECT " + credentialColumns + " FROM credentials WHERE name = $1"
	row := r.db.QueryRowContext(ctx, query, name)
	return r.scanCredential(row)
}

// Update updates a credential.
func (r *CredentialRepository) Update(ctx context.Context, cred *credential.Credential) error {
	query := `
		UPDATE credentials
		SET name = $2, username = $3, password = $4,
		    ssh_keyfile = $5, ssh_key = $6, ssh_passphrase = $7,
		    become_method = $8, become_user = $9, become_password = $10,
		    auth_token = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		cred.ID.String(),
		cred.Name,
		nullString(cred.Username),
		nullString(cred.Password),
		nullString(cred.SSHKeyfile),
		nullString(cred.SSHKey),
		nullString(cred.SSHPassphrase),
		nullString(cred.BecomeMethod.String()),
		nullString(cred.BecomeUser),
		nullString(cred.BecomePassword),
		nullString(cred.AuthToken),
		cred.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "credential with this name already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// Delete deletes a credential. The service layer has already verified
// no source references it.
func (r *CredentialRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// List lists credentials with filters and pagination.
func (r *CredentialRepository) List(ctx context.Context, filter credential.Filter, page pagination.Pagination) (pagination.Result[*credential.Credential], error) {
	var result pagination.Result[*credential.Credential]

	baseQuery := "SELECT " + credentialColumns + " FROM credentials"
	countQuery := "SELECT COUNT(*) FROM credentials"

	var conditions []string
	var args []any
	if filter.Type != nil {
		args = append(args, filter.Type.String())
		conditions = append(conditions, fmt.Sprintf("cred_type = $%d", len(args)))
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
		return result, fmt.Errorf("failed to count credentials: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY name ASC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*credential.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return result, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to list credentials: %w", err)
	}

	return pagination.NewResult(creds, total, page), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *CredentialRepository) scanCredential(row rowScanner) (*credential.Credential, error) {
	var (
		cred                                       credential.Credential
		credType                                   string
		username, password                         sql.NullString
		sshKeyfile, sshKey, sshPassphrase          sql.NullString
		becomeMethod, becomeUser, becomePassword   sql.NullString
		authToken                                  sql.NullString
	)

	err := row.Scan(
		&cred.ID,
		&cred.Name,
		&credType,
		&username,
		&password,
		&sshKeyfile,
		&sshKey,
		&sshPassphrase,
		&becomeMethod,
		&becomeUser,
		&becomePassword,
		&authToken,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	cred.Type = credential.Type(credType)
	cred.Username = nullStringValue(username)
	cred.Password = nullStringValue(password)
	cred.SSHKeyfile = nullStringValue(sshKeyfile)
	cred.SSHKey = nullStringValue(sshKey)
	cred.SSHPassphrase = nullStringValue(sshPassphrase)
	cred.BecomeMethod = credential.BecomeMethod(nullStringValue(becomeMethod))
	cred.BecomeUser = nullStringValue(becomeUser)
	cred.BecomePassword = nullStringValue(becomePassword)
	cred.AuthToken = nullStringValue(authToken)

	return &cred, nil
}
