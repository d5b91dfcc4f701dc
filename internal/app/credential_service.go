// Package app provides the application services driving the discovery
// domain: credential and source management, scan job orchestration,
// and report assembly.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hostscout/api/pkg/crypto"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/pagination"
)

// CredentialService provides business logic for credential management.
// Secrets are encrypted before reaching the repository and masked on
// every read path.
type CredentialService struct {
	repo       credential.Repository
	sourceRepo source.Repository
	encryptor  crypto.Encryptor
	logger     *logger.Logger
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(repo credential.Repository, sourceRepo source.Repository, enc crypto.Encryptor, log *logger.Logger) *CredentialService {
	return &CredentialService{
		repo:       repo,
		sourceRepo: sourceRepo,
		encryptor:  enc,
		logger:     log.With("service", "credential"),
	}
}

// CreateCredentialInput represents input for creating a credential.
// Which fields apply depends on CredType.
type CreateCredentialInput struct {
	Name     string `json:"name" validate:"required,min=1,max=64"`
	CredType string `json:"cred_type" validate:"required,cred_type"`
	Username string `json:"username" validate:"max=128"`
	Password string `json:"password"`

	SSHKeyfile     string `json:"ssh_keyfile"`
	SSHKey         string `json:"ssh_key"`
	SSHPassphrase  string `json:"ssh_passphrase"`
	BecomeMethod   string `json:"become_method" validate:"omitempty,become_method"`
	BecomeUser     string `json:"become_user"`
	BecomePassword string `json:"become_password"`

	AuthToken string `json:"auth_token"`
}

// Create builds, encrypts and stores a credential of the requested type.
func (s *CredentialService) Create(ctx context.Context, input CreateCredentialInput) (*credential.Credential, error) {
	credType, err := credential.ParseType(input.CredType)
	if err != nil {
		return nil, shared.NewValidationError("VALIDATION", err.Error())
	}

	cred, err := s.build(credType, input)
	if err != nil {
		return nil, err
	}

	if err := cred.EncryptSecrets(s.encryptor); err != nil {
		return nil, fmt.Errorf("failed to encrypt credential secrets: %w", err)
	}

	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("credential created",
		"id", cred.ID.String(),
		"name", cred.Name,
		"cred_type", cred.Type.String(),
	)
	return cred.Masked(), nil
}

func (s *CredentialService) build(credType credential.Type, input CreateCredentialInput) (*credential.Credential, error) {
	switch credType {
	case credential.TypeNetwork:
		return credential.NewNetwork(input.Name, input.Username, credential.NetworkAuth{
			Password:       input.Password,
			SSHKeyfile:     input.SSHKeyfile,
			SSHKey:         input.SSHKey,
			SSHPassphrase:  input.SSHPassphrase,
			BecomeMethod:   credential.BecomeMethod(input.BecomeMethod),
			BecomeUser:     input.BecomeUser,
			BecomePassword: input.BecomePassword,
		})
	case credential.TypeOpenShift:
		return credential.NewOpenShift(input.Name, input.AuthToken, input.Username, input.Password)
	case credential.TypeRHACS:
		return credential.NewRHACS(input.Name, input.AuthToken)
	default:
		return credential.NewUserPass(input.Name, credType, input.Username, input.Password)
	}
}

// Get returns a credential with its secrets masked.
func (s *CredentialService) Get(ctx context.Context, id shared.ID) (*credential.Credential, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return cred.Masked(), nil
}

// GetDecrypted returns a credential with usable plaintext secrets.
// For internal callers only; never exposed through the API.
func (s *CredentialService) GetDecrypted(ctx context.Context, id shared.ID) (*credential.Credential, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cred.DecryptSecrets(s.encryptor); err != nil {
		return nil, fmt.Errorf("failed to decrypt credential secrets: %w", err)
	}
	return cred, nil
}

// List lists credentials with their secrets masked.
func (s *CredentialService) List(ctx context.Context, filter credential.Filter, page pagination.Pagination) (pagination.Result[*credential.Credential], error) {
	result, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return result, err
	}
	for i, cred := range result.Items {
		result.Items[i] = cred.Masked()
	}
	return result, nil
}

// UpdateCredentialInput represents the mutable credential fields.
// Empty secret fields (or the mask readback) leave the stored value
// untouched.
type UpdateCredentialInput struct {
	Name     string `json:"name" validate:"required,min=1,max=64"`
	Username string `json:"username" validate:"max=128"`
	Password string `json:"password"`

	SSHKeyfile     string `json:"ssh_keyfile"`
	SSHKey         string `json:"ssh_key"`
	SSHPassphrase  string `json:"ssh_passphrase"`
	BecomePassword string `json:"become_password"`

	AuthToken string `json:"auth_token"`
}

// Update applies mutable fields to a credential. The type is immutable.
func (s *CredentialService) Update(ctx context.Context, id shared.ID, input UpdateCredentialInput) (*credential.Credential, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := cred.Update(input.Name); err != nil {
		return nil, err
	}
	if input.Username != "" {
		cred.Username = input.Username
	}
	applySecret(&cred.Password, input.Password)
	applySecret(&cred.SSHKey, input.SSHKey)
	applySecret(&cred.SSHPassphrase, input.SSHPassphrase)
	applySecret(&cred.BecomePassword, input.BecomePassword)
	applySecret(&cred.AuthToken, input.AuthToken)
	if input.SSHKeyfile != "" {
		cred.SSHKeyfile = input.SSHKeyfile
	}

	if err := cred.EncryptSecrets(s.encryptor); err != nil {
		return nil, fmt.Errorf("failed to encrypt credential secrets: %w", err)
	}
	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("credential updated", "id", cred.ID.String(), "name", cred.Name)
	return cred.Masked(), nil
}

// applySecret overwrites dst only when the input carries a real new
// value; the mask readback means "unchanged".
func applySecret(dst *string, input string) {
	if input == "" || input == credential.MaskedValue {
		return
	}
	*dst = input
}

// Delete removes a credential unless a source still references it.
func (s *CredentialService) Delete(ctx context.Context, id shared.ID) error {
	referents, err := s.sourceRepo.ListByCredential(ctx, id)
	if err != nil {
		return err
	}
	if len(referents) > 0 {
		names := make([]string, len(referents))
		for i, src := range referents {
			names[i] = src.Name
		}
		return shared.NewDomainError("CRED_DELETE_NOT_VALID_W_SOURCES",
			fmt.Sprintf("credential is used by sources: %s", strings.Join(names, ", ")),
			shared.ErrConflict)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("credential deleted", "id", id.String())
	return nil
}
