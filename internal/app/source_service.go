package app

import (
	"context"
	"fmt"

	"github.com/hostscout/api/internal/scanner/network"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/pagination"
)

// SourceService provides business logic for source management.
type SourceService struct {
	repo     source.Repository
	credRepo credential.Repository
	logger   *logger.Logger
}

// NewSourceService creates a new SourceService.
func NewSourceService(repo source.Repository, credRepo credential.Repository, log *logger.Logger) *SourceService {
	return &SourceService{
		repo:     repo,
		credRepo: credRepo,
		logger:   log.With("service", "source"),
	}
}

// CreateSourceInput represents input for creating a source.
type CreateSourceInput struct {
	Name          string   `json:"name" validate:"required,min=1,max=64"`
	SourceType    string   `json:"source_type" validate:"required,source_type"`
	Hosts         []string `json:"hosts" validate:"required,min=1"`
	ExcludeHosts  []string `json:"exclude_hosts"`
	Port          int      `json:"port" validate:"omitempty,min=1,max=65535"`
	CredentialIDs []string `json:"credentials" validate:"required,min=1"`

	SSLCertVerify *bool  `json:"ssl_cert_verify"`
	SSLProtocol   string `json:"ssl_protocol"`
	DisableSSL    bool   `json:"disable_ssl"`
	UseParamiko   bool   `json:"use_paramiko"`
	ProxyURL      string `json:"proxy_url"`
}

// Create validates and stores a source.
func (s *SourceService) Create(ctx context.Context, input CreateSourceInput) (*source.Source, error) {
	sourceType, err := source.ParseType(input.SourceType)
	if err != nil {
		return nil, shared.NewValidationError("VALIDATION", err.Error())
	}

	credIDs, err := s.resolveCredentials(ctx, sourceType, input.CredentialIDs)
	if err != nil {
		return nil, err
	}

	src, err := source.New(input.Name, sourceType, input.Hosts, credIDs)
	if err != nil {
		return nil, err
	}
	if input.Port != 0 {
		if err := src.SetPort(input.Port); err != nil {
			return nil, err
		}
	}
	if len(input.ExcludeHosts) > 0 {
		src.SetExcludeHosts(input.ExcludeHosts)
	}
	src.SetOptions(input.SSLCertVerify, input.SSLProtocol, input.DisableSSL, input.UseParamiko, input.ProxyURL)
	if err := src.Validate(); err != nil {
		return nil, err
	}

	if err := s.validateHosts(src); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, src); err != nil {
		return nil, err
	}

	s.logger.Info("source created",
		"id", src.ID.String(),
		"name", src.Name,
		"source_type", src.Type.String(),
		"hosts", len(src.Hosts),
	)
	return src, nil
}

// validateHosts syntax-checks host expressions. Only network sources
// use the inventory grammar; the API source types take a single
// hostname or address verbatim.
func (s *SourceService) validateHosts(src *source.Source) error {
	if src.Type != source.TypeNetwork {
		return nil
	}
	if err := network.ValidatePatterns(src.Hosts); err != nil {
		return shared.NewValidationError("VALIDATION", fmt.Sprintf("invalid hosts: %v", err))
	}
	if err := network.ValidatePatterns(src.ExcludeHosts); err != nil {
		return shared.NewValidationError("VALIDATION", fmt.Sprintf("invalid exclude_hosts: %v", err))
	}
	return nil
}

// resolveCredentials parses the credential IDs and enforces the
// type-match rule between source and credentials.
func (s *SourceService) resolveCredentials(ctx context.Context, sourceType source.Type, raw []string) ([]shared.ID, error) {
	ids := make([]shared.ID, 0, len(raw))
	for _, r := range raw {
		id, err := shared.IDFromString(r)
		if err != nil {
			return nil, shared.NewValidationError("VALIDATION", fmt.Sprintf("invalid credential id: %s", r))
		}

		cred, err := s.credRepo.GetByID(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.NewValidationError("VALIDATION", fmt.Sprintf("credential %s does not exist", r))
			}
			return nil, err
		}
		if cred.Type != sourceType.CredentialType() {
			return nil, shared.NewValidationError("VALIDATION",
				fmt.Sprintf("credential %s has type %s, expected %s", cred.Name, cred.Type, sourceType.CredentialType()))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns a source by ID.
func (s *SourceService) Get(ctx context.Context, id shared.ID) (*source.Source, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists sources.
func (s *SourceService) List(ctx context.Context, filter source.Filter, page pagination.Pagination) (pagination.Result[*source.Source], error) {
	return s.repo.List(ctx, filter, page)
}

// UpdateSourceInput represents the mutable source fields. Nil slices
// leave the stored value untouched.
type UpdateSourceInput struct {
	Name          string   `json:"name" validate:"omitempty,min=1,max=64"`
	Hosts         []string `json:"hosts"`
	ExcludeHosts  []string `json:"exclude_hosts"`
	Port          int      `json:"port" validate:"omitempty,min=1,max=65535"`
	CredentialIDs []string `json:"credentials"`

	SSLCertVerify *bool  `json:"ssl_cert_verify"`
	SSLProtocol   string `json:"ssl_protocol"`
	DisableSSL    bool   `json:"disable_ssl"`
	UseParamiko   bool   `json:"use_paramiko"`
	ProxyURL      string `json:"proxy_url"`
}

// Update applies mutable fields to a source. The type is immutable.
func (s *SourceService) Update(ctx context.Context, id shared.ID, input UpdateSourceInput) (*source.Source, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var credIDs []shared.ID
	if input.CredentialIDs != nil {
		credIDs, err = s.resolveCredentials(ctx, src.Type, input.CredentialIDs)
		if err != nil {
			return nil, err
		}
	}

	if err := src.Update(input.Name, input.Hosts, credIDs); err != nil {
		return nil, err
	}
	if input.Port != 0 {
		if err := src.SetPort(input.Port); err != nil {
			return nil, err
		}
	}
	if input.ExcludeHosts != nil {
		src.SetExcludeHosts(input.ExcludeHosts)
	}
	src.SetOptions(input.SSLCertVerify, input.SSLProtocol, input.DisableSSL, input.UseParamiko, input.ProxyURL)
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateHosts(src); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, src); err != nil {
		return nil, err
	}

	s.logger.Info("source updated", "id", src.ID.String(), "name", src.Name)
	return src, nil
}

// Delete removes a source.
func (s *SourceService) Delete(ctx context.Context, id shared.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("source deleted", "id", id.String())
	return nil
}
