// Package source provides the source aggregate: a named inventory
// target bound to credentials of the matching type.
package source

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/shared"
)

// Type is the source type discriminator.
type Type string

const (
	TypeNetwork   Type = "network"
	TypeVCenter   Type = "vcenter"
	TypeSatellite Type = "satellite"
	TypeOpenShift Type = "openshift"
	TypeAnsible   Type = "ansible"
	TypeRHACS     Type = "rhacs"
)

// AllTypes returns all valid source types.
func AllTypes() []Type {
	return []Type{TypeNetwork, TypeVCenter, TypeSatellite, TypeOpenShift, TypeAnsible, TypeRHACS}
}

// IsValid checks if the source type is valid.
func (t Type) IsValid() bool {
	return slices.Contains(AllTypes(), t)
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid source type: %s", s)
	}
	return t, nil
}

// CredentialType returns the credential type a source of this type accepts.
func (t Type) CredentialType() credential.Type {
	return credential.Type(t)
}

// DefaultPort returns the default port for the source type.
func (t Type) DefaultPort() int {
	switch t {
	case TypeNetwork:
		return 22
	case TypeOpenShift:
		return 6443
	default:
		return 443
	}
}

// SingleHost reports whether the source type accepts exactly one host
// and at most one credential.
func (t Type) SingleHost() bool {
	return t != TypeNetwork
}

// Source is a named inventory target.
type Source struct {
	ID   shared.ID
	Name string
	Type Type

	Hosts        []string
	ExcludeHosts []string
	Port         int

	SSLCertVerify bool
	SSLProtocol   string
	DisableSSL    bool
	UseParamiko   bool
	ProxyURL      string

	CredentialIDs []shared.ID

	// Most recent connect-phase scan job over this source, if any.
	MostRecentConnectScanID *shared.ID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a source with type defaults applied. Host expressions are
// syntax-checked by the service layer against the inventory grammar.
func New(name string, sourceType Type, hosts []string, credentialIDs []shared.ID) (*Source, error) {
	if name == "" {
		return nil, shared.NewValidationError("VALIDATION", "name is required")
	}
	if !sourceType.IsValid() {
		return nil, shared.NewValidationError("VALIDATION", "invalid source_type")
	}

	now := time.Now()
	s := &Source{
		ID:            shared.NewID(),
		Name:          name,
		Type:          sourceType,
		Hosts:         hosts,
		ExcludeHosts:  []string{},
		Port:          sourceType.DefaultPort(),
		SSLCertVerify: sourceType != TypeNetwork,
		CredentialIDs: credentialIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the cardinality rules of §the source model.
func (s *Source) Validate() error {
	if len(s.Hosts) == 0 {
		return shared.NewValidationError("VALIDATION", "hosts is required")
	}
	if len(s.CredentialIDs) == 0 {
		return shared.NewValidationError("VALIDATION", "at least one credential is required")
	}
	if s.Type.SingleHost() {
		if len(s.Hosts) != 1 {
			return shared.NewValidationError("VALIDATION",
				fmt.Sprintf("%s sources accept exactly one host", s.Type))
		}
		if len(s.CredentialIDs) != 1 {
			return shared.NewValidationError("VALIDATION",
				fmt.Sprintf("%s sources accept at most one credential", s.Type))
		}
		if len(s.ExcludeHosts) != 0 {
			return shared.NewValidationError("VALIDATION",
				fmt.Sprintf("%s sources do not accept exclude_hosts", s.Type))
		}
	}
	if s.UseParamiko && s.Type != TypeNetwork {
		return shared.NewValidationError("VALIDATION", "use_paramiko applies to network sources only")
	}
	if s.ProxyURL != "" && !strings.HasPrefix(s.ProxyURL, "http://") && !strings.HasPrefix(s.ProxyURL, "https://") {
		return shared.NewValidationError("VALIDATION", "proxy_url must be http(s)://host:port")
	}
	if s.Port < 1 || s.Port > 65535 {
		return shared.NewValidationError("VALIDATION", "port must be between 1 and 65535")
	}
	return nil
}

// SetPort overrides the default port.
func (s *Source) SetPort(port int) error {
	if port < 1 || port > 65535 {
		return shared.NewValidationError("VALIDATION", "port must be between 1 and 65535")
	}
	s.Port = port
	s.UpdatedAt = time.Now()
	return nil
}

// SetExcludeHosts sets the exclusion list (network sources only).
func (s *Source) SetExcludeHosts(hosts []string) {
	if hosts == nil {
		hosts = []string{}
	}
	s.ExcludeHosts = hosts
	s.UpdatedAt = time.Now()
}

// SetOptions applies the optional transport settings.
func (s *Source) SetOptions(sslCertVerify *bool, sslProtocol string, disableSSL, useParamiko bool, proxyURL string) {
	if sslCertVerify != nil {
		s.SSLCertVerify = *sslCertVerify
	}
	s.SSLProtocol = sslProtocol
	s.DisableSSL = disableSSL
	s.UseParamiko = useParamiko
	s.ProxyURL = proxyURL
	s.UpdatedAt = time.Now()
}

// MarkConnectScan records the most recent connect scan job.
func (s *Source) MarkConnectScan(jobID shared.ID) {
	s.MostRecentConnectScanID = &jobID
	s.UpdatedAt = time.Now()
}

// Update applies mutable fields. Type is immutable after creation.
func (s *Source) Update(name string, hosts []string, credentialIDs []shared.ID) error {
	if name != "" {
		s.Name = name
	}
	if hosts != nil {
		s.Hosts = hosts
	}
	if credentialIDs != nil {
		s.CredentialIDs = credentialIDs
	}
	s.UpdatedAt = time.Now()
	return s.Validate()
}
