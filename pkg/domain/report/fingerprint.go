package report

import (
	"fmt"

	"github.com/google/uuid"
)

// Well-known fingerprint field names referenced across the engine.
const (
	FieldName                  = "name"
	FieldBiosUUID              = "bios_uuid"
	FieldSubscriptionManagerID = "subscription_manager_id"
	FieldVMUUID                = "vm_uuid"
	FieldCPUCount              = "cpu_count"
	FieldInfrastructureType    = "infrastructure_type"
	FieldMACAddresses          = "mac_addresses"
	FieldIPAddresses           = "ip_addresses"
	FieldSources               = "sources"
	FieldEntitlements          = "entitlements"
	FieldProducts              = "products"
	FieldSystemCreationDate    = "system_creation_date"
)

// Infrastructure type values.
const (
	InfraBareMetal   = "bare_metal"
	InfraVirtualized = "virtualized"
	InfraHypervisor  = "hypervisor"
	InfraUnknown     = "unknown"
)

// Metadata records field provenance: which source wrote the field, from
// which raw fact, and whether the inspector had privilege at the time.
type Metadata struct {
	ServerID   string `json:"server_id"`
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type"`
	RawFactKey string `json:"raw_fact_key"`
	HasSudo    bool   `json:"has_sudo"`
}

// SourceRef identifies one source that contributed to a fingerprint.
type SourceRef struct {
	ServerID   string `json:"server_id"`
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type"`
}

// Key returns the composite key used when unioning source refs.
func (s SourceRef) Key() string {
	return s.ServerID + "+" + s.SourceName
}

// Entitlement is a subscription attachment.
type Entitlement struct {
	Name               string `json:"name"`
	EntitlementID      string `json:"entitlement_id,omitempty"`
	Amount             any    `json:"amount,omitempty"`
	AccountNumber      string `json:"account_number,omitempty"`
	ContractNumber     string `json:"contract_number,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	EndDate            string `json:"end_date,omitempty"`
	DerivedEntitlement bool   `json:"derived_entitlement"`
}

// Key returns the dedup key for entitlement lists.
func (e Entitlement) Key() string {
	return e.Name + ":" + e.EntitlementID
}

// Product is one product detector's output.
type Product struct {
	Name     string         `json:"name"`
	Presence string         `json:"presence"`
	Version  []string       `json:"version,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Fingerprint is a normalized per-system record. Fields are dynamic:
// each source type's mapping table decides which keys exist, and the
// merge rule treats every field uniformly, so the record is a field map
// with parallel provenance metadata rather than a wide struct.
type Fingerprint struct {
	// GlobalID tags the record before cross-source indexing so that a
	// record matched via multiple keys collapses to one survivor.
	GlobalID string `json:"fingerprint_global_id"`

	Fields   map[string]any      `json:"fields"`
	Metadata map[string]Metadata `json:"metadata"`

	Sources      []SourceRef   `json:"sources"`
	Entitlements []Entitlement `json:"entitlements"`
	Products     []Product     `json:"products"`
}

// NewFingerprint creates an empty fingerprint tagged with a fresh
// global ID.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{
		GlobalID: uuid.NewString(),
		Fields:   make(map[string]any),
		Metadata: make(map[string]Metadata),
	}
}

// Set writes a field and its provenance metadata. Empty strings become
// absent fields.
func (f *Fingerprint) Set(key string, value any, meta Metadata) {
	if s, ok := value.(string); ok && s == "" {
		value = nil
	}
	if value == nil {
		return
	}
	f.Fields[key] = value
	f.Metadata[key] = meta
}

// SetNull records metadata for a field whose value could not be derived.
func (f *Fingerprint) SetNull(key string, meta Metadata) {
	f.Fields[key] = nil
	f.Metadata[key] = meta
}

// Has reports whether the field key exists (even with a null value).
func (f *Fingerprint) Has(key string) bool {
	_, ok := f.Fields[key]
	return ok
}

// Get returns the field value, nil if absent.
func (f *Fingerprint) Get(key string) any {
	return f.Fields[key]
}

// GetString returns the field as a string, "" if absent or not a string.
func (f *Fingerprint) GetString(key string) string {
	if s, ok := f.Fields[key].(string); ok {
		return s
	}
	return ""
}

// GetStrings returns the field as a string slice. Scalar strings come
// back as a one-element slice.
func (f *Fingerprint) GetStrings(key string) []string {
	switch v := f.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// Validate checks the fingerprint is persistable: it must identify a
// system by at least one of its identity fields.
func (f *Fingerprint) Validate() error {
	for _, key := range []string{FieldName, FieldBiosUUID, FieldSubscriptionManagerID, FieldVMUUID} {
		if v := f.Fields[key]; v != nil {
			return nil
		}
	}
	return fmt.Errorf("fingerprint has no identity field (one of name, bios_uuid, subscription_manager_id, vm_uuid)")
}

// Clone deep-copies the fingerprint (fields one level deep; list values
// are copied, nested maps shared).
func (f *Fingerprint) Clone() *Fingerprint {
	c := &Fingerprint{
		GlobalID: f.GlobalID,
		Fields:   make(map[string]any, len(f.Fields)),
		Metadata: make(map[string]Metadata, len(f.Metadata)),
	}
	for k, v := range f.Fields {
		if list, ok := v.([]string); ok {
			c.Fields[k] = append([]string(nil), list...)
			continue
		}
		c.Fields[k] = v
	}
	for k, v := range f.Metadata {
		c.Metadata[k] = v
	}
	c.Sources = append([]SourceRef(nil), f.Sources...)
	c.Entitlements = append([]Entitlement(nil), f.Entitlements...)
	c.Products = append([]Product(nil), f.Products...)
	return c
}
