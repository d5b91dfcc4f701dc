package scan

import (
	"encoding/json"

	"github.com/hostscout/api/pkg/domain/shared"
)

// SystemStatus is the per-system outcome inside a task's result set.
type SystemStatus string

const (
	SystemStatusSuccess     SystemStatus = "success"
	SystemStatusFailed      SystemStatus = "failed"
	SystemStatusUnreachable SystemStatus = "unreachable"
)

// IsValid checks if the system status is valid.
func (s SystemStatus) IsValid() bool {
	return s == SystemStatusSuccess || s == SystemStatusFailed || s == SystemStatusUnreachable
}

// String returns the string representation.
func (s SystemStatus) String() string {
	return string(s)
}

// ConnectionResult records the outcome of one connection attempt.
// CredentialID is set only on success.
type ConnectionResult struct {
	ID           shared.ID
	TaskID       shared.ID
	Name         string
	Status       SystemStatus
	CredentialID *shared.ID
}

// NewConnectionResult creates a connection result row.
func NewConnectionResult(taskID shared.ID, name string, status SystemStatus, credentialID *shared.ID) *ConnectionResult {
	return &ConnectionResult{
		ID:           shared.NewID(),
		TaskID:       taskID,
		Name:         name,
		Status:       status,
		CredentialID: credentialID,
	}
}

// RawFact is one key/value pair produced by an inspector. Values are
// JSON-encoded strings.
type RawFact struct {
	Key   string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// InspectionResult records the facts collected from one system.
// Fact order is preserved; the facts of one system are written
// atomically with the row.
type InspectionResult struct {
	ID     shared.ID
	TaskID shared.ID
	Name   string
	Status SystemStatus
	Facts  []RawFact
}

// NewInspectionResult creates an inspection result row.
func NewInspectionResult(taskID shared.ID, name string, status SystemStatus, facts []RawFact) *InspectionResult {
	return &InspectionResult{
		ID:     shared.NewID(),
		TaskID: taskID,
		Name:   name,
		Status: status,
		Facts:  facts,
	}
}

// FactMap flattens the ordered facts into a lookup map.
func (r *InspectionResult) FactMap() map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(r.Facts))
	for _, f := range r.Facts {
		m[f.Key] = f.Value
	}
	return m
}
