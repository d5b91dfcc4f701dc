package network

import (
	"context"
	"errors"

	"github.com/hostscout/api/pkg/domain/scan"
)

// Playbook names the action a backend performs against a host group.
type Playbook string

const (
	// PlaybookConnect only verifies that a credential opens a session.
	PlaybookConnect Playbook = "connect"
	// PlaybookInspect collects raw facts from each host.
	PlaybookInspect Playbook = "inspect"
)

// HostStatus is the per-host outcome of one backend run.
type HostStatus string

const (
	HostSuccess     HostStatus = "success"
	HostFailed      HostStatus = "failed"
	HostUnreachable HostStatus = "unreachable"
	HostAuthFailed  HostStatus = "auth_failed"
)

// HostResult is one host's outcome. Facts is populated only by the
// inspect playbook, in collection order.
type HostResult struct {
	Host   string
	Status HostStatus
	Facts  []scan.RawFact
}

// ErrPassphraseRequired reports a private key the backend could not
// decrypt. It is distinct from ordinary auth failure so callers can
// surface it instead of marking hosts failed.
var ErrPassphraseRequired = errors.New("ssh private key is passphrase protected and could not be decrypted")

// Backend executes a playbook over one inventory group. A returned
// error is a run-level failure covering the whole group; per-host
// outcomes come back in the results.
type Backend interface {
	Run(ctx context.Context, group Group, playbook Playbook) ([]HostResult, error)
}
