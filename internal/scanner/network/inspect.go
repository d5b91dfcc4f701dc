package network

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// connectionTimestampLayout is the raw-fact form of the moment a system
// was inspected. The fingerprinter parses it with the same layout.
const connectionTimestampLayout = "20060102150405"

// InspectRunner collects raw facts from every host the connect phase
// reached, reusing the credential that worked for each host.
type InspectRunner struct {
	tc      scanner.TaskContext
	store   scanner.Store
	backend Backend
	keyDir  string
	logger  *logger.Logger
	now     func() time.Time
}

// NewInspectFactory builds the factory registered for
// (network, inspect).
func NewInspectFactory(backend Backend, keyDir string, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &InspectRunner{
			tc:      tc,
			store:   store,
			backend: backend,
			keyDir:  keyDir,
			logger: log.With("component", "network_inspect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
			now: time.Now,
		}
	}
}

// SupportsPartialResults reports that recorded hosts are skipped on
// resume.
func (r *InspectRunner) SupportsPartialResults() bool { return true }

// Execute implements scanner.Runner.
func (r *InspectRunner) Execute(ctx context.Context, interrupt *scanner.Interrupt) (string, scan.Status, error) {
	conns, err := r.store.SuccessfulConnections(ctx, r.tc.Job.ID, r.tc.Source.ID)
	if err != nil {
		return "", scan.StatusFailed, fmt.Errorf("failed to load connection results: %w", err)
	}
	if len(conns) == 0 {
		return "no reachable systems to inspect", scan.StatusFailed, nil
	}

	byCredential := make(map[shared.ID][]string)
	for _, c := range conns {
		if c.CredentialID == nil {
			continue
		}
		has, err := r.store.HasInspectionResult(ctx, r.tc.Task.ID, c.Name)
		if err != nil {
			return "", scan.StatusFailed, err
		}
		if has {
			continue
		}
		byCredential[*c.CredentialID] = append(byCredential[*c.CredentialID], c.Name)
	}

	r.tc.Task.SystemsCount = len(conns)
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	for credID, hosts := range byCredential {
		cred := r.credentialByID(credID)
		if cred == nil {
			return "", scan.StatusFailed, fmt.Errorf("credential %s not attached to source", credID)
		}

		keyPath := ""
		if cred.HasSSHKey() {
			path, cleanup, err := WriteKeyFile(r.keyDir, cred.SSHKey)
			if err != nil {
				return "", scan.StatusFailed, err
			}
			defer cleanup()
			keyPath = path
		}

		for _, group := range BuildInventory(hosts, cred, r.tc.Source.Port, r.tc.Options.MaxConcurrency, keyPath) {
			if sig := interrupt.Observe(); sig != scanner.SignalNone {
				return r.suspend(sig)
			}

			results, err := r.backend.Run(ctx, group, PlaybookInspect)
			if err != nil {
				r.logger.Error("inspect group failed", "group", group.Name, "error", err)
				for _, host := range group.Hosts {
					if err := r.record(ctx, host, scan.SystemStatusFailed, nil); err != nil {
						return "", scan.StatusFailed, err
					}
				}
				continue
			}

			for _, res := range results {
				status := scan.SystemStatusFailed
				var facts []scan.RawFact
				if res.Status == HostSuccess {
					status = scan.SystemStatusSuccess
					facts = r.stampFacts(res.Facts)
				}
				if err := r.record(ctx, res.Host, status, facts); err != nil {
					return "", scan.StatusFailed, err
				}
			}
		}
	}

	message := fmt.Sprintf("inspected %d of %d systems",
		r.tc.Task.SystemsScanned, r.tc.Task.SystemsCount)
	if r.tc.Task.SystemsScanned == 0 {
		return message, scan.StatusFailed, nil
	}
	return message, scan.StatusCompleted, nil
}

// stampFacts appends the connection timestamp the fingerprinter uses
// for system_last_checkin_date.
func (r *InspectRunner) stampFacts(facts []scan.RawFact) []scan.RawFact {
	ts, err := json.Marshal(r.now().UTC().Format(connectionTimestampLayout))
	if err != nil {
		return facts
	}
	return append(facts, scan.RawFact{Key: "connection_timestamp", Value: ts})
}

func (r *InspectRunner) credentialByID(id shared.ID) *credential.Credential {
	for _, c := range r.tc.Credentials {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *InspectRunner) record(ctx context.Context, host string, status scan.SystemStatus, facts []scan.RawFact) error {
	res := scan.NewInspectionResult(r.tc.Task.ID, host, status, facts)
	if err := r.store.AddInspectionResult(ctx, res); err != nil {
		return fmt.Errorf("failed to record inspection result: %w", err)
	}
	r.tc.Task.IncrementStats(status)
	metrics.SystemsProcessedTotal.WithLabelValues(r.tc.Source.Type.String(), status.String()).Inc()
	return nil
}

func (r *InspectRunner) suspend(sig scanner.Signal) (string, scan.Status, error) {
	if sig == scanner.SignalCancel {
		return "inspect task canceled", scan.StatusCanceled, nil
	}
	return "inspect task paused", scan.StatusPaused, nil
}
