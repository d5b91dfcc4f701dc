package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// ConnectRunner walks every candidate host of a network source and
// records which credential, if any, opens an SSH session to it.
type ConnectRunner struct {
	tc      scanner.TaskContext
	store   scanner.Store
	backend Backend
	keyDir  string
	logger  *logger.Logger
}

// NewConnectFactory builds the factory registered for
// (network, connect).
func NewConnectFactory(backend Backend, keyDir string, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &ConnectRunner{
			tc:      tc,
			store:   store,
			backend: backend,
			keyDir:  keyDir,
			logger: log.With("component", "network_connect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
		}
	}
}

// SupportsPartialResults reports that recorded hosts are skipped on
// resume.
func (r *ConnectRunner) SupportsPartialResults() bool { return true }

// Execute implements scanner.Runner.
func (r *ConnectRunner) Execute(ctx context.Context, interrupt *scanner.Interrupt) (string, scan.Status, error) {
	hosts, err := ExpandPatterns(r.tc.Source.Hosts)
	if err != nil {
		return "", scan.StatusFailed, fmt.Errorf("invalid host expressions: %w", err)
	}
	hosts, err = ApplyExclusions(hosts, r.tc.Source.ExcludeHosts)
	if err != nil {
		return "", scan.StatusFailed, fmt.Errorf("invalid exclusion expressions: %w", err)
	}

	total := len(hosts)
	remaining, succeeded, err := r.partitionRecorded(ctx, hosts)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	runFailures := 0
	for _, cred := range r.tc.Credentials {
		if len(remaining) == 0 {
			break
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

		groups := BuildInventory(remaining, cred, r.tc.Source.Port, r.tc.Options.MaxConcurrency, keyPath)
		var failed []string
		for _, group := range groups {
			if sig := interrupt.Observe(); sig != scanner.SignalNone {
				return r.suspend(sig)
			}

			results, err := r.backend.Run(ctx, group, PlaybookConnect)
			if err != nil {
				if errors.Is(err, ErrPassphraseRequired) {
					r.logger.Error("credential key requires passphrase",
						"credential", cred.Name, "error", err)
					failed = append(failed, group.Hosts...)
					continue
				}
				r.logger.Error("connect group failed", "group", group.Name, "error", err)
				runFailures++
				failed = append(failed, group.Hosts...)
				continue
			}

			for _, res := range results {
				switch res.Status {
				case HostSuccess:
					if err := r.record(ctx, res.Host, scan.SystemStatusSuccess, &cred.ID); err != nil {
						return "", scan.StatusFailed, err
					}
					succeeded++
				case HostUnreachable:
					// No point retrying a down host with another credential.
					if err := r.record(ctx, res.Host, scan.SystemStatusUnreachable, nil); err != nil {
						return "", scan.StatusFailed, err
					}
				default:
					failed = append(failed, res.Host)
				}
			}
		}
		remaining = failed
	}

	// Hosts no credential could open are failed.
	for _, host := range remaining {
		if err := r.record(ctx, host, scan.SystemStatusFailed, nil); err != nil {
			return "", scan.StatusFailed, err
		}
	}

	r.tc.Task.SystemsCount = total
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	message := fmt.Sprintf("connected %d of %d systems", succeeded, total)
	if succeeded == 0 && runFailures > 0 {
		return message, scan.StatusFailed, nil
	}
	return message, scan.StatusCompleted, nil
}

// partitionRecorded drops hosts that already have a connection result
// from an earlier run of this task, keeping the resume contract. Only
// prior successes count toward the connected tally; hosts settled as
// failed or unreachable stay settled without inflating it.
func (r *ConnectRunner) partitionRecorded(ctx context.Context, hosts []string) ([]string, int, error) {
	prior, err := r.store.ConnectionResults(ctx, r.tc.Task.ID)
	if err != nil {
		return nil, 0, err
	}

	recorded := make(map[string]bool, len(prior))
	succeeded := 0
	for _, res := range prior {
		recorded[res.Name] = true
		if res.Status == scan.SystemStatusSuccess {
			succeeded++
		}
	}

	out := hosts[:0:0]
	for _, h := range hosts {
		if !recorded[h] {
			out = append(out, h)
		}
	}
	return out, succeeded, nil
}

func (r *ConnectRunner) record(ctx context.Context, host string, status scan.SystemStatus, credID *shared.ID) error {
	res := scan.NewConnectionResult(r.tc.Task.ID, host, status, credID)
	if err := r.store.AddConnectionResult(ctx, res); err != nil {
		return fmt.Errorf("failed to record connection result: %w", err)
	}
	r.tc.Task.IncrementStats(status)
	metrics.SystemsProcessedTotal.WithLabelValues(r.tc.Source.Type.String(), status.String()).Inc()
	return nil
}

func (r *ConnectRunner) suspend(sig scanner.Signal) (string, scan.Status, error) {
	if sig == scanner.SignalCancel {
		return "connect task canceled", scan.StatusCanceled, nil
	}
	return "connect task paused", scan.StatusPaused, nil
}
