package satellite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hostscout/api/internal/metrics"
	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

// detailPoolCap bounds the per-host detail fan-out regardless of the
// job's max_concurrency.
const detailPoolCap = 10

// Options configures the runners built by the factories.
type Options struct {
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
}

// ConnectRunner verifies a Satellite is reachable with the source's
// credential by probing the status endpoint.
type ConnectRunner struct {
	tc     scanner.TaskContext
	store  scanner.Store
	opts   Options
	logger *logger.Logger
}

// NewConnectFactory builds the factory registered for
// (satellite, connect).
func NewConnectFactory(opts Options, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &ConnectRunner{
			tc:    tc,
			store: store,
			opts:  opts,
			logger: log.With("component", "satellite_connect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
		}
	}
}

// SupportsPartialResults reports that the probe is rerun on resume.
func (r *ConnectRunner) SupportsPartialResults() bool { return false }

// Execute implements scanner.Runner.
func (r *ConnectRunner) Execute(ctx context.Context, _ *scanner.Interrupt) (string, scan.Status, error) {
	client, err := newSourceClient(r.tc, r.opts, r.logger)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	host := r.tc.Source.Hosts[0]
	version, _, err := client.ProbeVersion(ctx)
	if err != nil {
		status := scan.SystemStatusUnreachable
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
			status = scan.SystemStatusFailed
		}
		r.logger.Error("satellite status probe failed", "host", host, "error", err)
		if recErr := r.record(ctx, host, status, nil); recErr != nil {
			return "", scan.StatusFailed, recErr
		}
		return fmt.Sprintf("cannot reach satellite at %s", host), scan.StatusFailed, nil
	}

	cred := r.tc.Credentials[0]
	if err := r.record(ctx, host, scan.SystemStatusSuccess, &cred.ID); err != nil {
		return "", scan.StatusFailed, err
	}
	r.tc.Task.SystemsCount = 1
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}
	return fmt.Sprintf("connected to satellite %s (version %s)", host, version), scan.StatusCompleted, nil
}

func (r *ConnectRunner) record(ctx context.Context, host string, status scan.SystemStatus, credID *shared.ID) error {
	res := scan.NewConnectionResult(r.tc.Task.ID, host, status, credID)
	if err := r.store.AddConnectionResult(ctx, res); err != nil {
		return fmt.Errorf("failed to record connection result: %w", err)
	}
	r.tc.Task.IncrementStats(status)
	metrics.SystemsProcessedTotal.WithLabelValues(source.TypeSatellite.String(), status.String()).Inc()
	return nil
}

// InspectRunner lists and inspects every host the Satellite manages.
type InspectRunner struct {
	tc     scanner.TaskContext
	store  scanner.Store
	opts   Options
	logger *logger.Logger

	// injectable for tests
	newProtocol func(ctx context.Context, c *Client) (protocol, error)
}

// NewInspectFactory builds the factory registered for
// (satellite, inspect).
func NewInspectFactory(opts Options, log *logger.Logger) scanner.Factory {
	return func(tc scanner.TaskContext, store scanner.Store) scanner.Runner {
		return &InspectRunner{
			tc:    tc,
			store: store,
			opts:  opts,
			logger: log.With("component", "satellite_inspect",
				"task_id", tc.Task.ID.String(), "source", tc.Source.Name),
			newProtocol: detectProtocol,
		}
	}
}

// detectProtocol probes the status endpoint and picks the API flavor:
// versions below 6.2 speak Katello v1, everything else v2.
func detectProtocol(ctx context.Context, c *Client) (protocol, error) {
	_, katello, err := c.ProbeVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("satellite status probe failed: %w", err)
	}
	if katello {
		return &v1Protocol{client: c}, nil
	}
	return &v2Protocol{client: c}, nil
}

// SupportsPartialResults reports that recorded hosts are skipped on
// resume.
func (r *InspectRunner) SupportsPartialResults() bool { return true }

// Execute implements scanner.Runner.
func (r *InspectRunner) Execute(ctx context.Context, interrupt *scanner.Interrupt) (string, scan.Status, error) {
	client, err := newSourceClient(r.tc, r.opts, r.logger)
	if err != nil {
		return "", scan.StatusFailed, err
	}
	proto, err := r.newProtocol(ctx, client)
	if err != nil {
		return "", scan.StatusFailed, err
	}

	hosts, err := proto.Hosts(ctx)
	if err != nil {
		return "", scan.StatusFailed, fmt.Errorf("failed to list satellite hosts: %w", err)
	}

	r.tc.Task.SystemsCount = len(hosts)
	if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
		return "", scan.StatusFailed, err
	}

	pool := r.tc.Options.MaxConcurrency
	if pool > detailPoolCap {
		pool = detailPoolCap
	}
	if pool < 1 {
		pool = 1
	}

	// Hosts are fetched in bounded batches; the interrupt is observed
	// between batches so pause and cancel take effect promptly.
	for start := 0; start < len(hosts); start += pool {
		if sig := interrupt.Observe(); sig != scanner.SignalNone {
			return r.suspend(sig)
		}

		end := start + pool
		if end > len(hosts) {
			end = len(hosts)
		}

		var mu sync.Mutex
		results := make([]*scan.InspectionResult, 0, end-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(pool)
		for _, h := range hosts[start:end] {
			h := h
			g.Go(func() error {
				recorded, err := r.store.HasInspectionResult(gctx, r.tc.Task.ID, h.Key())
				if err != nil {
					return err
				}
				if recorded {
					return nil
				}
				res := r.inspectHost(gctx, proto, h)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", scan.StatusFailed, err
		}

		for _, res := range results {
			if err := r.store.AddInspectionResult(ctx, res); err != nil {
				return "", scan.StatusFailed, fmt.Errorf("failed to record inspection result: %w", err)
			}
			r.tc.Task.IncrementStats(res.Status)
			metrics.SystemsProcessedTotal.WithLabelValues(source.TypeSatellite.String(), res.Status.String()).Inc()
		}
		if err := r.store.SaveTask(ctx, r.tc.Task); err != nil {
			return "", scan.StatusFailed, err
		}
	}

	message := fmt.Sprintf("inspected %d of %d systems",
		r.tc.Task.SystemsScanned, r.tc.Task.SystemsCount)
	if r.tc.Task.SystemsScanned == 0 && r.tc.Task.SystemsCount > 0 {
		return message, scan.StatusFailed, nil
	}
	return message, scan.StatusCompleted, nil
}

// inspectHost fetches both per-host endpoints. Per-host errors never
// bubble up; the host is recorded failed instead.
func (r *InspectRunner) inspectHost(ctx context.Context, proto protocol, h hostRef) *scan.InspectionResult {
	fields, subs, err := proto.HostDetails(ctx, h)
	if err != nil {
		status := fmt.Sprintf("inspection failed: %v", err)
		if isNotRegistered(err) {
			r.logger.Debug("host not registered with subscription-manager", "host", h.Key())
		} else {
			r.logger.Error("host inspection failed", "host", h.Key(), "error", err)
		}
		return scan.NewInspectionResult(r.tc.Task.ID, h.Key(), scan.SystemStatusFailed,
			[]scan.RawFact{mustFact("inspection_status", status)})
	}

	facts := []scan.RawFact{
		{Key: "host_fields_response", Value: fields},
		{Key: "host_subscriptions_response", Value: subs},
	}
	for key, v := range extractHostFields(fields) {
		if f, ok := fact(key, v); ok {
			facts = append(facts, f)
		}
	}
	if subsList := extractSubscriptions(subs); len(subsList) > 0 {
		if f, ok := fact("entitlements", subsList); ok {
			facts = append(facts, f)
		}
	}

	return scan.NewInspectionResult(r.tc.Task.ID, h.Key(), scan.SystemStatusSuccess, facts)
}

func (r *InspectRunner) suspend(sig scanner.Signal) (string, scan.Status, error) {
	if sig == scanner.SignalCancel {
		return "satellite inspection canceled", scan.StatusCanceled, nil
	}
	return "satellite inspection paused", scan.StatusPaused, nil
}

func fact(key string, v any) (scan.RawFact, bool) {
	value, err := json.Marshal(v)
	if err != nil {
		return scan.RawFact{}, false
	}
	return scan.RawFact{Key: key, Value: value}, true
}

func mustFact(key string, v any) scan.RawFact {
	f, _ := fact(key, v)
	return f
}

// newSourceClient builds a client from the task's source and first
// credential.
func newSourceClient(tc scanner.TaskContext, opts Options, log *logger.Logger) (*Client, error) {
	if tc.Source == nil || len(tc.Source.Hosts) == 0 {
		return nil, fmt.Errorf("satellite source has no host")
	}
	if len(tc.Credentials) == 0 {
		return nil, fmt.Errorf("satellite source has no credential")
	}

	scheme := "https"
	if tc.Source.DisableSSL {
		scheme = "http"
	}
	cred := tc.Credentials[0]
	return NewClient(ClientConfig{
		BaseURL:           fmt.Sprintf("%s://%s:%d", scheme, tc.Source.Hosts[0], tc.Source.Port),
		Username:          cred.Username,
		Password:          cred.Password,
		Timeout:           opts.HTTPTimeout,
		SSLCertVerify:     tc.Source.SSLCertVerify,
		DisableSSL:        tc.Source.DisableSSL,
		ProxyURL:          tc.Source.ProxyURL,
		RequestsPerSecond: opts.RequestsPerSecond,
	}, log)
}
