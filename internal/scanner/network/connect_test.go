package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
)

func newConnectRunner(tc scanner.TaskContext, store scanner.Store, backend Backend) *ConnectRunner {
	factory := NewConnectFactory(backend, "", testLogger())
	return factory(tc, store).(*ConnectRunner)
}

func TestConnectRunner_Execute(t *testing.T) {
	t.Run("all hosts succeed", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		backend := &fakeBackend{}

		msg, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, "connected 2 of 2 systems", msg)
		require.Len(t, store.connections, 2)
		for _, c := range store.connections {
			assert.Equal(t, scan.SystemStatusSuccess, c.Status)
			require.NotNil(t, c.CredentialID)
			assert.Equal(t, cred.ID, *c.CredentialID)
		}
		assert.Equal(t, 2, tc.Task.SystemsCount)
		assert.Equal(t, 2, tc.Task.SystemsScanned)
	})

	t.Run("second credential picks up auth failures", func(t *testing.T) {
		first := networkPasswordCredential(t)
		second, err := credential.NewNetwork("backup", "root", credential.NetworkAuth{Password: "other"})
		require.NoError(t, err)

		tc := testTaskContext(t, []string{"192.0.2.1"}, first, second)
		store := newFakeStore()
		backend := &sequencedBackend{
			first:  &fakeBackend{statuses: map[string]HostStatus{"192.0.2.1": HostAuthFailed}},
			second: &fakeBackend{},
		}

		msg, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, "connected 1 of 1 systems", msg)
		require.Len(t, store.connections, 1)
		assert.Equal(t, second.ID, *store.connections[0].CredentialID)
	})

	t.Run("unreachable hosts are not retried with other credentials", func(t *testing.T) {
		first := networkPasswordCredential(t)
		second, err := credential.NewNetwork("backup", "root", credential.NetworkAuth{Password: "other"})
		require.NoError(t, err)

		tc := testTaskContext(t, []string{"192.0.2.9"}, first, second)
		store := newFakeStore()
		backend := &fakeBackend{statuses: map[string]HostStatus{"192.0.2.9": HostUnreachable}}

		_, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, store.connections, 1)
		assert.Equal(t, scan.SystemStatusUnreachable, store.connections[0].Status)
		assert.Len(t, backend.groups, 1)
		assert.Equal(t, 1, tc.Task.SystemsUnreachable)
	})

	t.Run("exhausted credentials mark hosts failed without credential", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1"}, cred)
		store := newFakeStore()
		backend := &fakeBackend{statuses: map[string]HostStatus{"192.0.2.1": HostAuthFailed}}

		_, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, store.connections, 1)
		assert.Equal(t, scan.SystemStatusFailed, store.connections[0].Status)
		assert.Nil(t, store.connections[0].CredentialID)
	})

	t.Run("run-level failure with zero successes fails the task", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1"}, cred)
		store := newFakeStore()
		backend := &fakeBackend{runErr: errors.New("broken pipe")}

		_, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusFailed, status)
	})

	t.Run("pause between groups returns paused", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()

		interrupt := &scanner.Interrupt{}
		interrupt.Set(scanner.SignalPause)

		_, status, err := newConnectRunner(tc, store, &fakeBackend{}).Execute(context.Background(), interrupt)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusPaused, status)
		assert.Equal(t, scanner.SignalAck, interrupt.Value())
		assert.Empty(t, store.connections)
	})

	t.Run("resume counts only prior successes as connected", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		require.NoError(t, store.AddConnectionResult(context.Background(),
			scan.NewConnectionResult(tc.Task.ID, "192.0.2.1", scan.SystemStatusFailed, nil)))

		backend := &fakeBackend{runErr: errors.New("broken pipe")}
		msg, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusFailed, status)
		assert.Equal(t, "connected 0 of 2 systems", msg)
	})

	t.Run("resume skips hosts already recorded", func(t *testing.T) {
		cred := networkPasswordCredential(t)
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		require.NoError(t, store.AddConnectionResult(context.Background(),
			scan.NewConnectionResult(tc.Task.ID, "192.0.2.1", scan.SystemStatusSuccess, &cred.ID)))

		backend := &fakeBackend{}
		_, status, err := newConnectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, backend.groups, 1)
		assert.Equal(t, []string{"192.0.2.2"}, backend.groups[0].Hosts)
	})
}

// sequencedBackend delegates the first Run to one backend and every
// later Run to another.
type sequencedBackend struct {
	first  Backend
	second Backend
	calls  int
}

func (b *sequencedBackend) Run(ctx context.Context, group Group, playbook Playbook) ([]HostResult, error) {
	b.calls++
	if b.calls == 1 {
		return b.first.Run(ctx, group, playbook)
	}
	return b.second.Run(ctx, group, playbook)
}
