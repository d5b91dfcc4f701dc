package network

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
)

func newInspectRunner(tc scanner.TaskContext, store scanner.Store, backend Backend) *InspectRunner {
	factory := NewInspectFactory(backend, "", testLogger())
	runner := factory(tc, store).(*InspectRunner)
	return runner
}

func TestInspectRunner_Execute(t *testing.T) {
	cred := networkPasswordCredential(t)

	seed := func(t *testing.T, store *fakeStore, tc scanner.TaskContext, hosts ...string) {
		t.Helper()
		for _, h := range hosts {
			require.NoError(t, store.AddConnectionResult(context.Background(),
				scan.NewConnectionResult(tc.Task.ID, h, scan.SystemStatusSuccess, &cred.ID)))
		}
	}

	t.Run("collects facts for reached hosts", func(t *testing.T) {
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		seed(t, store, tc, "192.0.2.1", "192.0.2.2")

		hostname, _ := json.Marshal("box1")
		backend := &fakeBackend{facts: map[string][]scan.RawFact{
			"192.0.2.1": {{Key: "uname_hostname", Value: hostname}},
			"192.0.2.2": {{Key: "uname_hostname", Value: hostname}},
		}}

		msg, status, err := newInspectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, "inspected 2 of 2 systems", msg)
		require.Len(t, store.inspections, 2)

		facts := store.inspections[0].FactMap()
		assert.Contains(t, facts, "uname_hostname")
		assert.Contains(t, facts, "connection_timestamp")
	})

	t.Run("no reachable systems fails the task", func(t *testing.T) {
		tc := testTaskContext(t, []string{"192.0.2.1"}, cred)
		store := newFakeStore()

		_, status, err := newInspectRunner(tc, store, &fakeBackend{}).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusFailed, status)
	})

	t.Run("host play failure is recorded as failed system", func(t *testing.T) {
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		seed(t, store, tc, "192.0.2.1", "192.0.2.2")

		ok, _ := json.Marshal("box2")
		backend := &fakeBackend{
			statuses: map[string]HostStatus{"192.0.2.1": HostFailed},
			facts:    map[string][]scan.RawFact{"192.0.2.2": {{Key: "uname_hostname", Value: ok}}},
		}

		_, status, err := newInspectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, 1, tc.Task.SystemsScanned)
		assert.Equal(t, 1, tc.Task.SystemsFailed)
	})

	t.Run("resume skips inspected hosts", func(t *testing.T) {
		tc := testTaskContext(t, []string{"192.0.2.1", "192.0.2.2"}, cred)
		store := newFakeStore()
		seed(t, store, tc, "192.0.2.1", "192.0.2.2")
		require.NoError(t, store.AddInspectionResult(context.Background(),
			scan.NewInspectionResult(tc.Task.ID, "192.0.2.1", scan.SystemStatusSuccess, nil)))

		backend := &fakeBackend{}
		_, status, err := newInspectRunner(tc, store, backend).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, backend.groups, 1)
		assert.Equal(t, []string{"192.0.2.2"}, backend.groups[0].Hosts)
	})

	t.Run("cancel between groups returns canceled", func(t *testing.T) {
		tc := testTaskContext(t, []string{"192.0.2.1"}, cred)
		store := newFakeStore()
		seed(t, store, tc, "192.0.2.1")

		interrupt := &scanner.Interrupt{}
		interrupt.Set(scanner.SignalCancel)

		_, status, err := newInspectRunner(tc, store, &fakeBackend{}).Execute(context.Background(), interrupt)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCanceled, status)
		assert.Equal(t, scanner.SignalAck, interrupt.Value())
	})
}
