package satellite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

func satelliteTaskContext(t *testing.T) scanner.TaskContext {
	t.Helper()

	cred, err := credential.NewUserPass("sat-cred", credential.TypeSatellite, "admin", "secret")
	require.NoError(t, err)
	src, err := source.New("sat-source", source.TypeSatellite, []string{"sat.example.com"}, []shared.ID{cred.ID})
	require.NoError(t, err)

	job, err := scan.NewJob(scan.TypeInspect, []shared.ID{src.ID}, scan.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, job.Queue([]*source.Source{src}))
	require.NoError(t, job.Start())

	inspect := job.Tasks[1]
	require.NoError(t, job.Tasks[0].Start())
	require.NoError(t, job.Tasks[0].Complete("connected"))
	require.NoError(t, inspect.Start())

	return scanner.TaskContext{
		Job:         job,
		Task:        inspect,
		Source:      src,
		Credentials: []*credential.Credential{cred},
		Options:     job.Options,
	}
}

// fakeProtocol scripts host listings and per-host outcomes.
type fakeProtocol struct {
	hosts  []hostRef
	fields map[int64]json.RawMessage
	subs   map[int64]json.RawMessage
	errs   map[int64]error
}

func (p *fakeProtocol) Hosts(context.Context) ([]hostRef, error) {
	return p.hosts, nil
}

func (p *fakeProtocol) HostDetails(_ context.Context, h hostRef) (json.RawMessage, json.RawMessage, error) {
	if err := p.errs[h.ID]; err != nil {
		return nil, nil, err
	}
	return p.fields[h.ID], p.subs[h.ID], nil
}

// fakeStore is an in-memory scanner.Store.
type fakeStore struct {
	tasks       map[shared.ID]*scan.ScanTask
	inspections []*scan.InspectionResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[shared.ID]*scan.ScanTask)}
}

func (s *fakeStore) SaveTask(_ context.Context, task *scan.ScanTask) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeStore) AddConnectionResult(context.Context, *scan.ConnectionResult) error { return nil }

func (s *fakeStore) HasConnectionResult(context.Context, shared.ID, string) (bool, error) {
	return false, nil
}

func (s *fakeStore) ConnectionResults(context.Context, shared.ID) ([]*scan.ConnectionResult, error) {
	return nil, nil
}

func (s *fakeStore) SuccessfulConnections(context.Context, shared.ID, shared.ID) ([]*scan.ConnectionResult, error) {
	return nil, nil
}

func (s *fakeStore) AddInspectionResult(_ context.Context, res *scan.InspectionResult) error {
	s.inspections = append(s.inspections, res)
	return nil
}

func (s *fakeStore) HasInspectionResult(_ context.Context, taskID shared.ID, name string) (bool, error) {
	for _, r := range s.inspections {
		if r.TaskID == taskID && r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) InspectionResults(_ context.Context, taskID shared.ID) ([]*scan.InspectionResult, error) {
	return s.inspections, nil
}

func newInspectRunnerWithProtocol(tc scanner.TaskContext, store scanner.Store, proto protocol) *InspectRunner {
	factory := NewInspectFactory(Options{}, testLogger())
	runner := factory(tc, store).(*InspectRunner)
	runner.newProtocol = func(context.Context, *Client) (protocol, error) { return proto, nil }
	return runner
}

func TestInspectRunner_Execute(t *testing.T) {
	fields := json.RawMessage(`{"name": "sat-host", "operatingsystem_name": "RedHat 7.4"}`)
	subs := json.RawMessage(`{"results": [{"name": "RHEL", "start_date": "2017-01-01"}]}`)

	t.Run("inspects every listed host", func(t *testing.T) {
		tc := satelliteTaskContext(t)
		store := newFakeStore()
		proto := &fakeProtocol{
			hosts: []hostRef{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
			fields: map[int64]json.RawMessage{1: fields, 2: fields},
			subs:   map[int64]json.RawMessage{1: subs, 2: subs},
		}

		msg, status, err := newInspectRunnerWithProtocol(tc, store, proto).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, "inspected 2 of 2 systems", msg)
		require.Len(t, store.inspections, 2)

		facts := store.inspections[0].FactMap()
		assert.Contains(t, facts, "host_fields_response")
		assert.Contains(t, facts, "host_subscriptions_response")
		assert.Contains(t, facts, "os_release")
		assert.Contains(t, facts, "entitlements")
	})

	t.Run("unregistered host fails without failing the task", func(t *testing.T) {
		tc := satelliteTaskContext(t)
		store := newFakeStore()
		proto := &fakeProtocol{
			hosts:  []hostRef{{ID: 41, Name: "ok"}, {ID: 42, Name: "unregistered"}},
			fields: map[int64]json.RawMessage{41: fields},
			subs:   map[int64]json.RawMessage{41: subs},
			errs: map[int64]error{42: &APIError{StatusCode: 400,
				Body: "Host has not been registered with subscription-manager"}},
		}

		_, status, err := newInspectRunnerWithProtocol(tc, store, proto).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, store.inspections, 2)

		var failed *scan.InspectionResult
		for _, r := range store.inspections {
			if r.Name == "unregistered_42" {
				failed = r
			}
		}
		require.NotNil(t, failed)
		assert.Equal(t, scan.SystemStatusFailed, failed.Status)
		assert.Contains(t, string(failed.FactMap()["inspection_status"]), "not been registered")
	})

	t.Run("resume skips recorded hosts", func(t *testing.T) {
		tc := satelliteTaskContext(t)
		store := newFakeStore()
		require.NoError(t, store.AddInspectionResult(context.Background(),
			scan.NewInspectionResult(tc.Task.ID, "a_1", scan.SystemStatusSuccess, nil)))

		proto := &fakeProtocol{
			hosts:  []hostRef{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
			fields: map[int64]json.RawMessage{2: fields},
			subs:   map[int64]json.RawMessage{2: subs},
		}

		_, status, err := newInspectRunnerWithProtocol(tc, store, proto).Execute(context.Background(), &scanner.Interrupt{})
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Len(t, store.inspections, 2)
	})

	t.Run("pause before a batch returns paused", func(t *testing.T) {
		tc := satelliteTaskContext(t)
		store := newFakeStore()
		proto := &fakeProtocol{hosts: []hostRef{{ID: 1, Name: "a"}}}

		interrupt := &scanner.Interrupt{}
		interrupt.Set(scanner.SignalPause)

		_, status, err := newInspectRunnerWithProtocol(tc, store, proto).Execute(context.Background(), interrupt)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusPaused, status)
		assert.Equal(t, scanner.SignalAck, interrupt.Value())
	})
}
