package apisource

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

func vcenterTaskContext(t *testing.T) scanner.TaskContext {
	t.Helper()

	cred, err := credential.NewUserPass("vc-cred", credential.TypeVCenter, "admin", "secret")
	require.NoError(t, err)
	src, err := source.New("vc-source", source.TypeVCenter, []string{"vc.example.com"}, []shared.ID{cred.ID})
	require.NoError(t, err)

	job, err := scan.NewJob(scan.TypeInspect, []shared.ID{src.ID}, scan.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, job.Queue([]*source.Source{src}))
	require.NoError(t, job.Start())
	require.NoError(t, job.Tasks[0].Start())

	return scanner.TaskContext{
		Job:         job,
		Task:        job.Tasks[0],
		Source:      src,
		Credentials: []*credential.Credential{cred},
		Options:     job.Options,
	}
}

type fakeCollector struct {
	probeErr error
	systems  []System
	listErr  error
}

func (c *fakeCollector) Probe(context.Context) error { return c.probeErr }

func (c *fakeCollector) Systems(context.Context) ([]System, error) {
	return c.systems, c.listErr
}

func fakeFactory(c Collector) CollectorFactory {
	return func(scanner.TaskContext) (Collector, error) { return c, nil }
}

type memStore struct {
	tasks       map[shared.ID]*scan.ScanTask
	connections []*scan.ConnectionResult
	inspections []*scan.InspectionResult
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[shared.ID]*scan.ScanTask)}
}

func (s *memStore) SaveTask(_ context.Context, task *scan.ScanTask) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *memStore) AddConnectionResult(_ context.Context, res *scan.ConnectionResult) error {
	s.connections = append(s.connections, res)
	return nil
}

func (s *memStore) HasConnectionResult(context.Context, shared.ID, string) (bool, error) {
	return false, nil
}

func (s *memStore) ConnectionResults(context.Context, shared.ID) ([]*scan.ConnectionResult, error) {
	return s.connections, nil
}

func (s *memStore) SuccessfulConnections(context.Context, shared.ID, shared.ID) ([]*scan.ConnectionResult, error) {
	return s.connections, nil
}

func (s *memStore) AddInspectionResult(_ context.Context, res *scan.InspectionResult) error {
	s.inspections = append(s.inspections, res)
	return nil
}

func (s *memStore) HasInspectionResult(_ context.Context, taskID shared.ID, name string) (bool, error) {
	for _, r := range s.inspections {
		if r.TaskID == taskID && r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InspectionResults(context.Context, shared.ID) ([]*scan.InspectionResult, error) {
	return s.inspections, nil
}

func TestConnectRunner_Execute(t *testing.T) {
	t.Run("probe success records the host with its credential", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()

		factory := NewConnectFactory(fakeFactory(&fakeCollector{}), testLogger())
		_, status, err := factory(tc, store).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		require.Len(t, store.connections, 1)
		assert.Equal(t, scan.SystemStatusSuccess, store.connections[0].Status)
		assert.NotNil(t, store.connections[0].CredentialID)
	})

	t.Run("auth failure records the host failed", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()

		collector := &fakeCollector{probeErr: fmt.Errorf("%w: status 401", ErrAuthFailed)}
		factory := NewConnectFactory(fakeFactory(collector), testLogger())
		_, status, err := factory(tc, store).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusFailed, status)
		require.Len(t, store.connections, 1)
		assert.Equal(t, scan.SystemStatusFailed, store.connections[0].Status)
		assert.Nil(t, store.connections[0].CredentialID)
	})

	t.Run("transport failure records the host unreachable", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()

		collector := &fakeCollector{probeErr: errors.New("dial tcp: connection refused")}
		factory := NewConnectFactory(fakeFactory(collector), testLogger())
		_, status, err := factory(tc, store).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusFailed, status)
		require.Len(t, store.connections, 1)
		assert.Equal(t, scan.SystemStatusUnreachable, store.connections[0].Status)
	})
}

func TestInspectRunner_Execute(t *testing.T) {
	t.Run("records one result per system", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()

		collector := &fakeCollector{systems: []System{
			{Name: "vm-1", Facts: []scan.RawFact{jsonFact("vm.name", "vm-1")}},
			{Name: "vm-2", Facts: []scan.RawFact{jsonFact("vm.name", "vm-2")}},
		}}
		factory := NewInspectFactory(fakeFactory(collector), testLogger())
		msg, status, err := factory(tc, store).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Equal(t, "inspected 2 systems", msg)
		assert.Len(t, store.inspections, 2)
		assert.Equal(t, 2, tc.Task.SystemsScanned)
	})

	t.Run("resume skips recorded systems", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()
		require.NoError(t, store.AddInspectionResult(context.Background(),
			scan.NewInspectionResult(tc.Task.ID, "vm-1", scan.SystemStatusSuccess, nil)))

		collector := &fakeCollector{systems: []System{{Name: "vm-1"}, {Name: "vm-2"}}}
		factory := NewInspectFactory(fakeFactory(collector), testLogger())
		_, status, err := factory(tc, store).Execute(context.Background(), &scanner.Interrupt{})

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, status)
		assert.Len(t, store.inspections, 2)
	})

	t.Run("cancel is observed per system", func(t *testing.T) {
		tc := vcenterTaskContext(t)
		store := newMemStore()

		interrupt := &scanner.Interrupt{}
		interrupt.Set(scanner.SignalCancel)

		collector := &fakeCollector{systems: []System{{Name: "vm-1"}}}
		factory := NewInspectFactory(fakeFactory(collector), testLogger())
		_, status, err := factory(tc, store).Execute(context.Background(), interrupt)

		require.NoError(t, err)
		assert.Equal(t, scan.StatusCanceled, status)
	})
}
