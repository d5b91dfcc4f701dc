package network

import (
	"context"
	"testing"

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

func networkPasswordCredential(t *testing.T) *credential.Credential {
	t.Helper()
	cred, err := credential.NewNetwork("net-cred", "admin", credential.NetworkAuth{
		Password: "s3cret",
	})
	require.NoError(t, err)
	return cred
}

// testTaskContext builds a running inspect-type job with its connect
// and inspect tasks over one network source.
func testTaskContext(t *testing.T, hosts []string, creds ...*credential.Credential) scanner.TaskContext {
	t.Helper()

	credIDs := make([]shared.ID, len(creds))
	for i, c := range creds {
		credIDs[i] = c.ID
	}
	src, err := source.New("net-source", source.TypeNetwork, hosts, credIDs)
	require.NoError(t, err)

	job, err := scan.NewJob(scan.TypeInspect, []shared.ID{src.ID}, scan.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, job.Queue([]*source.Source{src}))
	require.NoError(t, job.Start())

	connect := job.Tasks[0]
	require.NoError(t, connect.Start())

	return scanner.TaskContext{
		Job:         job,
		Task:        connect,
		Source:      src,
		Credentials: creds,
		Options:     job.Options,
	}
}

// fakeBackend scripts per-host outcomes and records the groups it ran.
type fakeBackend struct {
	statuses map[string]HostStatus
	facts    map[string][]scan.RawFact
	runErr   error
	groups   []Group
}

func (b *fakeBackend) Run(_ context.Context, group Group, _ Playbook) ([]HostResult, error) {
	b.groups = append(b.groups, group)
	if b.runErr != nil {
		return nil, b.runErr
	}
	results := make([]HostResult, 0, len(group.Hosts))
	for _, h := range group.Hosts {
		status, ok := b.statuses[h]
		if !ok {
			status = HostSuccess
		}
		results = append(results, HostResult{Host: h, Status: status, Facts: b.facts[h]})
	}
	return results, nil
}

// fakeStore is an in-memory scanner.Store.
type fakeStore struct {
	tasks       map[shared.ID]*scan.ScanTask
	connections []*scan.ConnectionResult
	inspections []*scan.InspectionResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[shared.ID]*scan.ScanTask)}
}

func (s *fakeStore) SaveTask(_ context.Context, task *scan.ScanTask) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeStore) AddConnectionResult(_ context.Context, res *scan.ConnectionResult) error {
	s.connections = append(s.connections, res)
	return nil
}

func (s *fakeStore) HasConnectionResult(_ context.Context, taskID shared.ID, name string) (bool, error) {
	for _, c := range s.connections {
		if c.TaskID == taskID && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ConnectionResults(_ context.Context, taskID shared.ID) ([]*scan.ConnectionResult, error) {
	var out []*scan.ConnectionResult
	for _, c := range s.connections {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) SuccessfulConnections(_ context.Context, _, _ shared.ID) ([]*scan.ConnectionResult, error) {
	var out []*scan.ConnectionResult
	for _, c := range s.connections {
		if c.Status == scan.SystemStatusSuccess {
			out = append(out, c)
		}
	}
	return out, nil
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
	var out []*scan.InspectionResult
	for _, r := range s.inspections {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}
