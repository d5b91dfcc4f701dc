package app

import (
	"context"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

type fakeCredentialRepo struct {
	creds map[shared.ID]*credential.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[shared.ID]*credential.Credential)}
}

func (r *fakeCredentialRepo) Create(_ context.Context, cred *credential.Credential) error {
	stored := *cred
	r.creds[cred.ID] = &stored
	return nil
}

func (r *fakeCredentialRepo) GetByID(_ context.Context, id shared.ID) (*credential.Credential, error) {
	cred, ok := r.creds[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *cred
	return &c, nil
}

func (r *fakeCredentialRepo) GetByName(_ context.Context, name string) (*credential.Credential, error) {
	for _, cred := range r.creds {
		if cred.Name == name {
			c := *cred
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCredentialRepo) Update(_ context.Context, cred *credential.Credential) error {
	if _, ok := r.creds[cred.ID]; !ok {
		return shared.ErrNotFound
	}
	stored := *cred
	r.creds[cred.ID] = &stored
	return nil
}

func (r *fakeCredentialRepo) Delete(_ context.Context, id shared.ID) error {
	if _, ok := r.creds[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.creds, id)
	return nil
}

func (r *fakeCredentialRepo) List(_ context.Context, _ credential.Filter, page pagination.Pagination) (pagination.Result[*credential.Credential], error) {
	var items []*credential.Credential
	for _, cred := range r.creds {
		c := *cred
		items = append(items, &c)
	}
	return pagination.NewResult(items, int64(len(items)), page), nil
}

type fakeSourceRepo struct {
	sources map[shared.ID]*source.Source
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{sources: make(map[shared.ID]*source.Source)}
}

func (r *fakeSourceRepo) Create(_ context.Context, src *source.Source) error {
	r.sources[src.ID] = src
	return nil
}

func (r *fakeSourceRepo) GetByID(_ context.Context, id shared.ID) (*source.Source, error) {
	src, ok := r.sources[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return src, nil
}

func (r *fakeSourceRepo) GetByName(_ context.Context, name string) (*source.Source, error) {
	for _, src := range r.sources {
		if src.Name == name {
			return src, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSourceRepo) Update(_ context.Context, src *source.Source) error {
	if _, ok := r.sources[src.ID]; !ok {
		return shared.ErrNotFound
	}
	r.sources[src.ID] = src
	return nil
}

func (r *fakeSourceRepo) Delete(_ context.Context, id shared.ID) error {
	if _, ok := r.sources[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.sources, id)
	return nil
}

func (r *fakeSourceRepo) List(_ context.Context, _ source.Filter, page pagination.Pagination) (pagination.Result[*source.Source], error) {
	var items []*source.Source
	for _, src := range r.sources {
		items = append(items, src)
	}
	return pagination.NewResult(items, int64(len(items)), page), nil
}

func (r *fakeSourceRepo) ListByCredential(_ context.Context, credentialID shared.ID) ([]*source.Source, error) {
	var out []*source.Source
	for _, src := range r.sources {
		for _, id := range src.CredentialIDs {
			if id.Equals(credentialID) {
				out = append(out, src)
				break
			}
		}
	}
	return out, nil
}

type fakeScanRepo struct {
	jobs map[shared.ID]*scan.ScanJob
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{jobs: make(map[shared.ID]*scan.ScanJob)}
}

func (r *fakeScanRepo) CreateJob(_ context.Context, job *scan.ScanJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeScanRepo) GetJob(_ context.Context, id shared.ID) (*scan.ScanJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return job, nil
}

func (r *fakeScanRepo) SaveJob(_ context.Context, job *scan.ScanJob) error {
	if _, ok := r.jobs[job.ID]; !ok {
		return shared.ErrNotFound
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeScanRepo) DeleteJob(_ context.Context, id shared.ID) error {
	if _, ok := r.jobs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *fakeScanRepo) ListJobs(_ context.Context, _ scan.Filter, page pagination.Pagination) (pagination.Result[*scan.ScanJob], error) {
	var items []*scan.ScanJob
	for _, job := range r.jobs {
		items = append(items, job)
	}
	return pagination.NewResult(items, int64(len(items)), page), nil
}

func (r *fakeScanRepo) SaveTask(_ context.Context, task *scan.ScanTask) error {
	return nil
}

type fakeReportRepo struct {
	nextID  int64
	details map[int64]*report.DetailsReport
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{details: make(map[int64]*report.DetailsReport)}
}

func (r *fakeReportRepo) CreateDetails(_ context.Context, rep *report.DetailsReport) error {
	r.nextID++
	rep.ID = r.nextID
	r.details[rep.ID] = rep
	return nil
}

func (r *fakeReportRepo) GetDetails(_ context.Context, id int64) (*report.DetailsReport, error) {
	rep, ok := r.details[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rep, nil
}

func (r *fakeReportRepo) ExistingIDs(_ context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := r.details[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *fakeReportRepo) SaveDeployments(_ context.Context, _ *report.DeploymentsReport) error {
	return nil
}

func (r *fakeReportRepo) GetDeployments(_ context.Context, _ int64) (*report.DeploymentsReport, error) {
	return nil, shared.ErrNotFound
}

type fakeEnqueuer struct {
	enqueued []shared.ID
	err      error
}

func (f *fakeEnqueuer) EnqueueScanJob(_ context.Context, jobID shared.ID) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, jobID)
	return nil
}

type fakeSignals struct {
	paused   []shared.ID
	canceled []shared.ID
}

func (f *fakeSignals) PublishPause(_ context.Context, jobID shared.ID) error {
	f.paused = append(f.paused, jobID)
	return nil
}

func (f *fakeSignals) PublishCancel(_ context.Context, jobID shared.ID) error {
	f.canceled = append(f.canceled, jobID)
	return nil
}
