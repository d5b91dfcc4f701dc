package main

import (
	"github.com/hostscout/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	Credential *postgres.CredentialRepository
	Source     *postgres.SourceRepository
	ScanJob    *postgres.ScanJobRepository
	Result     *postgres.ResultRepository
	Report     *postgres.ReportRepository
}

// NewRepositories initializes all repositories with the database connection.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Credential: postgres.NewCredentialRepository(db),
		Source:     postgres.NewSourceRepository(db),
		ScanJob:    postgres.NewScanJobRepository(db),
		Result:     postgres.NewResultRepository(db),
		Report:     postgres.NewReportRepository(db),
	}
}

// scanStore combines task persistence with raw result storage so the
// scan manager sees one surface for checkpointing running tasks.
type scanStore struct {
	*postgres.ScanJobRepository
	*postgres.ResultRepository
}

// Store returns the combined task and result store used by scan runners.
func (r *Repositories) Store() *scanStore {
	return &scanStore{ScanJobRepository: r.ScanJob, ResultRepository: r.Result}
}
