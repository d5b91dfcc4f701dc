package main

import (
	"github.com/hostscout/api/internal/config"
	"github.com/hostscout/api/internal/infra/http"
	"github.com/hostscout/api/internal/infra/http/handler"
	"github.com/hostscout/api/internal/infra/postgres"
	"github.com/hostscout/api/internal/infra/redis"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/validator"
)

// HandlerDeps contains dependencies needed to create HTTP handlers.
type HandlerDeps struct {
	Config    *config.Config
	Log       *logger.Logger
	Validator *validator.Validator
	DB        *postgres.DB
	Redis     *redis.Client
	Services  *Services
}

// NewHandlers initializes all HTTP handlers.
func NewHandlers(deps *HandlerDeps) http.Handlers {
	log := deps.Log
	v := deps.Validator
	svc := deps.Services

	return http.Handlers{
		Credential: handler.NewCredentialHandler(svc.Credential, v, log),
		Source:     handler.NewSourceHandler(svc.Source, v, log),
		ScanJob:    handler.NewScanJobHandler(svc.ScanJob, v, log),
		Report:     handler.NewReportHandler(svc.Report, log),
		Health:     handler.NewHealthHandler(deps.DB, deps.Redis),
	}
}
