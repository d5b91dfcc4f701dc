package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/app"
	"github.com/hostscout/api/pkg/apierror"
	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/logger"
)

// ReportHandler handles HTTP requests for reports and merge jobs.
type ReportHandler struct {
	service *app.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service *app.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  log.With("handler", "report"),
	}
}

// DetailsReportResponse represents a details report in API responses.
type DetailsReportResponse struct {
	ID               int64                `json:"report_id"`
	ReportPlatformID string               `json:"report_platform_id"`
	ScanJobID        *string              `json:"scan_job_id,omitempty"`
	Sources          []report.SourceFacts `json:"sources"`
	CreatedAt        string               `json:"created_at"`
}

func toDetailsResponse(r *report.DetailsReport) DetailsReportResponse {
	var jobID *string
	if r.ScanJobID != nil {
		v := r.ScanJobID.String()
		jobID = &v
	}
	return DetailsReportResponse{
		ID:               r.ID,
		ReportPlatformID: r.ReportPlatformID.String(),
		ScanJobID:        jobID,
		Sources:          r.Sources,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}

// DeploymentsReportResponse represents a deployments report. The masked
// variant is returned when ?mask=true.
type DeploymentsReportResponse struct {
	ReportID           int64                 `json:"report_id"`
	SystemFingerprints []*report.Fingerprint `json:"system_fingerprints"`
	Status             string                `json:"status"`
	CreatedAt          string                `json:"created_at"`
}

// GetDetails handles GET /api/v1/reports/{id}/details.
func (h *ReportHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIntID(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetDetails(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, "Report", err)
		return
	}
	respondJSON(w, http.StatusOK, toDetailsResponse(details))
}

// GetDeployments handles GET /api/v1/reports/{id}/deployments.
func (h *ReportHandler) GetDeployments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIntID(w, r)
	if !ok {
		return
	}

	deployments, err := h.service.GetDeployments(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, "Report", err)
		return
	}

	fingerprints := deployments.CachedFingerprints
	if r.URL.Query().Get("mask") == "true" {
		fingerprints = deployments.CachedMaskedFingerprints
	}
	respondJSON(w, http.StatusOK, DeploymentsReportResponse{
		ReportID:           deployments.ID,
		SystemFingerprints: fingerprints,
		Status:             deployments.Status,
		CreatedAt:          deployments.CreatedAt.Format(time.RFC3339),
	})
}

// MergeFromFactsRequest is the POST /reports/merge/jobs/ body: raw facts
// grouped by source, as a details report payload.
type MergeFromFactsRequest struct {
	Sources []report.SourceFacts `json:"sources"`
}

// MergeJobResponse reports the fingerprint job created by a merge.
type MergeJobResponse struct {
	ID            string `json:"id"`
	ScanType      string `json:"scan_type"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	ReportID      int64  `json:"report_id"`
}

func toMergeJobResponse(job *scan.ScanJob) MergeJobResponse {
	return MergeJobResponse{
		ID:            job.ID.String(),
		ScanType:      job.ScanType.String(),
		Status:        job.Status.String(),
		StatusMessage: job.StatusMessage,
		ReportID:      *job.ReportID,
	}
}

// CreateFromFacts handles POST /api/v1/reports/merge/jobs.
func (h *ReportHandler) CreateFromFacts(w http.ResponseWriter, r *http.Request) {
	var req MergeFromFactsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	job, err := h.service.MergeFromFacts(r.Context(), req.Sources)
	if err != nil {
		writeServiceError(h.logger, w, "Report", err)
		return
	}
	respondJSON(w, http.StatusCreated, toMergeJobResponse(job))
}

// Merge handles PUT /api/v1/reports/merge/jobs. The reports field is
// validated by the service so shape errors map to the merge error
// vocabulary rather than a generic decode failure.
func (h *ReportHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	job, err := h.service.MergeReports(r.Context(), body["reports"])
	if err != nil {
		writeServiceError(h.logger, w, "Report", err)
		return
	}
	respondJSON(w, http.StatusCreated, toMergeJobResponse(job))
}
