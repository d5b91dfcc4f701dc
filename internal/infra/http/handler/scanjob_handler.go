package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/app"
	"github.com/hostscout/api/pkg/apierror"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/validator"
)

// ScanJobHandler handles HTTP requests for scan jobs.
type ScanJobHandler struct {
	service   *app.ScanJobService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanJobHandler creates a new ScanJobHandler.
func NewScanJobHandler(service *app.ScanJobService, v *validator.Validator, log *logger.Logger) *ScanJobHandler {
	return &ScanJobHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "scanjob"),
	}
}

// ScanTaskResponse represents a scan task in API responses.
type ScanTaskResponse struct {
	ID             string  `json:"id"`
	SourceID       *string `json:"source_id,omitempty"`
	ScanType       string  `json:"scan_type"`
	Status         string  `json:"status"`
	StatusMessage  string  `json:"status_message,omitempty"`
	SequenceNumber int     `json:"sequence_number"`

	SystemsCount       int `json:"systems_count"`
	SystemsScanned     int `json:"systems_scanned"`
	SystemsFailed      int `json:"systems_failed"`
	SystemsUnreachable int `json:"systems_unreachable"`

	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// ScanJobResponse represents a scan job with its tasks and aggregated
// counters.
type ScanJobResponse struct {
	ID            string             `json:"id"`
	ScanType      string             `json:"scan_type"`
	Status        string             `json:"status"`
	StatusMessage string             `json:"status_message,omitempty"`
	Sources       []string           `json:"sources"`
	Tasks         []ScanTaskResponse `json:"tasks"`
	Options       scan.Options       `json:"options"`
	ReportID      *int64             `json:"report_id,omitempty"`

	SystemsCount       *int `json:"systems_count"`
	SystemsScanned     *int `json:"systems_scanned"`
	SystemsFailed      *int `json:"systems_failed"`
	SystemsUnreachable *int `json:"systems_unreachable"`

	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func toScanJobResponse(j *scan.ScanJob) ScanJobResponse {
	sources := make([]string, len(j.SourceIDs))
	for i, id := range j.SourceIDs {
		sources[i] = id.String()
	}

	tasks := make([]ScanTaskResponse, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		var sourceID *string
		if t.SourceID != nil {
			v := t.SourceID.String()
			sourceID = &v
		}
		tasks = append(tasks, ScanTaskResponse{
			ID:                 t.ID.String(),
			SourceID:           sourceID,
			ScanType:           t.ScanType.String(),
			Status:             t.Status.String(),
			StatusMessage:      t.StatusMessage,
			SequenceNumber:     t.SequenceNumber,
			SystemsCount:       t.SystemsCount,
			SystemsScanned:     t.SystemsScanned,
			SystemsFailed:      t.SystemsFailed,
			SystemsUnreachable: t.SystemsUnreachable,
			StartTime:          formatTime(t.StartTime),
			EndTime:            formatTime(t.EndTime),
		})
	}

	stats := j.CalculateStats()
	return ScanJobResponse{
		ID:                 j.ID.String(),
		ScanType:           j.ScanType.String(),
		Status:             j.Status.String(),
		StatusMessage:      j.StatusMessage,
		Sources:            sources,
		Tasks:              tasks,
		Options:            j.Options,
		ReportID:           j.ReportID,
		SystemsCount:       stats.SystemsCount,
		SystemsScanned:     stats.SystemsScanned,
		SystemsFailed:      stats.SystemsFailed,
		SystemsUnreachable: stats.SystemsUnreachable,
		StartTime:          formatTime(j.StartTime),
		EndTime:            formatTime(j.EndTime),
		CreatedAt:          j.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/v1/jobs.
func (h *ScanJobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.StartScanInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	job, err := h.service.Start(r.Context(), req)
	if err != nil {
		writeServiceError(h.logger, w, "Scan job", err)
		return
	}
	respondJSON(w, http.StatusCreated, toScanJobResponse(job))
}

// Get handles GET /api/v1/jobs/{id}.
func (h *ScanJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, "Scan job", err)
		return
	}
	respondJSON(w, http.StatusOK, toScanJobResponse(job))
}

// List handles GET /api/v1/jobs.
func (h *ScanJobHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter scan.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := scan.Status(raw)
		if !status.IsValid() {
			apierror.BadRequest("invalid status: " + raw).WriteJSON(w)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("scan_type"); raw != "" {
		scanType, err := scan.ParseScanType(raw)
		if err != nil {
			apierror.BadRequest(err.Error()).WriteJSON(w)
			return
		}
		filter.ScanType = &scanType
	}

	result, err := h.service.List(r.Context(), filter, parsePagination(r))
	if err != nil {
		writeServiceError(h.logger, w, "Scan job", err)
		return
	}

	out := make([]ScanJobResponse, 0, len(result.Items))
	for _, job := range result.Items {
		out = append(out, toScanJobResponse(job))
	}
	respondJSON(w, http.StatusOK, ListResponse[ScanJobResponse]{
		Results: out,
		Count:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
	})
}

// Pause handles PUT /api/v1/jobs/{id}/pause.
func (h *ScanJobHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.Pause)
}

// Cancel handles PUT /api/v1/jobs/{id}/cancel.
func (h *ScanJobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.Cancel)
}

// Restart handles PUT /api/v1/jobs/{id}/restart.
func (h *ScanJobHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.Restart)
}

// Delete handles DELETE /api/v1/jobs/{id}.
func (h *ScanJobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, "Scan job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyTransition runs one of the job control verbs and writes the
// resulting job. Invalid transitions come back as 400, no-ops succeed.
func (h *ScanJobHandler) applyTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id shared.ID) (*scan.ScanJob, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := apply(r.Context(), id)
	if err != nil {
		if scan.IsInvalidTransition(err) {
			apierror.BadRequest(err.Error()).WriteJSON(w)
			return
		}
		writeServiceError(h.logger, w, "Scan job", err)
		return
	}
	respondJSON(w, http.StatusOK, toScanJobResponse(job))
}
