package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/app"
	"github.com/hostscout/api/pkg/apierror"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/validator"
)

// SourceHandler handles HTTP requests for sources.
type SourceHandler struct {
	service   *app.SourceService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(service *app.SourceService, v *validator.Validator, log *logger.Logger) *SourceHandler {
	return &SourceHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "source"),
	}
}

// SourceResponse represents a source in API responses.
type SourceResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SourceType   string   `json:"source_type"`
	Hosts        []string `json:"hosts"`
	ExcludeHosts []string `json:"exclude_hosts,omitempty"`
	Port         int      `json:"port"`

	SSLCertVerify bool   `json:"ssl_cert_verify"`
	SSLProtocol   string `json:"ssl_protocol,omitempty"`
	DisableSSL    bool   `json:"disable_ssl,omitempty"`
	UseParamiko   bool   `json:"use_paramiko,omitempty"`
	ProxyURL      string `json:"proxy_url,omitempty"`

	Credentials []string `json:"credentials"`

	MostRecentConnectScan *string `json:"most_recent_connect_scan,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSourceResponse(s *source.Source) SourceResponse {
	creds := make([]string, len(s.CredentialIDs))
	for i, id := range s.CredentialIDs {
		creds[i] = id.String()
	}

	var connectScan *string
	if s.MostRecentConnectScanID != nil {
		v := s.MostRecentConnectScanID.String()
		connectScan = &v
	}

	return SourceResponse{
		ID:                    s.ID.String(),
		Name:                  s.Name,
		SourceType:            s.Type.String(),
		Hosts:                 s.Hosts,
		ExcludeHosts:          s.ExcludeHosts,
		Port:                  s.Port,
		SSLCertVerify:         s.SSLCertVerify,
		SSLProtocol:           s.SSLProtocol,
		DisableSSL:            s.DisableSSL,
		UseParamiko:           s.UseParamiko,
		ProxyURL:              s.ProxyURL,
		Credentials:           creds,
		MostRecentConnectScan: connectScan,
		CreatedAt:             s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             s.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/v1/sources.
func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSourceInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	src, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(h.logger, w, "Source", err)
		return
	}
	respondJSON(w, http.StatusCreated, toSourceResponse(src))
}

// Get handles GET /api/v1/sources/{id}.
func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	src, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, "Source", err)
		return
	}
	respondJSON(w, http.StatusOK, toSourceResponse(src))
}

// List handles GET /api/v1/sources.
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := source.Filter{Name: r.URL.Query().Get("name")}
	if raw := r.URL.Query().Get("source_type"); raw != "" {
		sourceType, err := source.ParseType(raw)
		if err != nil {
			apierror.BadRequest(err.Error()).WriteJSON(w)
			return
		}
		filter.Type = &sourceType
	}

	result, err := h.service.List(r.Context(), filter, parsePagination(r))
	if err != nil {
		writeServiceError(h.logger, w, "Source", err)
		return
	}

	out := make([]SourceResponse, 0, len(result.Items))
	for _, src := range result.Items {
		out = append(out, toSourceResponse(src))
	}
	respondJSON(w, http.StatusOK, ListResponse[SourceResponse]{
		Results: out,
		Count:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
	})
}

// Update handles PUT /api/v1/sources/{id}.
func (h *SourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req app.UpdateSourceInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	src, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(h.logger, w, "Source", err)
		return
	}
	respondJSON(w, http.StatusOK, toSourceResponse(src))
}

// Delete handles DELETE /api/v1/sources/{id}.
func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, "Source", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
