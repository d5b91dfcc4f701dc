package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/app"
	"github.com/hostscout/api/pkg/apierror"
	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/validator"
)

// CredentialHandler handles HTTP requests for credentials.
type CredentialHandler struct {
	service   *app.CredentialService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(service *app.CredentialService, v *validator.Validator, log *logger.Logger) *CredentialHandler {
	return &CredentialHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "credential"),
	}
}

// CredentialResponse represents a credential in API responses. Secret
// fields carry the mask, never stored values.
type CredentialResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CredType string `json:"cred_type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	SSHKeyfile     string `json:"ssh_keyfile,omitempty"`
	SSHKey         string `json:"ssh_key,omitempty"`
	SSHPassphrase  string `json:"ssh_passphrase,omitempty"`
	BecomeMethod   string `json:"become_method,omitempty"`
	BecomeUser     string `json:"become_user,omitempty"`
	BecomePassword string `json:"become_password,omitempty"`

	AuthToken string `json:"auth_token,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toCredentialResponse(c *credential.Credential) CredentialResponse {
	return CredentialResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		CredType:       c.Type.String(),
		Username:       c.Username,
		Password:       c.Password,
		SSHKeyfile:     c.SSHKeyfile,
		SSHKey:         c.SSHKey,
		SSHPassphrase:  c.SSHPassphrase,
		BecomeMethod:   string(c.BecomeMethod),
		BecomeUser:     c.BecomeUser,
		BecomePassword: c.BecomePassword,
		AuthToken:      c.AuthToken,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/v1/credentials.
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateCredentialInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cred, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(h.logger, w, "Credential", err)
		return
	}
	respondJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// Get handles GET /api/v1/credentials/{id}.
func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cred, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, "Credential", err)
		return
	}
	respondJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// List handles GET /api/v1/credentials.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := credential.Filter{Name: r.URL.Query().Get("name")}
	if raw := r.URL.Query().Get("cred_type"); raw != "" {
		credType, err := credential.ParseType(raw)
		if err != nil {
			apierror.BadRequest(err.Error()).WriteJSON(w)
			return
		}
		filter.Type = &credType
	}

	result, err := h.service.List(r.Context(), filter, parsePagination(r))
	if err != nil {
		writeServiceError(h.logger, w, "Credential", err)
		return
	}

	out := make([]CredentialResponse, 0, len(result.Items))
	for _, cred := range result.Items {
		out = append(out, toCredentialResponse(cred))
	}
	respondJSON(w, http.StatusOK, ListResponse[CredentialResponse]{
		Results: out,
		Count:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
	})
}

// Update handles PUT /api/v1/credentials/{id}.
func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req app.UpdateCredentialInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cred, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(h.logger, w, "Credential", err)
		return
	}
	respondJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// Delete handles DELETE /api/v1/credentials/{id}.
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, "Credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
