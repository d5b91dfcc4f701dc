// Package handler provides the HTTP handlers for the discovery API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hostscout/api/pkg/apierror"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
	"github.com/hostscout/api/pkg/pagination"
	"github.com/hostscout/api/pkg/validator"
)

// ListResponse is the envelope for paginated list responses.
type ListResponse[T any] struct {
	Results []T   `json:"results"`
	Count   int64 `json:"count"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// NewListResponse builds a ListResponse from a pagination result.
func NewListResponse[T any](res pagination.Result[T]) ListResponse[T] {
	return ListResponse[T]{
		Results: res.Items,
		Count:   res.Total,
		Page:    res.Page,
		PerPage: res.PerPage,
	}
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// parsePagination reads page and per_page query parameters.
func parsePagination(r *http.Request) pagination.Pagination {
	return pagination.New(
		parseQueryInt(r.URL.Query().Get("page"), 1),
		parseQueryInt(r.URL.Query().Get("per_page"), pagination.DefaultPerPage),
	)
}

// parseQueryInt parses a query parameter as an integer, falling back to
// defaultVal when empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// pathID parses the {id} URL parameter as a shared ID. A false return
// means the error response has been written.
func pathID(w http.ResponseWriter, r *http.Request) (shared.ID, bool) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.BadRequest("Invalid ID").WriteJSON(w)
		return shared.ID{}, false
	}
	return id, true
}

// pathIntID parses the {id} URL parameter as an integer report ID.
func pathIntID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apierror.BadRequest("Invalid report ID").WriteJSON(w)
		return 0, false
	}
	return id, true
}

// writeValidationError converts validator errors to a 422 response.
func writeValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierror.ValidationFailed("Validation failed", validationErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

// writeServiceError converts service errors to API errors. DomainError
// codes outside the generic VALIDATION code are surfaced to the client;
// the report-merge vocabulary and the credential delete guard depend on
// this.
func writeServiceError(log *logger.Logger, w http.ResponseWriter, resource string, err error) {
	var derr *shared.DomainError

	switch {
	case shared.IsNotFound(err):
		apierror.NotFound(resource).WriteJSON(w)
	case shared.IsAlreadyExists(err):
		apierror.Conflict(resource + " already exists").WriteJSON(w)
	case shared.IsValidation(err):
		if errors.As(err, &derr) && derr.Code != "VALIDATION" {
			apierror.BadRequestCode(apierror.Code(derr.Code), derr.Message).WriteJSON(w)
			return
		}
		apierror.BadRequest(err.Error()).WriteJSON(w)
	case shared.IsConflict(err):
		if errors.As(err, &derr) {
			apierror.New(http.StatusConflict, apierror.Code(derr.Code), derr.Message).WriteJSON(w)
			return
		}
		apierror.Conflict(err.Error()).WriteJSON(w)
	default:
		log.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
