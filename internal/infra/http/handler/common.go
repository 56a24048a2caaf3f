// Package handler implements the HTTP API handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/internal/infra/http/middleware"
	"github.com/K4R7IK/vulnmanage/pkg/apierror"
	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/progress"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/sla"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
	"github.com/K4R7IK/vulnmanage/pkg/validator"
)

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.BadRequest("invalid JSON body").WithError(err)
	}
	return nil
}

// urlID parses the named URL parameter as an ID.
func urlID(r *http.Request, param string) (shared.ID, error) {
	raw := chi.URLParam(r, param)
	id, err := shared.IDFromString(raw)
	if err != nil {
		return shared.ID{}, apierror.BadRequest("invalid " + param).WithError(err)
	}
	return id, nil
}

// handleError maps domain and application errors onto API responses.
func handleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		apiErr.WriteJSON(w, requestID)
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		apierror.ValidationFailed("validation failed", validationErrs).WriteJSON(w, requestID)
		return
	}

	var inputErr *ingest.ValidationError
	if errors.As(err, &inputErr) {
		apierror.ValidationFailed(inputErr.Error(), nil).WriteJSON(w, requestID)
		return
	}

	var parseErr *ingest.ParseError
	if errors.As(err, &parseErr) {
		apierror.BadRequest(parseErr.Error()).WriteJSON(w, requestID)
		return
	}

	switch {
	case isNotFound(err):
		apierror.NotFound("").WithError(err).WriteJSON(w, requestID)
	case isConflict(err):
		apierror.Conflict(err.Error()).WriteJSON(w, requestID)
	case shared.IsValidation(err), errors.Is(err, shared.ErrInvalidInput):
		apierror.ValidationFailed(err.Error(), nil).WriteJSON(w, requestID)
	case errors.Is(err, shared.ErrUnavailable):
		apierror.ServiceUnavailable("").WriteJSON(w, requestID)
	default:
		log.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestID,
		)
		apierror.InternalError(err).WriteJSON(w, requestID)
	}
}

func isNotFound(err error) bool {
	return shared.IsNotFound(err) ||
		errors.Is(err, company.ErrCompanyNotFound) ||
		errors.Is(err, finding.ErrFindingNotFound) ||
		errors.Is(err, finding.ErrMembershipNotFound) ||
		errors.Is(err, summary.ErrSummaryNotFound) ||
		errors.Is(err, sla.ErrPolicyNotFound) ||
		errors.Is(err, progress.ErrOperationNotFound)
}

func isConflict(err error) bool {
	return shared.IsConflict(err) ||
		errors.Is(err, shared.ErrAlreadyExists) ||
		errors.Is(err, company.ErrCompanyExists) ||
		errors.Is(err, finding.ErrFindingExists) ||
		errors.Is(err, finding.ErrMembershipExists) ||
		errors.Is(err, sla.ErrPolicyExists)
}
