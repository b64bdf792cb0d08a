package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/middleware"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/service"
)

const maxBodyBytes = 1 << 20

// callerContext hands the authenticated user, if any, to the service so sessions linked to
// someone else stay hidden.
func callerContext(r *http.Request) context.Context {
	return service.WithCaller(r.Context(), middleware.GetUserID(r.Context()))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a failed envelope with a single error.
func writeError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	writeJSON(w, status, &model.Response{
		Success: false,
		Errors:  []model.ErrorDetail{{Code: string(code), Message: message}},
	})
}

// writeResponse writes the envelope of a service call with the status of its error code.
func writeResponse(w http.ResponseWriter, resp *model.Response, err error) {
	if err != nil {
		writeJSON(w, StatusOf(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeCountMismatch:
		return http.StatusUnprocessableEntity
	case apperr.CodeStateTransition, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeExpired:
		return http.StatusGone
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeProvider, apperr.CodeEnrichment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return false
	}
	return true
}
