// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/middleware"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
	"github.com/capitalize-ai/flight-concierge/internal/service"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
)

// SessionHandler handles session and booking action endpoints.
type SessionHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.ConversationService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

type selectRequest struct {
	OfferID string `json:"offer_id"`
}

type passengersRequest struct {
	Passengers []model.Passenger `json:"passengers"`
}

type servicesRequest struct {
	Services []model.ServiceSelection `json:"services"`
}

type bookRequest struct {
	Hold bool `json:"hold"`
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID != "" {
		if err := middleware.ValidateSessionID(req.SessionID); err != nil {
			writeError(w, http.StatusBadRequest, apperr.CodeValidation, err.Error())
			return
		}
	}

	resp, err := h.service.Start(r.Context(), req.SessionID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeResponse(w, resp, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/v1/sessions/{id}. A session linked to a user is only visible to
// that user.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(callerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		writeResponse(w, service.Failure(model.StageInitial, err), err)
		return
	}
	writeJSON(w, http.StatusOK, &model.Response{Success: true, Stage: conv.Stage, Data: conv})
}

// Search handles POST /api/v1/sessions/{id}/search
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	var params model.FlightSearchParams
	if !decodeJSON(w, r, &params) {
		return
	}
	resp, err := h.service.Search(callerContext(r), chi.URLParam(r, "id"), params)
	writeResponse(w, resp, err)
}

// Filter handles POST /api/v1/sessions/{id}/filter
func (h *SessionHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var criteria offer.Criteria
	if !decodeJSON(w, r, &criteria) {
		return
	}
	resp, err := h.service.Filter(callerContext(r), chi.URLParam(r, "id"), criteria)
	writeResponse(w, resp, err)
}

// Select handles POST /api/v1/sessions/{id}/select
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.SelectOffer(callerContext(r), chi.URLParam(r, "id"), req.OfferID)
	writeResponse(w, resp, err)
}

// Authenticate handles POST /api/v1/sessions/{id}/authenticate. The user comes from the
// bearer token.
func (h *SessionHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Authenticate(callerContext(r), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	writeResponse(w, resp, err)
}

// Passengers handles POST /api/v1/sessions/{id}/passengers
func (h *SessionHandler) Passengers(w http.ResponseWriter, r *http.Request) {
	var req passengersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.SubmitPassengers(callerContext(r), chi.URLParam(r, "id"), req.Passengers)
	writeResponse(w, resp, err)
}

// ListServices handles GET /api/v1/sessions/{id}/services
func (h *SessionHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListServices(callerContext(r), chi.URLParam(r, "id"))
	writeResponse(w, resp, err)
}

// AddServices handles POST /api/v1/sessions/{id}/services
func (h *SessionHandler) AddServices(w http.ResponseWriter, r *http.Request) {
	var req servicesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.AddServices(callerContext(r), chi.URLParam(r, "id"), req.Services)
	writeResponse(w, resp, err)
}

// Book handles POST /api/v1/sessions/{id}/book
func (h *SessionHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Book(callerContext(r), chi.URLParam(r, "id"), req.Hold)
	writeResponse(w, resp, err)
}

// Pay handles POST /api/v1/sessions/{id}/pay
func (h *SessionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.PayHold(callerContext(r), chi.URLParam(r, "id"))
	writeResponse(w, resp, err)
}

// Cancel handles POST /api/v1/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Cancel(callerContext(r), chi.URLParam(r, "id"))
	writeResponse(w, resp, err)
}

// ListBookings handles GET /api/v1/bookings
func (h *SessionHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.ListBookings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeResponse(w, service.Failure(model.StageInitial, err), err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, &model.Response{Success: true, Data: bookings})
}
