package service

import (
	"errors"
	"fmt"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/booking"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// OffersData is the payload of search and filter responses.
type OffersData struct {
	Offers     []model.Offer `json:"offers"`
	TotalFound int           `json:"total_found"`
}

// SelectionData is the payload of a selection.
type SelectionData struct {
	Offer                  model.Offer `json:"offer"`
	RequiresAuthentication bool        `json:"requires_authentication"`
}

// BookingData is the payload of booking operations.
type BookingData struct {
	Booking         *model.Booking         `json:"booking"`
	Payment         *model.Payment         `json:"payment,omitempty"`
	Cancellation    *model.Cancellation    `json:"cancellation,omitempty"`
	DroppedServices []string               `json:"dropped_services,omitempty"`
	Pricing         *model.PricingSnapshot `json:"pricing,omitempty"`
}

// MessageData is the payload of a free-text turn.
type MessageData struct {
	Reply  model.Message `json:"reply"`
	Intent string        `json:"intent,omitempty"`
	Result any           `json:"result,omitempty"`
}

// Failure builds the envelope of a failed operation.
func Failure(stage model.Stage, err error) *model.Response {
	return &model.Response{
		Success: false,
		Stage:   stage,
		Message: userMessage(err),
		Errors:  ErrorDetails(err),
	}
}

// ErrorDetails flattens err into envelope entries. Internal errors are not described.
func ErrorDetails(err error) []model.ErrorDetail {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		details := make([]model.ErrorDetail, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			details = append(details, model.ErrorDetail{
				Code:    string(apperr.CodeValidation),
				Field:   f.Field,
				Message: f.Message,
			})
		}
		return details
	}

	var unsaved *UnsavedOrderError
	if errors.As(err, &unsaved) {
		return []model.ErrorDetail{{
			Code:    string(apperr.CodeInternal),
			Field:   "order_id",
			Message: fmt.Sprintf("order %s was created but the session could not be saved", unsaved.OrderID),
		}}
	}

	code := apperr.CodeOf(err)
	msg := err.Error()
	if code == apperr.CodeInternal {
		msg = "internal error"
	}
	return []model.ErrorDetail{{Code: string(code), Message: msg}}
}

func userMessage(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return "Some details need fixing."
	case apperr.CodeStateTransition:
		return "That step is not available right now."
	case apperr.CodeCountMismatch:
		return "The number of passengers does not match the selected flight."
	case apperr.CodeExpired:
		return "This offer has expired. Please search again."
	case apperr.CodeNotFound:
		return "We could not find that."
	case apperr.CodeConflict:
		return err.Error()
	case apperr.CodeProvider:
		return "The airline system returned an error. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

func bookingData(b *model.Booking, res *booking.OrderResult) BookingData {
	d := BookingData{Booking: b}
	if res != nil {
		d.DroppedServices = res.Dropped
		p := res.Pricing
		d.Pricing = &p
	}
	return d
}
