package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// NewRecord builds the durable booking record of a created order. Only passenger names are
// kept in the snapshot.
func NewRecord(conv *model.Conversation, res *OrderResult, now time.Time) *model.Booking {
	status := model.BookingConfirmed
	payment := model.PaymentSnapshot{Status: model.PaymentPaid, PaidAt: &now}
	if res.Order.AwaitingPayment {
		status = model.BookingPending
		payment = model.PaymentSnapshot{
			Status:            model.PaymentAwaiting,
			PaymentRequiredBy: res.Order.PaymentRequiredBy,
		}
	}

	b := &model.Booking{
		ID:               uuid.Must(uuid.NewV7()).String(),
		SessionID:        conv.SessionID,
		UserID:           conv.UserID,
		OrderID:          res.Order.ID,
		BookingReference: res.Order.BookingReference,
		Status:           status,
		Flight:           summarize(res.Offer, conv.SearchParams),
		Pricing:          res.Pricing,
		Payment:          payment,
		Services:         res.Services,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for i, p := range conv.Passengers {
		snap := model.PassengerSnapshot{GivenName: p.GivenName, FamilyName: p.FamilyName, Type: p.Type}
		if i < len(res.Offer.Passengers) {
			snap.ProviderID = res.Offer.Passengers[i].ID
			snap.Type = res.Offer.Passengers[i].Type
		}
		b.Passengers = append(b.Passengers, snap)
	}
	return b
}

func summarize(o model.Offer, params *model.FlightSearchParams) model.FlightSummary {
	s := model.FlightSummary{
		OfferID:    o.ID,
		Airline:    o.Owner.Name,
		CabinClass: o.CabinClass,
		Slices:     o.Slices,
	}
	if params != nil {
		s.TripType = params.TripType
	}
	if n := len(o.Slices); n > 0 {
		first := o.Slices[0]
		s.Origin = first.Origin.Code
		s.Destination = first.Destination.Code
		s.DepartingAt = first.DepartingAt
		s.ArrivingAt = o.Slices[n-1].ArrivingAt
	}
	if s.Airline == "" {
		s.Airline = o.Owner.Code
	}
	return s
}
