// Package dialogue adapts the natural-language collaborator: it builds the context the
// model may see and turns its replies into intents.
package dialogue

import (
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// OfferSummary is the non-identifying view of a presented offer.
type OfferSummary struct {
	ID              string    `json:"id"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency"`
	Airline         string    `json:"airline,omitempty"`
	DepartingAt     time.Time `json:"departing_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Stops           int       `json:"stops"`
}

// SanitizedContext is everything the language model is told about a conversation. It
// never carries passenger identity, contact or payment data.
type SanitizedContext struct {
	Stage               model.Stage           `json:"stage"`
	TripType            model.TripType        `json:"trip_type,omitempty"`
	Origin              string                `json:"origin,omitempty"`
	Destination         string                `json:"destination,omitempty"`
	DepartureDate       string                `json:"departure_date,omitempty"`
	ReturnDate          string                `json:"return_date,omitempty"`
	CabinClass          model.CabinClass      `json:"cabin_class,omitempty"`
	Passengers          model.PassengerCounts `json:"passengers"`
	AdditionalStops     []model.Leg           `json:"additional_stops,omitempty"`
	ResultCount         int                   `json:"result_count"`
	PresentedOffers     []OfferSummary        `json:"presented_offers,omitempty"`
	HasSelectedFlight   bool                  `json:"has_selected_flight"`
	HasPassengerDetails bool                  `json:"has_passenger_details"`
	HasServices         bool                  `json:"has_services"`
	HasBooking          bool                  `json:"has_booking"`
	Authenticated       bool                  `json:"authenticated"`
	PaymentStatus       model.PaymentStatus   `json:"payment_status,omitempty"`
	SelectedPrice       *model.Money          `json:"selected_price,omitempty"`
	PassengerSlots      int                   `json:"passenger_slots,omitempty"`
}

// BuildContext derives the sanitized context of conv.
func BuildContext(conv *model.Conversation) SanitizedContext {
	sc := SanitizedContext{
		Stage:               conv.Stage,
		ResultCount:         len(conv.SearchResults),
		HasSelectedFlight:   conv.SelectedOffer != nil,
		HasPassengerDetails: len(conv.Passengers) > 0,
		HasServices:         len(conv.SelectedServices) > 0,
		HasBooking:          conv.HasBooking(),
		Authenticated:       conv.UserID != "",
		PaymentStatus:       conv.PaymentStatus,
	}

	if p := conv.SearchParams; p != nil {
		sc.TripType = p.TripType
		sc.Origin = p.Origin
		sc.Destination = p.Destination
		sc.DepartureDate = p.DepartureDate
		sc.ReturnDate = p.ReturnDate
		sc.CabinClass = p.CabinClass
		sc.Passengers = p.Passengers
		sc.AdditionalStops = p.AdditionalStops
	}

	presented := make(map[string]bool, len(conv.PresentedOfferIDs))
	for _, id := range conv.PresentedOfferIDs {
		presented[id] = true
	}
	for _, o := range conv.SearchResults {
		if presented[o.ID] {
			sc.PresentedOffers = append(sc.PresentedOffers, summarize(o))
		}
	}

	if o := conv.SelectedOffer; o != nil {
		price := model.Money{Amount: o.Total.Amount, Currency: o.Total.Currency}
		sc.SelectedPrice = &price
		sc.PassengerSlots = len(o.Passengers)
	}
	return sc
}

func summarize(o model.Offer) OfferSummary {
	s := OfferSummary{
		ID:              o.ID,
		Price:           o.Total.Amount,
		Currency:        o.Total.Currency,
		Airline:         o.Owner.Name,
		DepartingAt:     o.DepartingAt(),
		DurationMinutes: o.TotalDurationMinutes(),
	}
	for _, sl := range o.Slices {
		s.Stops += sl.Connections()
	}
	return s
}
