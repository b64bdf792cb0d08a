// Package model defines the canonical data structures of the flight concierge.
package model

import (
	"time"
)

// TripType is the shape of the requested itinerary.
type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
	TripMultiCity TripType = "multi_city"
)

// CabinClass is the requested cabin.
type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// TimeWindow is an HH:MM–HH:MM range.
type TimeWindow struct {
	From string `json:"from" bson:"from" mapstructure:"from"`
	To   string `json:"to" bson:"to" mapstructure:"to"`
}

// PassengerCounts holds the number of travellers per type.
type PassengerCounts struct {
	Adults   int `json:"adults" bson:"adults" mapstructure:"adults"`
	Children int `json:"children" bson:"children" mapstructure:"children"`
	Infants  int `json:"infants" bson:"infants" mapstructure:"infants"`
}

// Total returns the number of travellers.
func (c PassengerCounts) Total() int {
	return c.Adults + c.Children + c.Infants
}

// Leg is one origin→destination hop of a search.
type Leg struct {
	Origin        string `json:"origin" bson:"origin" mapstructure:"origin"`
	Destination   string `json:"destination" bson:"destination" mapstructure:"destination"`
	DepartureDate string `json:"departure_date" bson:"departure_date" mapstructure:"departure_date"`
}

// FlightSearchParams is a search request as captured from the user.
type FlightSearchParams struct {
	TripType        TripType        `json:"trip_type" bson:"trip_type" mapstructure:"trip_type"`
	Origin          string          `json:"origin" bson:"origin" mapstructure:"origin"`
	Destination     string          `json:"destination" bson:"destination" mapstructure:"destination"`
	DepartureDate   string          `json:"departure_date" bson:"departure_date" mapstructure:"departure_date"`
	ReturnDate      string          `json:"return_date,omitempty" bson:"return_date,omitempty" mapstructure:"return_date"`
	DepartureTime   *TimeWindow     `json:"departure_time,omitempty" bson:"departure_time,omitempty" mapstructure:"departure_time"`
	ArrivalTime     *TimeWindow     `json:"arrival_time,omitempty" bson:"arrival_time,omitempty" mapstructure:"arrival_time"`
	CabinClass      CabinClass      `json:"cabin_class,omitempty" bson:"cabin_class,omitempty" mapstructure:"cabin_class"`
	Passengers      PassengerCounts `json:"passengers" bson:"passengers" mapstructure:"passengers"`
	MaxConnections  *int            `json:"max_connections,omitempty" bson:"max_connections,omitempty" mapstructure:"max_connections"`
	AdditionalStops []Leg           `json:"additional_stops,omitempty" bson:"additional_stops,omitempty" mapstructure:"additional_stops"`
}

// Legs expands the params into the ordered list of directional hops.
func (p FlightSearchParams) Legs() []Leg {
	legs := []Leg{{Origin: p.Origin, Destination: p.Destination, DepartureDate: p.DepartureDate}}
	switch p.TripType {
	case TripRoundTrip:
		legs = append(legs, Leg{Origin: p.Destination, Destination: p.Origin, DepartureDate: p.ReturnDate})
	case TripMultiCity:
		legs = append(legs, p.AdditionalStops...)
	}
	return legs
}

// Money is an amount in a currency. Raw keeps the provider's exact decimal string.
type Money struct {
	Amount   float64 `json:"amount" bson:"amount"`
	Currency string  `json:"currency" bson:"currency"`
	Raw      string  `json:"raw,omitempty" bson:"raw,omitempty"`
}

// Airport describes an origin or destination place.
type Airport struct {
	Code        string `json:"code" bson:"code"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	City        string `json:"city,omitempty" bson:"city,omitempty"`
	CountryCode string `json:"country_code,omitempty" bson:"country_code,omitempty"`
	TimeZone    string `json:"time_zone,omitempty" bson:"time_zone,omitempty"`
}

// Airline describes a carrier.
type Airline struct {
	Code string `json:"code" bson:"code"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// Duration carries both a display string and the numeric minutes used for comparisons.
type Duration struct {
	Text    string `json:"text" bson:"text"`
	Minutes int    `json:"minutes" bson:"minutes"`
}

// Segment is one physical flight.
type Segment struct {
	ID                  string    `json:"id" bson:"id"`
	OperatingCarrier    Airline   `json:"operating_carrier" bson:"operating_carrier"`
	MarketingCarrier    Airline   `json:"marketing_carrier" bson:"marketing_carrier"`
	FlightNumber        string    `json:"flight_number" bson:"flight_number"`
	Aircraft            string    `json:"aircraft,omitempty" bson:"aircraft,omitempty"`
	Origin              Airport   `json:"origin" bson:"origin"`
	Destination         Airport   `json:"destination" bson:"destination"`
	OriginTerminal      string    `json:"origin_terminal,omitempty" bson:"origin_terminal,omitempty"`
	DestinationTerminal string    `json:"destination_terminal,omitempty" bson:"destination_terminal,omitempty"`
	DepartingAt         time.Time `json:"departing_at" bson:"departing_at"`
	ArrivingAt          time.Time `json:"arriving_at" bson:"arriving_at"`
	Duration            Duration  `json:"duration" bson:"duration"`
}

// Slice is one directional portion of an itinerary.
type Slice struct {
	ID          string    `json:"id" bson:"id"`
	Origin      Airport   `json:"origin" bson:"origin"`
	Destination Airport   `json:"destination" bson:"destination"`
	Segments    []Segment `json:"segments" bson:"segments"`
	DepartingAt time.Time `json:"departing_at" bson:"departing_at"`
	ArrivingAt  time.Time `json:"arriving_at" bson:"arriving_at"`
	Duration    Duration  `json:"duration" bson:"duration"`
}

// Connections returns the number of stops within the slice.
func (s Slice) Connections() int {
	if len(s.Segments) == 0 {
		return 0
	}
	return len(s.Segments) - 1
}

// PassengerType classifies a traveller.
type PassengerType string

const (
	PassengerAdult  PassengerType = "adult"
	PassengerChild  PassengerType = "child"
	PassengerInfant PassengerType = "infant_without_seat"
)

// BaggageAllowance is an included bag.
type BaggageAllowance struct {
	Type     string `json:"type" bson:"type"`
	Quantity int    `json:"quantity" bson:"quantity"`
}

// PassengerSlot is a provider-issued passenger identifier on an offer.
type PassengerSlot struct {
	ID      string             `json:"id" bson:"id"`
	Type    PassengerType      `json:"type" bson:"type"`
	Baggage []BaggageAllowance `json:"baggage,omitempty" bson:"baggage,omitempty"`
}

// Offer is a priced, time-bounded itinerary proposal. Offers are never mutated after
// normalization; a refreshed offer is a new value.
type Offer struct {
	ID                     string             `json:"id" bson:"id"`
	Total                  Money              `json:"total" bson:"total"`
	ExpiresAt              time.Time          `json:"expires_at" bson:"expires_at"`
	Slices                 []Slice            `json:"slices" bson:"slices"`
	Passengers             []PassengerSlot    `json:"passengers" bson:"passengers"`
	CabinClass             CabinClass         `json:"cabin_class,omitempty" bson:"cabin_class,omitempty"`
	Owner                  Airline            `json:"owner" bson:"owner"`
	Refundable             bool               `json:"refundable" bson:"refundable"`
	Changeable             bool               `json:"changeable" bson:"changeable"`
	RequiresInstantPayment bool               `json:"requires_instant_payment" bson:"requires_instant_payment"`
	Services               *AvailableServices `json:"services,omitempty" bson:"services,omitempty"`
}

// TotalDurationMinutes sums the minutes of every slice.
func (o Offer) TotalDurationMinutes() int {
	total := 0
	for _, s := range o.Slices {
		total += s.Duration.Minutes
	}
	return total
}

// DepartingAt returns the departure of the first slice.
func (o Offer) DepartingAt() time.Time {
	if len(o.Slices) == 0 {
		return time.Time{}
	}
	return o.Slices[0].DepartingAt
}

// Expired reports whether the offer can no longer be booked at now.
func (o Offer) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}
