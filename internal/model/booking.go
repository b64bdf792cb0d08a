package model

import (
	"time"
)

// BookingStatus is the lifecycle state of a persisted booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus]map[BookingStatus]struct{}{
	BookingPending: {
		BookingConfirmed: {},
		BookingCancelled: {},
	},
	BookingConfirmed: {
		BookingCompleted: {},
		BookingCancelled: {},
	},
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	_, ok := bookingTransitions[s][next]
	return ok
}

// Booking is the durable record of a created order.
type Booking struct {
	ID               string                `json:"id" bson:"_id"`
	SessionID        string                `json:"session_id" bson:"session_id"`
	UserID           string                `json:"user_id,omitempty" bson:"user_id,omitempty"`
	OrderID          string                `json:"order_id" bson:"order_id"`
	BookingReference string                `json:"booking_reference" bson:"booking_reference"`
	Status           BookingStatus         `json:"status" bson:"status"`
	Flight           FlightSummary         `json:"flight" bson:"flight"`
	Passengers       []PassengerSnapshot   `json:"passengers" bson:"passengers"`
	Pricing          PricingSnapshot       `json:"pricing" bson:"pricing"`
	Payment          PaymentSnapshot       `json:"payment" bson:"payment"`
	Services         []ServiceSelection    `json:"services,omitempty" bson:"services,omitempty"`
	Cancellation     *CancellationSnapshot `json:"cancellation,omitempty" bson:"cancellation,omitempty"`
	CreatedAt        time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at" bson:"updated_at"`
}

// FlightSummary is a compact description of the booked itinerary.
type FlightSummary struct {
	OfferID     string     `json:"offer_id" bson:"offer_id"`
	TripType    TripType   `json:"trip_type,omitempty" bson:"trip_type,omitempty"`
	Origin      string     `json:"origin" bson:"origin"`
	Destination string     `json:"destination" bson:"destination"`
	DepartingAt time.Time  `json:"departing_at" bson:"departing_at"`
	ArrivingAt  time.Time  `json:"arriving_at" bson:"arriving_at"`
	Airline     string     `json:"airline" bson:"airline"`
	CabinClass  CabinClass `json:"cabin_class,omitempty" bson:"cabin_class,omitempty"`
	Slices      []Slice    `json:"slices" bson:"slices"`
}

// PassengerSnapshot keeps the booked traveller names.
type PassengerSnapshot struct {
	ProviderID string        `json:"provider_id" bson:"provider_id"`
	Type       PassengerType `json:"type" bson:"type"`
	GivenName  string        `json:"given_name" bson:"given_name"`
	FamilyName string        `json:"family_name" bson:"family_name"`
}

// PricingSnapshot records the price at booking time.
type PricingSnapshot struct {
	Offer    Money `json:"offer" bson:"offer"`
	Services Money `json:"services" bson:"services"`
	Total    Money `json:"total" bson:"total"`
}

// PaymentSnapshot records how the order was paid.
type PaymentSnapshot struct {
	Status            PaymentStatus `json:"status" bson:"status"`
	PaymentID         string        `json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	PaymentRequiredBy *time.Time    `json:"payment_required_by,omitempty" bson:"payment_required_by,omitempty"`
}

// CancellationSnapshot records a confirmed cancellation.
type CancellationSnapshot struct {
	CancellationID string    `json:"cancellation_id" bson:"cancellation_id"`
	Refund         Money     `json:"refund" bson:"refund"`
	RefundTo       string    `json:"refund_to,omitempty" bson:"refund_to,omitempty"`
	ConfirmedAt    time.Time `json:"confirmed_at" bson:"confirmed_at"`
}
