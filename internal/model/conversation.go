package model

import (
	"time"
)

// Stage is the conversation's position in the booking journey.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageSearch             Stage = "search"
	StageSelection          Stage = "selection"
	StageAuthentication     Stage = "authentication"
	StagePassengerDetails   Stage = "passenger_details"
	StageAdditionalServices Stage = "additional_services"
	StagePayment            Stage = "payment"
	StageConfirmation       Stage = "confirmation"
)

// PaymentStatus tracks payment for the conversation's order.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentAwaiting  PaymentStatus = "awaiting_payment"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// SearchRecord is one entry of the bounded search history.
type SearchRecord struct {
	Params      FlightSearchParams `json:"params"`
	ResultCount int                `json:"result_count"`
	SearchedAt  time.Time          `json:"searched_at"`
}

// Conversation is the per-session booking state. It is only mutated through the
// conversation state machine.
type Conversation struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Stage     Stage     `json:"stage"`
	Messages  []Message `json:"messages"`

	SearchParams      *FlightSearchParams `json:"search_params,omitempty"`
	SearchResults     []Offer             `json:"search_results,omitempty"`
	PresentedOfferIDs []string            `json:"presented_offer_ids,omitempty"`
	SelectedOffer     *Offer              `json:"selected_offer,omitempty"`
	Passengers        []Passenger         `json:"passengers,omitempty"`
	SelectedServices  []ServiceSelection  `json:"selected_services,omitempty"`

	BookingReference string        `json:"booking_reference,omitempty"`
	OrderID          string        `json:"order_id,omitempty"`
	PaymentStatus    PaymentStatus `json:"payment_status"`

	SearchHistory    []SearchRecord `json:"search_history,omitempty"`
	ViewedOfferIDs   []string       `json:"viewed_offer_ids,omitempty"`
	RejectedOfferIDs []string       `json:"rejected_offer_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasBooking reports whether an order was created in this conversation.
func (c *Conversation) HasBooking() bool {
	return c.BookingReference != "" || c.OrderID != ""
}

// Expired reports whether the session is past its inactivity deadline and may be purged.
func (c *Conversation) Expired(now time.Time) bool {
	return !c.HasBooking() && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CreateSessionRequest is the request to open a conversation.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}
