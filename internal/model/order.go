package model

import (
	"time"
)

// Order is a provider order, paid or on hold.
type Order struct {
	ID                string           `json:"id"`
	BookingReference  string           `json:"booking_reference"`
	Total             Money            `json:"total"`
	AwaitingPayment   bool             `json:"awaiting_payment"`
	PaymentRequiredBy *time.Time       `json:"payment_required_by,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	Slices            []Slice          `json:"slices,omitempty"`
	Passengers        []OrderPassenger `json:"passengers,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// OrderPassenger is the provider's view of a booked traveller.
type OrderPassenger struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Payment is a completed payment against an order.
type Payment struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Amount    Money     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Cancellation is a cancellation request for an order. It only takes effect once confirmed.
type Cancellation struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	Refund      Money      `json:"refund"`
	RefundTo    string     `json:"refund_to,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Confirmed reports whether the cancellation has been confirmed.
func (c Cancellation) Confirmed() bool {
	return c.ConfirmedAt != nil
}
