package offer

import (
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
)

// NormalizeOrder converts a raw order.
func NormalizeOrder(raw provider.Order) model.Order {
	o := model.Order{
		ID:                raw.ID,
		BookingReference:  raw.BookingReference,
		Total:             ParseMoney(raw.TotalAmount, raw.TotalCurrency),
		AwaitingPayment:   raw.PaymentStatus.AwaitingPayment,
		PaymentRequiredBy: parseTimePtr(raw.PaymentStatus.PaymentRequiredBy),
		CancelledAt:       parseTimePtr(raw.CancelledAt),
		CreatedAt:         parseTime(raw.CreatedAt),
	}
	for _, s := range raw.Slices {
		o.Slices = append(o.Slices, normalizeSlice(s))
	}
	for _, p := range raw.Passengers {
		o.Passengers = append(o.Passengers, model.OrderPassenger{
			ID:         p.ID,
			GivenName:  p.GivenName,
			FamilyName: p.FamilyName,
		})
	}
	return o
}

// NormalizePayment converts a raw payment.
func NormalizePayment(raw provider.Payment, orderID string) model.Payment {
	return model.Payment{
		ID:        raw.ID,
		OrderID:   orderID,
		Amount:    ParseMoney(raw.Amount, raw.Currency),
		CreatedAt: parseTime(raw.CreatedAt),
	}
}

// NormalizeCancellation converts a raw cancellation.
func NormalizeCancellation(raw provider.Cancellation) model.Cancellation {
	return model.Cancellation{
		ID:          raw.ID,
		OrderID:     raw.OrderID,
		Refund:      ParseMoney(raw.RefundAmount, raw.RefundCurrency),
		RefundTo:    raw.RefundTo,
		ExpiresAt:   parseTimePtr(raw.ExpiresAt),
		ConfirmedAt: parseTimePtr(raw.ConfirmedAt),
	}
}

func parseTimePtr(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
