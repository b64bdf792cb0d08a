package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

// OrderInput is what the caller knows when booking: the selected offer, the passengers
// in slot order and the requested services.
type OrderInput struct {
	Offer      model.Offer
	Passengers []model.Passenger
	Services   []model.ServiceSelection
}

// OrderResult is a created order with the pricing it was placed at.
type OrderResult struct {
	Order    model.Order
	Offer    model.Offer
	Services []model.ServiceSelection
	Dropped  []string
	Pricing  model.PricingSnapshot
}

// CreateOrder books the offer and pays for it from the agency balance. The amount paid is
// always the provider's current total, never a client value.
func (o *Orchestrator) CreateOrder(ctx context.Context, in OrderInput) (*OrderResult, error) {
	return o.placeOrder(ctx, in, false)
}

// CreateHoldOrder books the offer without paying. The order must be paid later with
// PayForHoldOrder.
func (o *Orchestrator) CreateHoldOrder(ctx context.Context, in OrderInput) (*OrderResult, error) {
	return o.placeOrder(ctx, in, true)
}

func (o *Orchestrator) placeOrder(ctx context.Context, in OrderInput, hold bool) (*OrderResult, error) {
	operation := "create_order"
	if hold {
		operation = "create_hold"
	}

	if len(in.Passengers) != len(in.Offer.Passengers) {
		metrics.RecordBooking(operation, "rejected")
		return nil, &apperr.CountMismatchError{Expected: len(in.Offer.Passengers), Got: len(in.Passengers)}
	}

	current, err := o.GetOffer(ctx, in.Offer.ID)
	if err != nil {
		metrics.RecordBooking(operation, "error")
		return nil, err
	}
	if current.Expired(o.now()) {
		metrics.RecordBooking(operation, "rejected")
		return nil, &apperr.ExpiryError{OfferID: current.ID, ExpiredAt: current.ExpiresAt}
	}
	if len(in.Passengers) != len(current.Passengers) {
		metrics.RecordBooking(operation, "rejected")
		return nil, &apperr.CountMismatchError{Expected: len(current.Passengers), Got: len(in.Passengers)}
	}
	if hold && current.RequiresInstantPayment {
		metrics.RecordBooking(operation, "rejected")
		return nil, apperr.Conflictf("offer %s requires instant payment and cannot be held", current.ID)
	}

	passengers, err := o.mapPassengers(current.Passengers, in.Passengers)
	if err != nil {
		metrics.RecordBooking(operation, "rejected")
		return nil, err
	}

	services, dropped, servicesTotal := filterServices(current.Services, in.Services, current.Total.Currency)
	if len(dropped) > 0 {
		o.logger.Info("dropping unknown services", zap.String("offer_id", current.ID), zap.Strings("service_ids", dropped))
	}
	total := addMoney(current.Total, servicesTotal)

	req := provider.OrderRequest{
		Type:           provider.OrderTypeInstant,
		SelectedOffers: []string{current.ID},
		Passengers:     passengers,
	}
	if hold {
		req.Type = provider.OrderTypeHold
	} else {
		req.Payments = []provider.PaymentInput{{
			Type:     provider.PaymentTypeBalance,
			Amount:   total.Raw,
			Currency: total.Currency,
		}}
	}
	for _, s := range services {
		req.Services = append(req.Services, provider.ServiceInput{ID: s.ID, Quantity: s.Quantity})
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	raw, err := o.provider.CreateOrder(ctx, req)
	if err != nil {
		metrics.RecordBooking(operation, "error")
		return nil, fmt.Errorf("create order for offer %s: %w", current.ID, err)
	}
	metrics.RecordBooking(operation, "success")

	order := offer.NormalizeOrder(*raw)
	o.logger.Info("order created",
		zap.String("offer_id", current.ID),
		zap.String("order_id", order.ID),
		zap.Bool("hold", hold),
		zap.Int("services", len(services)),
	)

	return &OrderResult{
		Order:    order,
		Offer:    current,
		Services: services,
		Dropped:  dropped,
		Pricing: model.PricingSnapshot{
			Offer:    current.Total,
			Services: servicesTotal,
			Total:    total,
		},
	}, nil
}

// PayForHoldOrder pays an unpaid hold order. The order is always re-read first so the
// current amount is paid.
func (o *Orchestrator) PayForHoldOrder(ctx context.Context, orderID string) (*model.Payment, *model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	raw, err := o.provider.GetOrder(ctx, orderID)
	if err != nil {
		metrics.RecordBooking("pay_hold", "error")
		return nil, nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	order := offer.NormalizeOrder(*raw)

	switch {
	case order.CancelledAt != nil:
		metrics.RecordBooking("pay_hold", "rejected")
		return nil, nil, apperr.Conflictf("order %s is cancelled", orderID)
	case !order.AwaitingPayment:
		metrics.RecordBooking("pay_hold", "rejected")
		return nil, nil, apperr.Conflictf("order %s is already paid", orderID)
	}

	rawPayment, err := o.provider.CreatePayment(ctx, provider.PaymentRequest{
		OrderID:  order.ID,
		Type:     provider.PaymentTypeBalance,
		Amount:   order.Total.Raw,
		Currency: order.Total.Currency,
	})
	if err != nil {
		metrics.RecordBooking("pay_hold", "error")
		return nil, nil, fmt.Errorf("pay order %s: %w", orderID, err)
	}
	metrics.RecordBooking("pay_hold", "success")

	payment := offer.NormalizePayment(*rawPayment, order.ID)
	order.AwaitingPayment = false
	o.logger.Info("hold order paid", zap.String("order_id", order.ID), zap.String("payment_id", payment.ID))
	return &payment, &order, nil
}

// CancelOrder cancels an order. The cancellation is only effective once confirmed, so both
// steps always run.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (*model.Cancellation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	pending, err := o.provider.CreateCancellation(ctx, orderID)
	if err != nil {
		metrics.RecordBooking("cancel", "error")
		return nil, fmt.Errorf("create cancellation for order %s: %w", orderID, err)
	}

	confirmed, err := o.provider.ConfirmCancellation(ctx, pending.ID)
	if err != nil {
		metrics.RecordBooking("cancel", "error")
		return nil, fmt.Errorf("confirm cancellation %s: %w", pending.ID, err)
	}
	metrics.RecordBooking("cancel", "success")

	c := offer.NormalizeCancellation(*confirmed)
	if c.OrderID == "" {
		c.OrderID = orderID
	}
	if c.ConfirmedAt == nil {
		now := o.now()
		c.ConfirmedAt = &now
	}
	o.logger.Info("order cancelled", zap.String("order_id", orderID), zap.String("cancellation_id", c.ID))
	return &c, nil
}

func (o *Orchestrator) mapPassengers(slots []model.PassengerSlot, passengers []model.Passenger) ([]provider.OrderPassenger, error) {
	out := make([]provider.OrderPassenger, 0, len(passengers))
	for i, p := range passengers {
		gender := DeriveGender(p, o.cfg.FallbackGender)
		if gender == "" {
			return nil, apperr.NewValidationError(fmt.Sprintf("passengers[%d].gender", i), "gender is required and could not be inferred from title")
		}

		op := provider.OrderPassenger{
			ID:          slots[i].ID,
			Title:       strings.ToLower(strings.Trim(p.Title, ". ")),
			GivenName:   p.GivenName,
			FamilyName:  p.FamilyName,
			BornOn:      p.BornOn,
			Gender:      gender,
			Email:       p.Email,
			PhoneNumber: NormalizePhone(p.Phone, o.cfg.DefaultCountryCode),
		}
		if p.PassportNumber != "" {
			op.IdentityDocuments = []provider.IdentityDocument{{
				Type:               "passport",
				UniqueIdentifier:   p.PassportNumber,
				ExpiresOn:          p.PassportExpiry,
				IssuingCountryCode: strings.ToUpper(p.Nationality),
			}}
		}
		out = append(out, op)
	}
	return out, nil
}

// DeriveGender returns the provider gender code of p: the explicit value, else one inferred
// from the title, else fallback.
func DeriveGender(p model.Passenger, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "m", "male":
		return model.GenderMale
	case "f", "female":
		return model.GenderFemale
	}

	switch strings.ToLower(strings.Trim(p.Title, ". ")) {
	case "mr":
		return model.GenderMale
	case "mrs", "ms", "miss":
		return model.GenderFemale
	}

	return fallback
}

// NormalizePhone returns phone in +<digits> form. Numbers without a leading + and of at
// most ten digits get countryCode prepended.
func NormalizePhone(phone, countryCode string) string {
	trimmed := strings.TrimSpace(phone)
	digits := onlyDigits(trimmed)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	if len(digits) <= 10 {
		digits = onlyDigits(countryCode) + digits
	}
	return "+" + digits
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// filterServices keeps the selections offered with the offer and prices them. Unknown ids
// are returned separately instead of failing the booking.
func filterServices(available *model.AvailableServices, selections []model.ServiceSelection, currency string) ([]model.ServiceSelection, []string, model.Money) {
	sum := decimal.Zero
	places := int32(0)
	var kept []model.ServiceSelection
	var dropped []string

	for _, sel := range selections {
		price, ok := available.Price(sel.ID)
		if !ok {
			dropped = append(dropped, sel.ID)
			continue
		}
		if sel.Quantity <= 0 {
			sel.Quantity = 1
		}
		amount := amountOf(price)
		places = max(places, placesOf(amount))
		sum = sum.Add(amount.Mul(decimal.NewFromInt(int64(sel.Quantity))))
		kept = append(kept, sel)
	}
	return kept, dropped, toMoney(sum, currency, max(places, 2))
}

// addMoney sums two amounts exactly, keeping the precision of the more precise one.
func addMoney(base, extra model.Money) model.Money {
	a, b := amountOf(base), amountOf(extra)
	if b.IsZero() && base.Raw != "" {
		return base
	}
	return toMoney(a.Add(b), base.Currency, max(placesOf(a), placesOf(b), 2))
}

// amountOf reads the provider's decimal string when present so no precision is lost to
// float64.
func amountOf(m model.Money) decimal.Decimal {
	if m.Raw != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(m.Raw)); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(m.Amount)
}

func placesOf(d decimal.Decimal) int32 {
	if exp := d.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}

func toMoney(d decimal.Decimal, currency string, places int32) model.Money {
	return model.Money{Amount: d.InexactFloat64(), Currency: currency, Raw: d.StringFixed(places)}
}
