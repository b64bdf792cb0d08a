package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/booking"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/validator"
)

// SubmitPassengers stores the travellers of the selected offer, one per passenger slot.
func (s *ConversationService) SubmitPassengers(ctx context.Context, sessionID string, passengers []model.Passenger) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.submitPassengers(ctx, sess, passengers)
	})
}

func (s *ConversationService) submitPassengers(_ context.Context, sess *session, passengers []model.Passenger) (*model.Response, error) {
	if err := sess.Require(model.StageAdditionalServices, model.StagePassengerDetails, model.StageAdditionalServices); err != nil {
		return nil, err
	}
	selected := sess.Conversation().SelectedOffer
	if selected == nil {
		return nil, &apperr.StateTransitionError{From: string(sess.Stage()), To: string(model.StageAdditionalServices)}
	}
	if len(passengers) != len(selected.Passengers) {
		return nil, &apperr.CountMismatchError{Expected: len(selected.Passengers), Got: len(passengers)}
	}

	filled := make([]model.Passenger, len(passengers))
	for i, p := range passengers {
		if p.Type == "" {
			p.Type = selected.Passengers[i].Type
		}
		filled[i] = p
	}

	result := s.validator.ValidatePassengers(filled, validator.PassengerOptions{
		RequiresPassport: s.cfg.RequirePassport || crossesBorder(*selected),
		DepartureDate:    selected.DepartingAt(),
	})
	if err := result.Err(); err != nil {
		return nil, err
	}
	sess.warn(result.Warnings...)

	if err := sess.transition(model.StageAdditionalServices); err != nil {
		return nil, err
	}
	sess.SetPassengers(filled)
	sess.emit(model.EventPassengersAdded, "", map[string]any{"count": len(filled)})

	return &model.Response{Message: "Passenger details saved. Would you like seats, bags or other extras?"}, nil
}

// ListServices returns the ancillaries available on the selected offer.
func (s *ConversationService) ListServices(ctx context.Context, sessionID string) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		selected := sess.Conversation().SelectedOffer
		if selected == nil {
			return nil, apperr.Conflictf("no flight has been selected")
		}
		services, err := s.orchestrator.GetOfferServices(ctx, selected.ID)
		if err != nil {
			return nil, err
		}
		return &model.Response{
			Message: fmt.Sprintf("%d extras are available.", services.Len()),
			Data:    services,
		}, nil
	})
}

// AddServices stores the requested ancillaries. An empty list means no extras.
func (s *ConversationService) AddServices(ctx context.Context, sessionID string, selections []model.ServiceSelection) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.addServices(ctx, sess, selections)
	})
}

func (s *ConversationService) addServices(_ context.Context, sess *session, selections []model.ServiceSelection) (*model.Response, error) {
	if err := sess.Require(model.StagePayment, model.StageAdditionalServices, model.StagePayment); err != nil {
		return nil, err
	}

	var fields []apperr.FieldError
	for i, sel := range selections {
		if sel.ID == "" {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("services[%d].id", i), Message: "is required"})
		}
		if sel.Quantity < 1 {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("services[%d].quantity", i), Message: "must be at least 1"})
		}
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	if err := sess.transition(model.StagePayment); err != nil {
		return nil, err
	}
	sess.SetServices(selections)
	sess.emit(model.EventServicesAdded, "", map[string]any{"count": len(selections)})

	msg := "Extras saved. Ready to book."
	if len(selections) == 0 {
		msg = "No extras. Ready to book."
	}
	return &model.Response{Message: msg}, nil
}

// Book creates the order for the selected offer, paid immediately or held when hold is set.
func (s *ConversationService) Book(ctx context.Context, sessionID string, hold bool) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.book(ctx, sess, hold)
	})
}

func (s *ConversationService) book(ctx context.Context, sess *session, hold bool) (*model.Response, error) {
	if err := sess.Require(model.StageConfirmation, model.StagePayment); err != nil {
		return nil, err
	}
	conv := sess.Conversation()
	if conv.SelectedOffer == nil {
		return nil, apperr.Conflictf("no flight has been selected")
	}
	selected := *conv.SelectedOffer

	s.checkPrice(ctx, sess, selected)

	in := booking.OrderInput{Offer: selected, Passengers: conv.Passengers, Services: conv.SelectedServices}
	var (
		res *booking.OrderResult
		err error
	)
	if hold {
		res, err = s.orchestrator.CreateHoldOrder(ctx, in)
	} else {
		res, err = s.orchestrator.CreateOrder(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	status := model.PaymentPaid
	eventType := model.EventBookingCreated
	if res.Order.AwaitingPayment {
		status = model.PaymentAwaiting
		eventType = model.EventHoldCreated
	}
	sess.RecordOrder(res.Order.ID, res.Order.BookingReference, status)
	if err := sess.transition(model.StageConfirmation); err != nil {
		return nil, err
	}

	record := booking.NewRecord(conv, res, s.now())
	if err := s.bookings.Create(ctx, record); err != nil {
		// The order exists at the provider; the conversation keeps its reference either way.
		s.logger.Error("failed to store booking",
			zap.String("session_id", conv.SessionID),
			zap.String("order_id", res.Order.ID),
			zap.Error(err),
		)
		sess.warnings = append(sess.warnings, model.ErrorDetail{
			Code:    string(apperr.CodeInternal),
			Message: "booking record could not be stored",
		})
	}
	sess.emit(eventType, "", map[string]any{
		"order_id":          res.Order.ID,
		"booking_reference": res.Order.BookingReference,
		"total":             res.Pricing.Total.Raw,
		"currency":          res.Pricing.Total.Currency,
	})
	for _, id := range res.Dropped {
		sess.warnings = append(sess.warnings, model.ErrorDetail{
			Code:    string(apperr.CodeValidation),
			Field:   "services",
			Message: fmt.Sprintf("service %s is no longer available and was not booked", id),
		})
	}

	msg := fmt.Sprintf("Booked! Your reference is %s.", res.Order.BookingReference)
	if hold {
		msg = fmt.Sprintf("Your flight is on hold with reference %s. Pay before the deadline to confirm it.", res.Order.BookingReference)
	}
	return &model.Response{Message: msg, Data: bookingData(record, res)}, nil
}

// checkPrice searches the itinerary again and warns when the cheapest fare moved. Failures
// only skip the check.
func (s *ConversationService) checkPrice(ctx context.Context, sess *session, selected model.Offer) {
	fresh, err := s.orchestrator.RefreshOffer(ctx, selected)
	if err != nil {
		s.logger.Debug("price check skipped", zap.String("offer_id", selected.ID), zap.Error(err))
		return
	}
	if fresh.Total.Currency == selected.Total.Currency && fresh.Total.Amount != selected.Total.Amount {
		sess.warnings = append(sess.warnings, model.ErrorDetail{
			Code:    "price_changed",
			Field:   "total",
			Message: fmt.Sprintf("the lowest fare for this itinerary is now %s %s", fresh.Total.Raw, fresh.Total.Currency),
		})
	}
}

// PayHold pays the conversation's held order.
func (s *ConversationService) PayHold(ctx context.Context, sessionID string) (*model.Response, error) {
	return s.run(ctx, sessionID, s.payHold)
}

func (s *ConversationService) payHold(ctx context.Context, sess *session) (*model.Response, error) {
	if err := sess.Require(model.StageConfirmation, model.StageConfirmation); err != nil {
		return nil, err
	}
	conv := sess.Conversation()
	if conv.PaymentStatus != model.PaymentAwaiting {
		return nil, apperr.Conflictf("there is no unpaid hold to pay")
	}

	payment, _, err := s.orchestrator.PayForHoldOrder(ctx, conv.OrderID)
	if err != nil {
		return nil, err
	}
	sess.SetPaymentStatus(model.PaymentPaid)
	sess.emit(model.EventPaymentCompleted, "", map[string]any{
		"order_id":   conv.OrderID,
		"payment_id": payment.ID,
	})

	record := s.updateBooking(ctx, conv.OrderID, model.BookingConfirmed, func(b *model.Booking) {
		paidAt := payment.CreatedAt
		b.Payment.Status = model.PaymentPaid
		b.Payment.PaymentID = payment.ID
		b.Payment.PaidAt = &paidAt
	})
	return &model.Response{
		Message: fmt.Sprintf("Payment received. Booking %s is confirmed.", conv.BookingReference),
		Data:    BookingData{Booking: record, Payment: payment},
	}, nil
}

// Cancel cancels the conversation's order.
func (s *ConversationService) Cancel(ctx context.Context, sessionID string) (*model.Response, error) {
	return s.run(ctx, sessionID, s.cancel)
}

func (s *ConversationService) cancel(ctx context.Context, sess *session) (*model.Response, error) {
	if err := sess.Require(model.StageConfirmation, model.StageConfirmation); err != nil {
		return nil, err
	}
	conv := sess.Conversation()
	if conv.PaymentStatus == model.PaymentCancelled {
		return nil, apperr.Conflictf("booking %s is already cancelled", conv.BookingReference)
	}

	cancellation, err := s.orchestrator.CancelOrder(ctx, conv.OrderID)
	if err != nil {
		return nil, err
	}
	sess.SetPaymentStatus(model.PaymentCancelled)
	sess.emit(model.EventBookingCancelled, "", map[string]any{
		"order_id":        conv.OrderID,
		"cancellation_id": cancellation.ID,
		"refund":          cancellation.Refund.Raw,
	})

	record := s.updateBooking(ctx, conv.OrderID, model.BookingCancelled, func(b *model.Booking) {
		b.Cancellation = &model.CancellationSnapshot{
			CancellationID: cancellation.ID,
			Refund:         cancellation.Refund,
			RefundTo:       cancellation.RefundTo,
			ConfirmedAt:    *cancellation.ConfirmedAt,
		}
	})
	return &model.Response{
		Message: fmt.Sprintf("Booking %s is cancelled.", conv.BookingReference),
		Data:    BookingData{Booking: record, Cancellation: cancellation},
	}, nil
}

// updateBooking moves the stored booking to status. The provider already changed the order,
// so repository failures are logged rather than returned.
func (s *ConversationService) updateBooking(ctx context.Context, orderID string, status model.BookingStatus, apply func(*model.Booking)) *model.Booking {
	b, err := s.bookings.GetByOrderID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Error("failed to load booking", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil
	}
	if !b.Status.CanTransition(status) {
		s.logger.Warn("booking status unchanged",
			zap.String("order_id", orderID),
			zap.String("from", string(b.Status)),
			zap.String("to", string(status)),
		)
		return b
	}

	b.Status = status
	b.UpdatedAt = s.now()
	apply(b)
	if err := s.bookings.Update(ctx, b); err != nil {
		s.logger.Error("failed to update booking", zap.String("order_id", orderID), zap.Error(err))
	}
	return b
}

// crossesBorder reports whether the itinerary touches more than one country. Unknown
// country codes are ignored.
func crossesBorder(o model.Offer) bool {
	country := ""
	for _, sl := range o.Slices {
		for _, seg := range sl.Segments {
			for _, c := range []string{seg.Origin.CountryCode, seg.Destination.CountryCode} {
				if c == "" {
					continue
				}
				if country == "" {
					country = c
				} else if c != country {
					return true
				}
			}
		}
	}
	return false
}
