package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/booking"
	"github.com/capitalize-ai/flight-concierge/internal/dialogue"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
	"github.com/capitalize-ai/flight-concierge/internal/store"
	"github.com/capitalize-ai/flight-concierge/internal/validator"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc       *ConversationService
	provider  *stubProvider
	sessions  *store.MemorySessionStore
	bookings  *store.MemoryBookingRepository
	publisher *recordingPublisher
	nlu       *scriptedInterpreter
}

func newHarness(t *testing.T, cfg Config, offers ...provider.Offer) *harness {
	t.Helper()

	h := &harness{
		provider:  newStubProvider(offers...),
		sessions:  store.NewMemorySessionStore(),
		bookings:  store.NewMemoryBookingRepository(),
		publisher: &recordingPublisher{},
		nlu:       &scriptedInterpreter{},
	}
	h.provider.order = provider.Order{
		ID:               "ord_1",
		BookingReference: "ABC123",
		TotalAmount:      "200.00",
		TotalCurrency:    "USD",
		CreatedAt:        "2025-03-01T12:05:00Z",
	}

	h.build(cfg, h.sessions)
	return h
}

// build wires a fresh service over the harness fakes and the given session store.
func (h *harness) build(cfg Config, sessions store.SessionStore) {
	clock := func() time.Time { return fixedNow }
	orch := booking.NewOrchestrator(h.provider, booking.DefaultConfig(), logger.NewNop(), booking.WithClock(clock))
	h.svc = NewConversationService(Dependencies{
		Sessions:     sessions,
		Bookings:     h.bookings,
		Orchestrator: orch,
		Validator:    validator.New(validator.WithClock(clock)),
		Interpreter:  h.nlu,
		Publisher:    h.publisher,
	}, cfg, logger.NewNop(), WithClock(clock))
	h.svc.saveBackoff = 0
}

func defaultOffers() []provider.Offer {
	return []provider.Offer{
		rawOffer("off_cheap", "200.00", "2025-04-10T06:00:00", "US"),
		rawOffer("off_mid", "250.00", "2025-04-10T09:00:00", "US"),
		rawOffer("off_late", "300.00", "2025-04-10T19:00:00", "US"),
	}
}

func searchParams() model.FlightSearchParams {
	return model.FlightSearchParams{
		TripType:      model.TripOneWay,
		Origin:        "jfk",
		Destination:   "lax",
		DepartureDate: "2025-04-10",
		Passengers:    model.PassengerCounts{Adults: 1},
	}
}

func traveller() model.Passenger {
	return model.Passenger{
		Title:      "Mr",
		GivenName:  "Sam",
		FamilyName: "Doe",
		BornOn:     "1990-05-01",
		Email:      "sam@example.com",
		Phone:      "+1 212 555 0100",
	}
}

func (h *harness) start(t *testing.T, userID string) string {
	t.Helper()
	resp, err := h.svc.Start(context.Background(), "sess-1", userID)
	require.NoError(t, err)
	require.True(t, resp.Success)
	return "sess-1"
}

func (h *harness) toPayment(t *testing.T, ctx context.Context, id string) {
	t.Helper()
	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	_, err = h.svc.SelectOffer(ctx, id, "off_cheap")
	require.NoError(t, err)
	_, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller()})
	require.NoError(t, err)
	_, err = h.svc.AddServices(ctx, id, nil)
	require.NoError(t, err)
}

func TestStart(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	resp, err := h.svc.Start(ctx, "", "")
	require.NoError(t, err)
	conv := resp.Data.(*model.Conversation)
	assert.NotEmpty(t, conv.SessionID)
	assert.Equal(t, model.StageInitial, resp.Stage)
	assert.Equal(t, fixedNow.Add(30*time.Minute), conv.ExpiresAt)

	_, err = h.svc.Start(ctx, conv.SessionID, "")
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestSearchPresentsDiverseSelection(t *testing.T) {
	h := newHarness(t, Config{ResultSize: 2}, defaultOffers()...)
	id := h.start(t, "")

	resp, err := h.svc.Search(context.Background(), id, searchParams())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, model.StageSelection, resp.Stage)

	data := resp.Data.(OffersData)
	assert.Equal(t, 3, data.TotalFound)
	require.Len(t, data.Offers, 2)
	assert.Equal(t, "off_cheap", data.Offers[0].ID)

	conv, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, conv.SearchResults, 3)
	assert.Equal(t, "JFK", conv.SearchParams.Origin)
	assert.Len(t, conv.PresentedOfferIDs, 2)
	assert.Equal(t, conv.PresentedOfferIDs, conv.ViewedOfferIDs)
	assert.Equal(t, []model.EventType{model.EventStageChanged, model.EventSearchCompleted, model.EventStageChanged},
		h.publisher.eventTypes())
}

func TestSearchValidationLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")

	p := searchParams()
	p.DepartureDate = "2025-02-01"
	resp, err := h.svc.Search(context.Background(), id, p)
	require.Error(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "departure_date", resp.Errors[0].Field)
	assert.Zero(t, h.provider.count("create_search"))

	conv, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StageInitial, conv.Stage)
}

func TestSearchProviderFailureKeepsStage(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	h.provider.searchErr = &apperr.ProviderError{Status: 503, Message: "unavailable"}
	id := h.start(t, "")

	_, err := h.svc.Search(context.Background(), id, searchParams())
	assert.Equal(t, apperr.CodeProvider, apperr.CodeOf(err))

	conv, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StageInitial, conv.Stage)
}

func TestSearchAgainFromSelection(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	resp, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	assert.Equal(t, model.StageSelection, resp.Stage)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.SearchHistory, 2)
}

func TestSearchWithoutResultsStaysInSearch(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	id := h.start(t, "")

	resp, err := h.svc.Search(context.Background(), id, searchParams())
	require.NoError(t, err)
	assert.Equal(t, model.StageSearch, resp.Stage)
	assert.Empty(t, resp.Data.(OffersData).Offers)
}

func TestFilter(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Filter(ctx, id, offer.Criteria{})
	assert.Equal(t, apperr.CodeStateTransition, apperr.CodeOf(err))

	_, err = h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)

	maxPrice := 260.0
	resp, err := h.svc.Filter(ctx, id, offer.Criteria{MaxPrice: &maxPrice, SortBy: offer.SortPrice, Descending: true})
	require.NoError(t, err)
	data := resp.Data.(OffersData)
	assert.Equal(t, 2, data.TotalFound)
	assert.Equal(t, "off_mid", data.Offers[0].ID)

	minPrice := 500.0
	_, err = h.svc.Filter(ctx, id, offer.Criteria{MinPrice: &minPrice, MaxPrice: &maxPrice})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestSelectOffer(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)

	_, err = h.svc.SelectOffer(ctx, id, "off_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	resp, err := h.svc.SelectOffer(ctx, id, "off_cheap")
	require.NoError(t, err)
	assert.Equal(t, model.StagePassengerDetails, resp.Stage)
	sel := resp.Data.(SelectionData)
	assert.False(t, sel.RequiresAuthentication)
	require.NotNil(t, sel.Offer.Services)
	assert.Len(t, sel.Offer.Services.Baggage, 1)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"off_mid", "off_late"}, conv.RejectedOfferIDs)
}

func TestSelectOfferRequiresAuthentication(t *testing.T) {
	h := newHarness(t, Config{RequireAuth: true}, defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	resp, err := h.svc.SelectOffer(ctx, id, "off_cheap")
	require.NoError(t, err)
	assert.Equal(t, model.StageAuthentication, resp.Stage)
	assert.True(t, resp.Data.(SelectionData).RequiresAuthentication)

	_, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller()})
	assert.Equal(t, apperr.CodeStateTransition, apperr.CodeOf(err))

	alice := WithCaller(ctx, "user-1")
	resp, err = h.svc.Authenticate(alice, id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePassengerDetails, resp.Stage)

	_, err = h.svc.Authenticate(alice, id, "user-2")
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	_, err = h.svc.Authenticate(WithCaller(ctx, "user-2"), id, "user-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSelectExpiredOffer(t *testing.T) {
	offers := defaultOffers()
	offers[0].ExpiresAt = "2025-03-01T11:00:00Z"
	h := newHarness(t, DefaultConfig(), offers...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	_, err = h.svc.SelectOffer(ctx, id, "off_cheap")
	assert.Equal(t, apperr.CodeExpired, apperr.CodeOf(err))
}

func TestSubmitPassengers(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	_, err = h.svc.SelectOffer(ctx, id, "off_cheap")
	require.NoError(t, err)

	_, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller(), traveller()})
	var mismatch *apperr.CountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Expected)

	bad := traveller()
	bad.Email = "nope"
	resp, err := h.svc.SubmitPassengers(ctx, id, []model.Passenger{bad})
	require.Error(t, err)
	assert.Equal(t, "passengers[0].email", resp.Errors[0].Field)

	resp, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller()})
	require.NoError(t, err)
	assert.Equal(t, model.StageAdditionalServices, resp.Stage)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PassengerAdult, conv.Passengers[0].Type)
}

func TestSubmitPassengersRequiresPassportAcrossBorders(t *testing.T) {
	h := newHarness(t, DefaultConfig(), rawOffer("off_intl", "500.00", "2025-04-10T06:00:00", "MX"))
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	_, err = h.svc.SelectOffer(ctx, id, "off_intl")
	require.NoError(t, err)

	resp, err := h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller()})
	require.Error(t, err)
	fields := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "passengers[0].passport_number")

	p := traveller()
	p.PassportNumber = "X1234567"
	p.PassportExpiry = "2030-01-01"
	p.Nationality = "US"
	_, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{p})
	require.NoError(t, err)
}

func TestAddServicesValidation(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()

	_, err := h.svc.AddServices(ctx, id, nil)
	assert.Equal(t, apperr.CodeStateTransition, apperr.CodeOf(err))

	_, err = h.svc.Search(ctx, id, searchParams())
	require.NoError(t, err)
	_, err = h.svc.SelectOffer(ctx, id, "off_cheap")
	require.NoError(t, err)
	_, err = h.svc.SubmitPassengers(ctx, id, []model.Passenger{traveller()})
	require.NoError(t, err)

	resp, err := h.svc.ListServices(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Data.(*model.AvailableServices).Len())

	_, err = h.svc.AddServices(ctx, id, []model.ServiceSelection{{ID: "ase_bag", Quantity: 0}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	resp, err = h.svc.AddServices(ctx, id, []model.ServiceSelection{{ID: "ase_bag", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, model.StagePayment, resp.Stage)
}

func TestBookAndCancel(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "user-1")
	ctx := WithCaller(context.Background(), "user-1")
	h.toPayment(t, ctx, id)

	resp, err := h.svc.Book(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, model.StageConfirmation, resp.Stage)
	data := resp.Data.(BookingData)
	assert.Equal(t, model.BookingConfirmed, data.Booking.Status)
	assert.Equal(t, "ABC123", data.Booking.BookingReference)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, conv.PaymentStatus)
	assert.True(t, conv.HasBooking())

	stored, err := h.svc.ListBookings(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	_, err = h.svc.PayHold(ctx, id)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	resp, err = h.svc.Cancel(ctx, id)
	require.NoError(t, err)
	data = resp.Data.(BookingData)
	assert.Equal(t, model.BookingCancelled, data.Booking.Status)
	require.NotNil(t, data.Booking.Cancellation)
	assert.Equal(t, "ore_1", data.Booking.Cancellation.CancellationID)
	assert.Equal(t, 1, h.provider.count("confirm_cancellation"))

	_, err = h.svc.Cancel(ctx, id)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestLinkedSessionHiddenFromOtherCallers(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "user-1")
	alice := WithCaller(context.Background(), "user-1")
	h.toPayment(t, alice, id)
	_, err := h.svc.Book(alice, id, false)
	require.NoError(t, err)
	before, err := h.svc.Get(alice, id)
	require.NoError(t, err)

	for name, ctx := range map[string]context.Context{
		"anonymous":  context.Background(),
		"other user": WithCaller(context.Background(), "user-2"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Get(ctx, id)
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			resp, err := h.svc.Cancel(ctx, id)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
			assert.Equal(t, string(apperr.CodeNotFound), resp.Errors[0].Code)

			_, err = h.svc.Search(ctx, id, searchParams())
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			_, err = h.svc.HandleMessage(ctx, id, "cancel my flight")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}

	assert.Zero(t, h.provider.count("create_cancellation"))
	conv, err := h.svc.Get(alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.StageConfirmation, conv.Stage)
	assert.Len(t, conv.Messages, len(before.Messages))
}

func TestBookRetriesSessionSave(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()
	h.toPayment(t, ctx, id)

	flaky := &flakySessions{SessionStore: h.sessions, failures: saveAttempts - 1}
	h.build(DefaultConfig(), flaky)

	resp, err := h.svc.Book(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, model.StageConfirmation, resp.Stage)
	assert.Equal(t, saveAttempts, flaky.saves)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ord_1", conv.OrderID)
}

func TestBookReportsUnsavedOrder(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()
	h.toPayment(t, ctx, id)

	flaky := &flakySessions{SessionStore: h.sessions, failures: saveAttempts}
	h.build(DefaultConfig(), flaky)

	resp, err := h.svc.Book(ctx, id, false)
	var unsaved *UnsavedOrderError
	require.ErrorAs(t, err, &unsaved)
	assert.Equal(t, "ord_1", unsaved.OrderID)
	assert.Equal(t, "ABC123", unsaved.BookingReference)

	assert.False(t, resp.Success)
	assert.Equal(t, model.StagePayment, resp.Stage)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "order_id", resp.Errors[0].Field)
	assert.Contains(t, resp.Errors[0].Message, "ord_1")
	data, ok := resp.Data.(BookingData)
	require.True(t, ok)
	assert.Equal(t, "ord_1", data.Booking.OrderID)

	stored, err := h.bookings.GetByOrderID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, id, stored.SessionID)
}

func TestFailedSaveWithoutOrderIsPlain(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	h.build(DefaultConfig(), &flakySessions{SessionStore: h.sessions, failures: saveAttempts})

	resp, err := h.svc.Search(context.Background(), id, searchParams())
	require.Error(t, err)
	var unsaved *UnsavedOrderError
	assert.False(t, errors.As(err, &unsaved))
	assert.Equal(t, "internal error", resp.Errors[0].Message)
}

func TestHoldThenPay(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()
	h.toPayment(t, ctx, id)

	resp, err := h.svc.Book(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, resp.Data.(BookingData).Booking.Status)

	conv, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAwaiting, conv.PaymentStatus)

	resp, err = h.svc.PayHold(ctx, id)
	require.NoError(t, err)
	data := resp.Data.(BookingData)
	assert.Equal(t, "pay_1", data.Payment.ID)
	assert.Equal(t, model.BookingConfirmed, data.Booking.Status)

	b, err := h.bookings.GetByOrderID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, b.Payment.Status)
	assert.Contains(t, h.publisher.eventTypes(), model.EventPaymentCompleted)
}

func TestBookWarnsOnPriceChange(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	ctx := context.Background()
	h.toPayment(t, ctx, id)

	cheaper := rawOffer("off_new", "180.00", "2025-04-10T06:00:00", "US")
	h.provider.listed = []provider.Offer{cheaper}

	resp, err := h.svc.Book(ctx, id, false)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warnings)
	assert.Equal(t, "price_changed", resp.Warnings[0].Code)
}

func TestBookBeforePaymentStage(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")

	resp, err := h.svc.Book(context.Background(), id, false)
	var te *apperr.StateTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "initial", te.From)
	assert.Equal(t, model.StageInitial, resp.Stage)
	assert.Zero(t, h.provider.count("create_order"))
}

func TestHandleMessageDispatchesIntent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	h.nlu.replies = []dialogue.Reply{{
		Message: "Looking for flights.",
		Intent: &dialogue.Intent{Name: dialogue.IntentSearchFlights, Arguments: map[string]any{
			"trip_type":      "one_way",
			"origin":         "JFK",
			"destination":    "LAX",
			"departure_date": "2025-04-10",
			"passengers":     map[string]any{"adults": 1},
		}},
	}}

	resp, err := h.svc.HandleMessage(context.Background(), id, "  JFK to LA on April 10  ")
	require.NoError(t, err)
	assert.Equal(t, model.StageSelection, resp.Stage)
	data := resp.Data.(MessageData)
	assert.Equal(t, dialogue.IntentSearchFlights, data.Intent)
	assert.Contains(t, resp.Message, "Looking for flights.")

	conv, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "JFK to LA on April 10", conv.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, model.StageInitial, h.nlu.contexts[0].Stage)
}

func TestHandleMessageFailedIntentKeepsTurn(t *testing.T) {
	h := newHarness(t, DefaultConfig(), defaultOffers()...)
	id := h.start(t, "")
	h.nlu.replies = []dialogue.Reply{{Intent: &dialogue.Intent{Name: dialogue.IntentBook}}}

	resp, err := h.svc.HandleMessage(context.Background(), id, "book it")
	require.NoError(t, err)
	assert.Equal(t, model.StageInitial, resp.Stage)
	failure := resp.Data.(MessageData).Result.(*model.Response)
	assert.False(t, failure.Success)
	assert.Equal(t, string(apperr.CodeStateTransition), failure.Errors[0].Code)

	conv, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
	assert.Contains(t, h.publisher.eventTypes(), model.EventError)
}

func TestHandleMessageInterpreterError(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	id := h.start(t, "")
	h.nlu.err = errors.New("llm down")

	resp, err := h.svc.HandleMessage(context.Background(), id, "hello")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "rephrase")

	_, err = h.svc.HandleMessage(context.Background(), id, "   ")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	resp, err := h.svc.Search(context.Background(), "missing", searchParams())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, string(apperr.CodeNotFound), resp.Errors[0].Code)
}

func TestPurgeExpired(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(t, "")

	later := fixedNow.Add(time.Hour)
	h.svc.now = func() time.Time { return later }
	n, err := h.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestErrorDetailsHidesInternalErrors(t *testing.T) {
	details := ErrorDetails(errors.New("dial tcp 10.0.0.1: refused"))
	require.Len(t, details, 1)
	assert.Equal(t, "internal error", details[0].Message)
	assert.Equal(t, string(apperr.CodeInternal), details[0].Code)
}
