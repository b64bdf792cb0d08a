// Package conversation holds the booking stage state machine and the mutations of a
// conversation's state.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

var transitions = map[model.Stage]map[model.Stage]struct{}{
	model.StageInitial: {
		model.StageSearch: {},
	},
	model.StageSearch: {
		model.StageSelection: {},
	},
	model.StageSelection: {
		model.StageAuthentication:   {},
		model.StagePassengerDetails: {},
	},
	model.StageAuthentication: {
		model.StagePassengerDetails:   {},
		model.StageAdditionalServices: {},
	},
	model.StagePassengerDetails: {
		model.StageAdditionalServices: {},
	},
	model.StageAdditionalServices: {
		model.StagePayment: {},
	},
	model.StagePayment: {
		model.StageConfirmation: {},
	},
	model.StageConfirmation: {},
}

// CanTransition reports whether a conversation in stage from may move to stage to.
// Staying in the same stage is always allowed.
func CanTransition(from, to model.Stage) bool {
	if from == to {
		_, known := transitions[from]
		return known
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Limits bounds the per-session history lists.
type Limits struct {
	SearchHistory  int
	ViewedOffers   int
	RejectedOffers int
}

// DefaultLimits are used when a Limits field is zero.
var DefaultLimits = Limits{SearchHistory: 10, ViewedOffers: 50, RejectedOffers: 50}

// Machine drives one conversation. It is not safe for concurrent use; callers serialize
// access per session.
type Machine struct {
	conv   *model.Conversation
	ttl    time.Duration
	limits Limits
	now    func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLimits overrides the history caps.
func WithLimits(l Limits) Option {
	return func(m *Machine) {
		if l.SearchHistory > 0 {
			m.limits.SearchHistory = l.SearchHistory
		}
		if l.ViewedOffers > 0 {
			m.limits.ViewedOffers = l.ViewedOffers
		}
		if l.RejectedOffers > 0 {
			m.limits.RejectedOffers = l.RejectedOffers
		}
	}
}

// New wraps conv. ttl is the inactivity window refreshed on every mutation.
func New(conv *model.Conversation, ttl time.Duration, opts ...Option) *Machine {
	m := &Machine{conv: conv, ttl: ttl, limits: DefaultLimits, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a conversation in the initial stage.
func Start(sessionID, userID string, ttl time.Duration, opts ...Option) *Machine {
	m := New(&model.Conversation{
		SessionID:     sessionID,
		UserID:        userID,
		Stage:         model.StageInitial,
		Messages:      []model.Message{},
		PaymentStatus: model.PaymentNone,
	}, ttl, opts...)

	m.conv.CreatedAt = m.now()
	m.touch()
	return m
}

// Conversation returns the underlying state.
func (m *Machine) Conversation() *model.Conversation { return m.conv }

// Stage returns the current stage.
func (m *Machine) Stage() model.Stage { return m.conv.Stage }

// CanTransition reports whether the conversation may move to target.
func (m *Machine) CanTransition(target model.Stage) bool {
	return CanTransition(m.conv.Stage, target)
}

// Transition moves the conversation to target. A rejected transition leaves the stage
// untouched and returns an *apperr.StateTransitionError.
func (m *Machine) Transition(target model.Stage) error {
	if !m.CanTransition(target) {
		return &apperr.StateTransitionError{From: string(m.conv.Stage), To: string(target)}
	}
	m.conv.Stage = target
	m.touch()
	return nil
}

// Require returns a StateTransitionError unless the conversation is in one of stages.
func (m *Machine) Require(target model.Stage, stages ...model.Stage) error {
	for _, s := range stages {
		if m.conv.Stage == s {
			return nil
		}
	}
	return &apperr.StateTransitionError{From: string(m.conv.Stage), To: string(target)}
}

// AppendMessage adds a message to the log and returns it.
func (m *Machine) AppendMessage(role model.Role, content string) model.Message {
	msg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: m.conv.SessionID,
		Role:      role,
		Content:   content,
		CreatedAt: m.now(),
	}
	m.conv.Messages = append(m.conv.Messages, msg)
	m.touch()
	return msg
}

// SetSearch stores the params and full result list of a search, replacing any previous
// results and selection, and records it in the bounded history.
func (m *Machine) SetSearch(params model.FlightSearchParams, results []model.Offer) {
	p := params
	m.conv.SearchParams = &p
	m.conv.SearchResults = results
	m.conv.PresentedOfferIDs = nil
	m.conv.SelectedOffer = nil

	m.conv.SearchHistory = append(m.conv.SearchHistory, model.SearchRecord{
		Params:      params,
		ResultCount: len(results),
		SearchedAt:  m.now(),
	})
	m.conv.SearchHistory = tail(m.conv.SearchHistory, m.limits.SearchHistory)
	m.touch()
}

// Present records the offers shown to the user.
func (m *Machine) Present(offers []model.Offer) {
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.ID)
	}
	m.conv.PresentedOfferIDs = ids
	m.MarkViewed(ids...)
}

// MarkViewed tracks offers the user has seen.
func (m *Machine) MarkViewed(ids ...string) {
	m.conv.ViewedOfferIDs = tail(appendUnique(m.conv.ViewedOfferIDs, ids...), m.limits.ViewedOffers)
	m.touch()
}

// MarkRejected tracks offers the user passed over.
func (m *Machine) MarkRejected(ids ...string) {
	m.conv.RejectedOfferIDs = tail(appendUnique(m.conv.RejectedOfferIDs, ids...), m.limits.RejectedOffers)
	m.touch()
}

// FindResult returns the stored search result with the given id.
func (m *Machine) FindResult(offerID string) (model.Offer, bool) {
	for _, o := range m.conv.SearchResults {
		if o.ID == offerID {
			return o, true
		}
	}
	return model.Offer{}, false
}

// SelectOffer stores the chosen offer. The other presented offers are marked rejected.
func (m *Machine) SelectOffer(o model.Offer) {
	m.conv.SelectedOffer = &o

	var rejected []string
	for _, id := range m.conv.PresentedOfferIDs {
		if id != o.ID {
			rejected = append(rejected, id)
		}
	}
	if len(rejected) > 0 {
		m.MarkRejected(rejected...)
	}
	m.touch()
}

// SetPassengers stores the booking passengers.
func (m *Machine) SetPassengers(passengers []model.Passenger) {
	m.conv.Passengers = passengers
	m.touch()
}

// SetServices stores the selected ancillaries.
func (m *Machine) SetServices(selections []model.ServiceSelection) {
	m.conv.SelectedServices = selections
	m.touch()
}

// LinkUser attaches an authenticated user.
func (m *Machine) LinkUser(userID string) {
	m.conv.UserID = userID
	m.touch()
}

// RecordOrder stores the outcome of an order creation.
func (m *Machine) RecordOrder(orderID, bookingReference string, status model.PaymentStatus) {
	m.conv.OrderID = orderID
	m.conv.BookingReference = bookingReference
	m.conv.PaymentStatus = status
	m.touch()
}

// SetPaymentStatus updates the payment status of the order.
func (m *Machine) SetPaymentStatus(status model.PaymentStatus) {
	m.conv.PaymentStatus = status
	m.touch()
}

func (m *Machine) touch() {
	now := m.now()
	m.conv.UpdatedAt = now
	m.conv.ExpiresAt = now.Add(m.ttl)
}

func appendUnique(list []string, ids ...string) []string {
	for _, id := range ids {
		for i, existing := range list {
			if existing == id {
				// Move to the end so the most recent survives trimming.
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		list = append(list, id)
	}
	return list
}

func tail[T any](list []T, limit int) []T {
	if limit <= 0 || len(list) <= limit {
		return list
	}
	out := make([]T, limit)
	copy(out, list[len(list)-limit:])
	return out
}
