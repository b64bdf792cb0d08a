package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration)   { c.t = c.t.Add(d) }

func newMachine(c *clock) *Machine {
	return Start("sess-1", "", 30*time.Minute, WithClock(c.now))
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]model.Stage{
		{model.StageInitial, model.StageSearch},
		{model.StageSearch, model.StageSelection},
		{model.StageSelection, model.StageAuthentication},
		{model.StageSelection, model.StagePassengerDetails},
		{model.StageAuthentication, model.StagePassengerDetails},
		{model.StageAuthentication, model.StageAdditionalServices},
		{model.StagePassengerDetails, model.StageAdditionalServices},
		{model.StageAdditionalServices, model.StagePayment},
		{model.StagePayment, model.StageConfirmation},
		{model.StageSelection, model.StageSelection},
	}
	for _, tt := range allowed {
		assert.True(t, CanTransition(tt[0], tt[1]), "%s -> %s", tt[0], tt[1])
	}

	rejected := [][2]model.Stage{
		{model.StagePayment, model.StageSelection},
		{model.StageInitial, model.StageSelection},
		{model.StageConfirmation, model.StageSearch},
		{model.StagePassengerDetails, model.StageAuthentication},
		{model.StageSelection, model.StagePayment},
		{"unknown", "unknown"},
	}
	for _, tt := range rejected {
		assert.False(t, CanTransition(tt[0], tt[1]), "%s -> %s", tt[0], tt[1])
	}
}

func TestStartInitialState(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)

	conv := m.Conversation()
	assert.Equal(t, model.StageInitial, conv.Stage)
	assert.Equal(t, model.PaymentNone, conv.PaymentStatus)
	assert.Equal(t, c.t, conv.CreatedAt)
	assert.Equal(t, c.t.Add(30*time.Minute), conv.ExpiresAt)
}

func TestTransitionRejectedLeavesStage(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)
	m.Conversation().Stage = model.StagePayment

	err := m.Transition(model.StageSelection)
	require.Error(t, err)

	var terr *apperr.StateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "payment", terr.From)
	assert.Equal(t, "selection", terr.To)
	assert.Equal(t, model.StagePayment, m.Stage())
}

func TestMutationsRefreshExpiry(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)

	c.advance(10 * time.Minute)
	require.NoError(t, m.Transition(model.StageSearch))
	assert.Equal(t, c.t.Add(30*time.Minute), m.Conversation().ExpiresAt)

	c.advance(5 * time.Minute)
	m.AppendMessage(model.RoleUser, "hello")
	assert.Equal(t, c.t.Add(30*time.Minute), m.Conversation().ExpiresAt)

	c.advance(5 * time.Minute)
	m.SetSearch(model.FlightSearchParams{Origin: "JFK", Destination: "LHR"}, nil)
	assert.Equal(t, c.t.Add(30*time.Minute), m.Conversation().ExpiresAt)
	assert.Equal(t, c.t, m.Conversation().UpdatedAt)
}

func TestAppendMessage(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)

	msg := m.AppendMessage(model.RoleAssistant, "Where to?")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "sess-1", msg.SessionID)
	require.Len(t, m.Conversation().Messages, 1)
	assert.Equal(t, "Where to?", m.Conversation().Messages[0].Content)
}

func TestSearchHistoryIsBounded(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := Start("sess-1", "", time.Hour, WithClock(c.now), WithLimits(Limits{SearchHistory: 3}))

	for i := 0; i < 5; i++ {
		m.SetSearch(model.FlightSearchParams{Origin: fmt.Sprintf("A%02d", i)}, nil)
	}

	history := m.Conversation().SearchHistory
	require.Len(t, history, 3)
	assert.Equal(t, "A02", history[0].Params.Origin)
	assert.Equal(t, "A04", history[2].Params.Origin)
}

func TestViewedOffersDeduplicatedAndBounded(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := Start("sess-1", "", time.Hour, WithClock(c.now), WithLimits(Limits{ViewedOffers: 3}))

	m.MarkViewed("a", "b", "c")
	m.MarkViewed("a", "d")

	assert.Equal(t, []string{"c", "a", "d"}, m.Conversation().ViewedOfferIDs)
}

func TestSelectOfferRejectsOtherPresented(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)

	offers := []model.Offer{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	m.SetSearch(model.FlightSearchParams{}, offers)
	m.Present(offers)

	found, ok := m.FindResult("b")
	require.True(t, ok)
	m.SelectOffer(found)

	assert.Equal(t, "b", m.Conversation().SelectedOffer.ID)
	assert.Equal(t, []string{"a", "c"}, m.Conversation().RejectedOfferIDs)
	assert.Equal(t, []string{"a", "b", "c"}, m.Conversation().ViewedOfferIDs)

	_, ok = m.FindResult("zzz")
	assert.False(t, ok)
}

func TestSetSearchClearsSelection(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)
	m.SelectOffer(model.Offer{ID: "old"})

	m.SetSearch(model.FlightSearchParams{Origin: "JFK"}, []model.Offer{{ID: "new"}})

	assert.Nil(t, m.Conversation().SelectedOffer)
	assert.Equal(t, "JFK", m.Conversation().SearchParams.Origin)
}

func TestRequire(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newMachine(c)

	assert.NoError(t, m.Require(model.StageSearch, model.StageInitial, model.StageSelection))
	assert.Error(t, m.Require(model.StageConfirmation, model.StagePayment))
}
