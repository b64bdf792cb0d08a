package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/capitalize-ai/flight-concierge/internal/dialogue"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
	"github.com/capitalize-ai/flight-concierge/internal/store"
)

type stubProvider struct {
	mu sync.Mutex

	listed    []provider.Offer
	offers    map[string]provider.Offer
	order     provider.Order
	searchErr error
	calls     map[string]int
}

func newStubProvider(offers ...provider.Offer) *stubProvider {
	p := &stubProvider{offers: map[string]provider.Offer{}, calls: map[string]int{}, listed: offers}
	for _, o := range offers {
		p.offers[o.ID] = o
	}
	return p
}

func (p *stubProvider) hit(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[call]++
}

func (p *stubProvider) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[call]
}

func (p *stubProvider) CreateSearchRequest(context.Context, provider.SearchRequest) (string, error) {
	p.hit("create_search")
	if p.searchErr != nil {
		return "", p.searchErr
	}
	return "orq_1", nil
}

func (p *stubProvider) ListOffers(context.Context, string, provider.ListOptions) ([]provider.Offer, error) {
	p.hit("list_offers")
	return p.listed, nil
}

func (p *stubProvider) GetOffer(_ context.Context, offerID string, _ provider.OfferOptions) (*provider.Offer, error) {
	p.hit("get_offer")
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.offers[offerID]
	if !ok {
		return nil, errors.New("offer not found")
	}
	return &o, nil
}

func (p *stubProvider) CreateOrder(_ context.Context, req provider.OrderRequest) (*provider.Order, error) {
	p.hit("create_order")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order.PaymentStatus.AwaitingPayment = req.Type == provider.OrderTypeHold
	o := p.order
	return &o, nil
}

func (p *stubProvider) GetOrder(context.Context, string) (*provider.Order, error) {
	p.hit("get_order")
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.order
	return &o, nil
}

func (p *stubProvider) CreatePayment(_ context.Context, req provider.PaymentRequest) (*provider.Payment, error) {
	p.hit("create_payment")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order.PaymentStatus.AwaitingPayment = false
	return &provider.Payment{ID: "pay_1", Amount: req.Amount, Currency: req.Currency, CreatedAt: "2025-03-01T12:10:00Z"}, nil
}

func (p *stubProvider) CreateCancellation(_ context.Context, orderID string) (*provider.Cancellation, error) {
	p.hit("create_cancellation")
	return &provider.Cancellation{ID: "ore_1", OrderID: orderID, RefundAmount: "200.00", RefundCurrency: "USD"}, nil
}

func (p *stubProvider) ConfirmCancellation(_ context.Context, id string) (*provider.Cancellation, error) {
	p.hit("confirm_cancellation")
	return &provider.Cancellation{
		ID:             id,
		OrderID:        "ord_1",
		RefundAmount:   "200.00",
		RefundCurrency: "USD",
		ConfirmedAt:    "2025-03-01T12:20:00Z",
	}, nil
}

func rawOffer(id, amount, departAt, destinationCountry string) provider.Offer {
	return provider.Offer{
		ID:            id,
		TotalAmount:   amount,
		TotalCurrency: "USD",
		ExpiresAt:     "2025-03-02T12:00:00Z",
		Owner:         provider.Carrier{IATACode: "AA", Name: "American Airlines"},
		Slices: []provider.Slice{{
			ID:          "sl_" + id,
			Origin:      provider.Place{IATACode: "JFK", IATACountryCode: "US"},
			Destination: provider.Place{IATACode: "LAX", IATACountryCode: destinationCountry},
			Duration:    "PT6H",
			Segments: []provider.Segment{{
				ID:               "seg_" + id,
				Origin:           provider.Place{IATACode: "JFK", IATACountryCode: "US"},
				Destination:      provider.Place{IATACode: "LAX", IATACountryCode: destinationCountry},
				DepartingAt:      departAt,
				ArrivingAt:       departAt,
				Duration:         "PT6H",
				OperatingCarrier: provider.Carrier{IATACode: "AA", Name: "American Airlines"},
			}},
		}},
		Passengers: []provider.OfferPassenger{{ID: "pas_1", Type: "adult"}},
		AvailableServices: []provider.Service{{
			ID:              "ase_bag",
			Type:            "baggage",
			TotalAmount:     "40.00",
			TotalCurrency:   "USD",
			MaximumQuantity: 2,
			Metadata:        map[string]any{"type": "checked", "maximum_weight_kg": 23},
		}},
	}
}

// scriptedInterpreter returns queued replies in order.
type scriptedInterpreter struct {
	replies  []dialogue.Reply
	err      error
	contexts []dialogue.SanitizedContext
}

func (i *scriptedInterpreter) Interpret(_ context.Context, sc dialogue.SanitizedContext, _ []model.Message) (dialogue.Reply, error) {
	i.contexts = append(i.contexts, sc)
	if i.err != nil {
		return dialogue.Reply{}, i.err
	}
	if len(i.replies) == 0 {
		return dialogue.Reply{}, fmt.Errorf("no scripted reply")
	}
	r := i.replies[0]
	i.replies = i.replies[1:]
	return r, nil
}

// recordingPublisher keeps everything published.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []model.Message
	events   []model.ConversationEvent
}

func (p *recordingPublisher) PublishMessage(_ context.Context, msg *model.Message) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, *msg)
	return uint64(len(p.messages) + len(p.events)), nil
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return uint64(len(p.messages) + len(p.events)), nil
}

func (p *recordingPublisher) eventTypes() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakySessions fails the next failures saves, then behaves like the wrapped store.
type flakySessions struct {
	store.SessionStore
	failures int
	saves    int
}

func (f *flakySessions) Save(ctx context.Context, conv *model.Conversation) error {
	f.saves++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	return f.SessionStore.Save(ctx, conv)
}
