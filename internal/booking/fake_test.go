package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/flight-concierge/internal/provider"
)

// fakeProvider records calls and serves canned responses.
type fakeProvider struct {
	mu sync.Mutex

	offers      map[string]provider.Offer
	offerErrors map[string]error
	listed      []provider.Offer
	order       provider.Order
	payment     provider.Payment

	searchRequests []provider.SearchRequest
	listOptions    []provider.ListOptions
	orderRequests  []provider.OrderRequest
	payments       []provider.PaymentRequest
	calls          []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		offers:      map[string]provider.Offer{},
		offerErrors: map[string]error{},
	}
}

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProvider) CreateSearchRequest(_ context.Context, req provider.SearchRequest) (string, error) {
	f.record("create_search")
	f.mu.Lock()
	f.searchRequests = append(f.searchRequests, req)
	f.mu.Unlock()
	return "orq_1", nil
}

func (f *fakeProvider) ListOffers(_ context.Context, _ string, opts provider.ListOptions) ([]provider.Offer, error) {
	f.record("list_offers")
	f.mu.Lock()
	f.listOptions = append(f.listOptions, opts)
	f.mu.Unlock()
	return f.listed, nil
}

func (f *fakeProvider) GetOffer(_ context.Context, offerID string, _ provider.OfferOptions) (*provider.Offer, error) {
	f.record("get_offer")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offerErrors[offerID]; err != nil {
		return nil, err
	}
	o, ok := f.offers[offerID]
	if !ok {
		return nil, errors.New("offer not found")
	}
	return &o, nil
}

func (f *fakeProvider) CreateOrder(_ context.Context, req provider.OrderRequest) (*provider.Order, error) {
	f.record("create_order")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderRequests = append(f.orderRequests, req)
	order := f.order
	return &order, nil
}

func (f *fakeProvider) GetOrder(_ context.Context, _ string) (*provider.Order, error) {
	f.record("get_order")
	order := f.order
	return &order, nil
}

func (f *fakeProvider) CreatePayment(_ context.Context, req provider.PaymentRequest) (*provider.Payment, error) {
	f.record("create_payment")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, req)
	p := f.payment
	return &p, nil
}

func (f *fakeProvider) CreateCancellation(_ context.Context, orderID string) (*provider.Cancellation, error) {
	f.record("create_cancellation")
	return &provider.Cancellation{ID: "ore_1", OrderID: orderID, RefundAmount: "100.00", RefundCurrency: "USD"}, nil
}

func (f *fakeProvider) ConfirmCancellation(_ context.Context, cancellationID string) (*provider.Cancellation, error) {
	f.record("confirm_cancellation")
	return &provider.Cancellation{
		ID:             cancellationID,
		OrderID:        "ord_1",
		RefundAmount:   "100.00",
		RefundCurrency: "USD",
		ConfirmedAt:    "2025-03-01T12:05:00Z",
	}, nil
}

func (f *fakeProvider) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}
