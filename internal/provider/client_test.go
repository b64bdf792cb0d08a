package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{BaseURL: srv.URL, Token: "test-token", Version: "v2"}, logger.NewNop())
}

func TestCreateSearchRequest(t *testing.T) {
	maxConn := 1
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/air/offer_requests", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("return_offers"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "v2", r.Header.Get("Duffel-Version"))

		var body struct {
			Data SearchRequest `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "LHR", body.Data.Slices[0].Destination)
		assert.Equal(t, 1, *body.Data.MaxConnections)

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"orq_123"}}`)
	})

	id, err := client.CreateSearchRequest(context.Background(), SearchRequest{
		Slices:         []SearchSlice{{Origin: "JFK", Destination: "LHR", DepartureDate: "2025-04-10"}},
		Passengers:     []SearchPassenger{{Type: "adult"}},
		CabinClass:     "economy",
		MaxConnections: &maxConn,
	})
	require.NoError(t, err)
	assert.Equal(t, "orq_123", id)
}

func TestListOffers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air/offers", r.URL.Path)
		assert.Equal(t, "orq_123", r.URL.Query().Get("offer_request_id"))
		assert.Equal(t, "total_amount", r.URL.Query().Get("sort"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"data":[{"id":"off_1","total_amount":"120.50","total_currency":"USD"},{"id":"off_2","total_amount":"99.00","total_currency":"USD"}]}`)
	})

	offers, err := client.ListOffers(context.Background(), "orq_123", ListOptions{Sort: SortTotalAmount, Limit: 50})
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "120.50", offers[0].TotalAmount)
}

func TestGetOfferRequestsServices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air/offers/off_1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("return_available_services"))
		assert.Empty(t, r.URL.Query().Get("return_seat_maps"))
		io.WriteString(w, `{"data":{"id":"off_1","available_services":[{"id":"ase_1","type":"baggage","total_amount":"30.00","total_currency":"USD","maximum_quantity":2,"metadata":{"type":"checked","maximum_weight_kg":23}}]}}`)
	})

	offer, err := client.GetOffer(context.Background(), "off_1", OfferOptions{Services: true})
	require.NoError(t, err)
	require.Len(t, offer.AvailableServices, 1)
	assert.Equal(t, "checked", offer.AvailableServices[0].Metadata["type"])
}

func TestProviderErrorDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errors":[{"code":"offer_no_longer_available","type":"invalid_state_error","title":"Offer gone","message":"The offer is no longer available"}]}`)
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{Type: OrderTypeInstant, SelectedOffers: []string{"off_1"}})
	require.Error(t, err)

	var perr *apperr.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.Status)
	assert.Equal(t, "offer_no_longer_available", perr.Code)
	assert.Equal(t, "invalid_state_error", perr.Type)
	assert.Equal(t, "The offer is no longer available", perr.Message)
}

func TestProviderErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetOrder(context.Background(), "ord_1")
	var perr *apperr.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Bad Gateway", perr.Message)
}

func TestCancellationFlowPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		io.WriteString(w, `{"data":{"id":"ore_1","order_id":"ord_1","refund_amount":"90.00","refund_currency":"USD"}}`)
	})

	created, err := client.CreateCancellation(context.Background(), "ord_1")
	require.NoError(t, err)
	_, err = client.ConfirmCancellation(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"/air/order_cancellations", "/air/order_cancellations/ore_1/actions/confirm"}, paths)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetOrder(ctx, "ord_1")
	assert.ErrorIs(t, err, context.Canceled)
}
