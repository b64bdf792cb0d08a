package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

const (
	tracerName      = "github.com/capitalize-ai/flight-concierge/internal/provider"
	maxResponseSize = 32 << 20
)

// Config holds inventory provider connection settings.
type Config struct {
	BaseURL   string
	Token     string
	Version   string
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default transport. Its timeout is a backstop; callers bound
	// each operation with their own context deadline.
	HTTPClient *http.Client
}

// HTTPClient talks to the provider's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	version string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a provider client.
func NewHTTPClient(cfg Config, log *logger.Logger) *HTTPClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		version: cfg.Version,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log.Named("provider"),
	}
}

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Errors []struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateSearchRequest registers a search without returning offers inline.
func (c *HTTPClient) CreateSearchRequest(ctx context.Context, req SearchRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	query := url.Values{"return_offers": {"false"}}
	if err := c.do(ctx, "create_search", http.MethodPost, "/air/offer_requests", query, req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListOffers lists the offers of a search request.
func (c *HTTPClient) ListOffers(ctx context.Context, requestID string, opts ListOptions) ([]Offer, error) {
	query := url.Values{"offer_request_id": {requestID}}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.MaxConnections != nil {
		query.Set("max_connections", strconv.Itoa(*opts.MaxConnections))
	}

	var offers []Offer
	if err := c.do(ctx, "list_offers", http.MethodGet, "/air/offers", query, nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// GetOffer fetches the full detail of a single offer.
func (c *HTTPClient) GetOffer(ctx context.Context, offerID string, opts OfferOptions) (*Offer, error) {
	query := url.Values{}
	if opts.Services {
		query.Set("return_available_services", "true")
	}
	if opts.SeatMaps {
		query.Set("return_seat_maps", "true")
	}
	if opts.BrandAttributes {
		query.Set("return_brand_attributes", "true")
	}

	var offer Offer
	if err := c.do(ctx, "get_offer", http.MethodGet, "/air/offers/"+url.PathEscape(offerID), query, nil, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// CreateOrder books an offer.
func (c *HTTPClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/air/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches an order.
func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, "get_order", http.MethodGet, "/air/orders/"+url.PathEscape(orderID), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePayment pays for a hold order.
func (c *HTTPClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	body := struct {
		OrderID string       `json:"order_id"`
		Payment PaymentInput `json:"payment"`
	}{
		OrderID: req.OrderID,
		Payment: PaymentInput{Type: req.Type, Amount: req.Amount, Currency: req.Currency},
	}

	var payment Payment
	if err := c.do(ctx, "create_payment", http.MethodPost, "/air/payments", nil, body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateCancellation requests a cancellation for an order.
func (c *HTTPClient) CreateCancellation(ctx context.Context, orderID string) (*Cancellation, error) {
	body := map[string]string{"order_id": orderID}

	var cancellation Cancellation
	if err := c.do(ctx, "create_cancellation", http.MethodPost, "/air/order_cancellations", nil, body, &cancellation); err != nil {
		return nil, err
	}
	return &cancellation, nil
}

// ConfirmCancellation confirms a pending cancellation.
func (c *HTTPClient) ConfirmCancellation(ctx context.Context, cancellationID string) (*Cancellation, error) {
	path := "/air/order_cancellations/" + url.PathEscape(cancellationID) + "/actions/confirm"

	var cancellation Cancellation
	if err := c.do(ctx, "confirm_cancellation", http.MethodPost, path, nil, nil, &cancellation); err != nil {
		return nil, err
	}
	return &cancellation, nil
}

func (c *HTTPClient) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider %s: rate limit wait: %w", operation, err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("provider.path", path))

	start := time.Now()
	status := "success"
	defer func() {
		metrics.RecordProviderCall(operation, status, time.Since(start).Seconds())
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(envelope{Data: body})
		if err != nil {
			status = "error"
			return fmt.Errorf("provider %s: failed to marshal request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		status = "error"
		return fmt.Errorf("provider %s: failed to build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.version != "" {
		req.Header.Set("Duffel-Version", c.version)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.Warn("provider request failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("provider %s: %w", operation, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		status = "error"
		return fmt.Errorf("provider %s: failed to read response: %w", operation, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusMultipleChoices {
		status = "rejected"
		perr := decodeError(resp.StatusCode, payload)
		span.SetStatus(codes.Error, perr.Message)
		c.logger.Info("provider rejected request",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("code", perr.Code),
		)
		return perr
	}

	if out == nil {
		return nil
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		status = "error"
		return fmt.Errorf("provider %s: failed to decode response: %w", operation, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		status = "error"
		return fmt.Errorf("provider %s: failed to decode data: %w", operation, err)
	}
	return nil
}

func decodeError(status int, payload []byte) *apperr.ProviderError {
	perr := &apperr.ProviderError{Status: status, Message: http.StatusText(status)}

	var env errorEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || len(env.Errors) == 0 {
		return perr
	}
	first := env.Errors[0]
	perr.Code = first.Code
	perr.Type = first.Type
	switch {
	case first.Message != "":
		perr.Message = first.Message
	case first.Title != "":
		perr.Message = first.Title
	}
	return perr
}
