// Package booking orchestrates search, enrichment, order creation, hold payment and
// cancellation against the inventory provider.
package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

// Config holds orchestrator settings.
type Config struct {
	RequestTimeout         time.Duration
	SearchTimeout          time.Duration
	MultiCitySearchTimeout time.Duration
	SearchLimit            int
	EnrichConcurrency      int
	DefaultCountryCode     string
	FallbackGender         string
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:         30 * time.Second,
		SearchTimeout:          60 * time.Second,
		MultiCitySearchTimeout: 120 * time.Second,
		SearchLimit:            50,
		EnrichConcurrency:      5,
		DefaultCountryCode:     "1",
	}
}

// Orchestrator is the booking core's gateway to the provider.
type Orchestrator struct {
	provider provider.Client
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(client provider.Client, cfg Config, log *logger.Logger, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.MultiCitySearchTimeout <= 0 {
		cfg.MultiCitySearchTimeout = def.MultiCitySearchTimeout
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = def.EnrichConcurrency
	}
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = def.DefaultCountryCode
	}

	o := &Orchestrator{
		provider: client,
		cfg:      cfg,
		logger:   log.Named("booking"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search runs a provider search for validated params and returns the normalized offers
// sorted by total amount.
func (o *Orchestrator) Search(ctx context.Context, params model.FlightSearchParams) ([]model.Offer, error) {
	timeout := o.cfg.SearchTimeout
	if params.TripType == model.TripMultiCity {
		timeout = o.cfg.MultiCitySearchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := buildSearchRequest(params)

	requestID, err := o.provider.CreateSearchRequest(ctx, req)
	if err != nil {
		metrics.RecordSearch(string(params.TripType), "error", 0)
		return nil, fmt.Errorf("create search request: %w", err)
	}

	raw, err := o.provider.ListOffers(ctx, requestID, provider.ListOptions{
		Sort:           provider.SortTotalAmount,
		Limit:          o.cfg.SearchLimit,
		MaxConnections: params.MaxConnections,
	})
	if err != nil {
		metrics.RecordSearch(string(params.TripType), "error", 0)
		return nil, fmt.Errorf("list offers: %w", err)
	}

	offers := offer.Normalize(raw)
	metrics.RecordSearch(string(params.TripType), "success", len(offers))

	o.logger.Info("search completed",
		zap.String("trip_type", string(params.TripType)),
		zap.String("request_id", requestID),
		zap.Int("offers", len(offers)),
	)
	return offers, nil
}

// RefreshOffer searches again with the slices, passenger shape and cabin of an offer and
// returns the cheapest result. The given offer is not modified.
func (o *Orchestrator) RefreshOffer(ctx context.Context, original model.Offer) (model.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()

	req := provider.SearchRequest{CabinClass: string(original.CabinClass)}
	for _, s := range original.Slices {
		req.Slices = append(req.Slices, provider.SearchSlice{
			Origin:        s.Origin.Code,
			Destination:   s.Destination.Code,
			DepartureDate: s.DepartingAt.Format("2006-01-02"),
		})
	}
	for _, p := range original.Passengers {
		req.Passengers = append(req.Passengers, provider.SearchPassenger{Type: string(p.Type)})
	}

	requestID, err := o.provider.CreateSearchRequest(ctx, req)
	if err != nil {
		return model.Offer{}, fmt.Errorf("refresh offer %s: %w", original.ID, err)
	}
	raw, err := o.provider.ListOffers(ctx, requestID, provider.ListOptions{Sort: provider.SortTotalAmount, Limit: 1})
	if err != nil {
		return model.Offer{}, fmt.Errorf("refresh offer %s: %w", original.ID, err)
	}

	offers := offer.Normalize(raw)
	if len(offers) == 0 {
		return model.Offer{}, &apperr.NotFoundError{Resource: "offer", ID: original.ID}
	}

	cheapest := offers[0]
	for _, candidate := range offers[1:] {
		if candidate.Total.Amount < cheapest.Total.Amount {
			cheapest = candidate
		}
	}
	return cheapest, nil
}

// GetOffer fetches the full detail of an offer, including its available services.
func (o *Orchestrator) GetOffer(ctx context.Context, offerID string) (model.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	raw, err := o.provider.GetOffer(ctx, offerID, provider.OfferOptions{Services: true})
	if err != nil {
		return model.Offer{}, fmt.Errorf("get offer %s: %w", offerID, err)
	}

	detail := offer.NormalizeOne(*raw)
	if detail.Services == nil {
		detail.Services = &model.AvailableServices{}
	}
	return detail, nil
}

// GetOfferServices fetches the available services of an offer.
func (o *Orchestrator) GetOfferServices(ctx context.Context, offerID string) (*model.AvailableServices, error) {
	detail, err := o.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return detail.Services, nil
}

func buildSearchRequest(params model.FlightSearchParams) provider.SearchRequest {
	req := provider.SearchRequest{
		CabinClass:     string(params.CabinClass),
		MaxConnections: params.MaxConnections,
	}

	for i, leg := range params.Legs() {
		slice := provider.SearchSlice{
			Origin:        leg.Origin,
			Destination:   leg.Destination,
			DepartureDate: leg.DepartureDate,
		}
		// Time preferences describe the outbound journey.
		if i == 0 {
			slice.DepartureTime = timeRange(params.DepartureTime)
			slice.ArrivalTime = timeRange(params.ArrivalTime)
		}
		req.Slices = append(req.Slices, slice)
	}

	add := func(n int, t model.PassengerType) {
		for i := 0; i < n; i++ {
			req.Passengers = append(req.Passengers, provider.SearchPassenger{Type: string(t)})
		}
	}
	add(params.Passengers.Adults, model.PassengerAdult)
	add(params.Passengers.Children, model.PassengerChild)
	add(params.Passengers.Infants, model.PassengerInfant)

	return req
}

func timeRange(w *model.TimeWindow) *provider.TimeRange {
	if w == nil {
		return nil
	}
	return &provider.TimeRange{From: w.From, To: w.To}
}
