// Package provider defines the flight-inventory provider contract and its raw wire types.
// Nothing outside internal/offer and internal/booking should read these types; they are
// normalized into internal/model at the boundary.
package provider

import (
	"context"
)

// Client is the subset of the inventory provider API the booking core depends on.
type Client interface {
	// CreateSearchRequest registers a search and returns its request id.
	CreateSearchRequest(ctx context.Context, req SearchRequest) (string, error)

	// ListOffers lists the offers of a search request.
	ListOffers(ctx context.Context, requestID string, opts ListOptions) ([]Offer, error)

	// GetOffer fetches the full detail of a single offer.
	GetOffer(ctx context.Context, offerID string, opts OfferOptions) (*Offer, error)

	// CreateOrder books an offer, paid or on hold.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// GetOrder fetches the current state of an order.
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// CreatePayment pays for a hold order.
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)

	// CreateCancellation requests a cancellation quote for an order.
	CreateCancellation(ctx context.Context, orderID string) (*Cancellation, error)

	// ConfirmCancellation confirms a cancellation request.
	ConfirmCancellation(ctx context.Context, cancellationID string) (*Cancellation, error)
}

// Sort orders accepted by ListOffers.
const (
	SortTotalAmount   = "total_amount"
	SortTotalDuration = "total_duration"
)

// Order types.
const (
	OrderTypeInstant = "instant"
	OrderTypeHold    = "hold"
)

// PaymentTypeBalance pays from the agency balance held with the provider.
const PaymentTypeBalance = "balance"

// SearchRequest describes a provider search.
type SearchRequest struct {
	Slices         []SearchSlice     `json:"slices"`
	Passengers     []SearchPassenger `json:"passengers"`
	CabinClass     string            `json:"cabin_class,omitempty"`
	MaxConnections *int              `json:"max_connections,omitempty"`
}

// SearchSlice is one hop of a search.
type SearchSlice struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate string     `json:"departure_date"`
	DepartureTime *TimeRange `json:"departure_time,omitempty"`
	ArrivalTime   *TimeRange `json:"arrival_time,omitempty"`
}

// TimeRange is an HH:MM window.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SearchPassenger is a passenger shape for a search.
type SearchPassenger struct {
	Type string `json:"type,omitempty"`
	Age  *int   `json:"age,omitempty"`
}

// ListOptions controls offer listing.
type ListOptions struct {
	Sort           string
	Limit          int
	MaxConnections *int
}

// OfferOptions controls which details GetOffer returns.
type OfferOptions struct {
	Services        bool
	SeatMaps        bool
	BrandAttributes bool
}

// Offer is the raw provider offer.
type Offer struct {
	ID                  string               `json:"id"`
	TotalAmount         string               `json:"total_amount"`
	TotalCurrency       string               `json:"total_currency"`
	ExpiresAt           string               `json:"expires_at"`
	CabinClass          string               `json:"cabin_class,omitempty"`
	Owner               Carrier              `json:"owner"`
	Slices              []Slice              `json:"slices"`
	Passengers          []OfferPassenger     `json:"passengers"`
	Conditions          Conditions           `json:"conditions"`
	PaymentRequirements *PaymentRequirements `json:"payment_requirements,omitempty"`
	AvailableServices   []Service            `json:"available_services,omitempty"`
}

// OfferPassenger is a passenger slot issued with an offer.
type OfferPassenger struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Age  *int   `json:"age,omitempty"`
}

// Conditions holds fare rules.
type Conditions struct {
	RefundBeforeDeparture *Condition `json:"refund_before_departure"`
	ChangeBeforeDeparture *Condition `json:"change_before_departure"`
}

// Condition is a single fare rule.
type Condition struct {
	Allowed         bool   `json:"allowed"`
	PenaltyAmount   string `json:"penalty_amount,omitempty"`
	PenaltyCurrency string `json:"penalty_currency,omitempty"`
}

// PaymentRequirements describes whether an offer can be held.
type PaymentRequirements struct {
	RequiresInstantPayment bool   `json:"requires_instant_payment"`
	PaymentRequiredBy      string `json:"payment_required_by,omitempty"`
}

// Slice is a raw slice.
type Slice struct {
	ID          string    `json:"id"`
	Origin      Place     `json:"origin"`
	Destination Place     `json:"destination"`
	DepartingAt string    `json:"departing_at,omitempty"`
	ArrivingAt  string    `json:"arriving_at,omitempty"`
	Duration    string    `json:"duration"`
	Segments    []Segment `json:"segments"`
}

// Place is a raw airport.
type Place struct {
	IATACode        string `json:"iata_code"`
	Name            string `json:"name"`
	CityName        string `json:"city_name"`
	IATACountryCode string `json:"iata_country_code"`
	TimeZone        string `json:"time_zone"`
}

// Carrier is a raw airline.
type Carrier struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

// Aircraft is a raw aircraft.
type Aircraft struct {
	Name string `json:"name"`
}

// Segment is a raw flight.
type Segment struct {
	ID                           string             `json:"id"`
	Origin                       Place              `json:"origin"`
	Destination                  Place              `json:"destination"`
	OriginTerminal               string             `json:"origin_terminal"`
	DestinationTerminal          string             `json:"destination_terminal"`
	DepartingAt                  string             `json:"departing_at"`
	ArrivingAt                   string             `json:"arriving_at"`
	Duration                     string             `json:"duration"`
	OperatingCarrier             Carrier            `json:"operating_carrier"`
	MarketingCarrier             Carrier            `json:"marketing_carrier"`
	MarketingCarrierFlightNumber string             `json:"marketing_carrier_flight_number"`
	OperatingCarrierFlightNumber string             `json:"operating_carrier_flight_number"`
	Aircraft                     *Aircraft          `json:"aircraft"`
	Passengers                   []SegmentPassenger `json:"passengers"`
}

// SegmentPassenger carries per-passenger segment detail.
type SegmentPassenger struct {
	PassengerID string    `json:"passenger_id"`
	CabinClass  string    `json:"cabin_class"`
	Baggages    []Baggage `json:"baggages"`
}

// Baggage is an included bag.
type Baggage struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// Service is a raw available service. Metadata shape depends on Type.
type Service struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	TotalAmount     string         `json:"total_amount"`
	TotalCurrency   string         `json:"total_currency"`
	MaximumQuantity int            `json:"maximum_quantity"`
	SegmentIDs      []string       `json:"segment_ids"`
	PassengerIDs    []string       `json:"passenger_ids"`
	Metadata        map[string]any `json:"metadata"`
}

// OrderRequest creates an order.
type OrderRequest struct {
	Type           string           `json:"type"`
	SelectedOffers []string         `json:"selected_offers"`
	Passengers     []OrderPassenger `json:"passengers"`
	Payments       []PaymentInput   `json:"payments,omitempty"`
	Services       []ServiceInput   `json:"services,omitempty"`
}

// OrderPassenger is a passenger submitted with an order.
type OrderPassenger struct {
	ID                string             `json:"id"`
	Title             string             `json:"title,omitempty"`
	GivenName         string             `json:"given_name"`
	FamilyName        string             `json:"family_name"`
	BornOn            string             `json:"born_on"`
	Gender            string             `json:"gender"`
	Email             string             `json:"email"`
	PhoneNumber       string             `json:"phone_number"`
	IdentityDocuments []IdentityDocument `json:"identity_documents,omitempty"`
}

// IdentityDocument is a travel document.
type IdentityDocument struct {
	Type               string `json:"type"`
	UniqueIdentifier   string `json:"unique_identifier"`
	ExpiresOn          string `json:"expires_on"`
	IssuingCountryCode string `json:"issuing_country_code"`
}

// PaymentInput pays for an order at creation.
type PaymentInput struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// ServiceInput adds a service to an order.
type ServiceInput struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Order is a raw order.
type Order struct {
	ID               string          `json:"id"`
	BookingReference string          `json:"booking_reference"`
	TotalAmount      string          `json:"total_amount"`
	TotalCurrency    string          `json:"total_currency"`
	PaymentStatus    OrderPayment    `json:"payment_status"`
	CancelledAt      string          `json:"cancelled_at,omitempty"`
	CreatedAt        string          `json:"created_at"`
	Slices           []Slice         `json:"slices"`
	Passengers       []OrderTraveler `json:"passengers"`
}

// OrderPayment is the payment state of an order.
type OrderPayment struct {
	AwaitingPayment   bool   `json:"awaiting_payment"`
	PaymentRequiredBy string `json:"payment_required_by,omitempty"`
	PaidAt            string `json:"paid_at,omitempty"`
}

// OrderTraveler is a passenger as returned on an order.
type OrderTraveler struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// PaymentRequest pays for a hold order.
type PaymentRequest struct {
	OrderID  string `json:"order_id"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Payment is a raw payment.
type Payment struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
}

// Cancellation is a raw order cancellation.
type Cancellation struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	RefundAmount   string `json:"refund_amount"`
	RefundCurrency string `json:"refund_currency"`
	RefundTo       string `json:"refund_to"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	ConfirmedAt    string `json:"confirmed_at,omitempty"`
}
