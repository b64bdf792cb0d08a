// Package validator checks search and passenger input before any provider call is made.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

const (
	dateLayout = "2006-01-02"

	maxPassengers     = 9
	maxConnections    = 3
	nearDepartureDays = 2
	farDepartureDays  = 365
)

var (
	airportCodePattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	clockPattern       = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Result is the outcome of a validation. Warnings never block.
type Result struct {
	Errors   []apperr.FieldError `json:"errors,omitempty"`
	Warnings []apperr.FieldError `json:"warnings,omitempty"`
}

// Valid reports whether there are no errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns the errors as a *apperr.ValidationError, or nil.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &apperr.ValidationError{Fields: r.Errors}
}

// HasError reports whether field carries an error.
func (r Result) HasError(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (r *Result) addError(field, format string, args ...any) {
	r.Errors = append(r.Errors, apperr.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarning(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, apperr.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validator is stateless apart from its clock.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the reference time used for past/future checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Canonicalize trims and upper-cases airport codes and fills the trip type and cabin
// defaults. It does not validate.
func Canonicalize(p model.FlightSearchParams) model.FlightSearchParams {
	p.Origin = strings.ToUpper(strings.TrimSpace(p.Origin))
	p.Destination = strings.ToUpper(strings.TrimSpace(p.Destination))
	p.DepartureDate = strings.TrimSpace(p.DepartureDate)
	p.ReturnDate = strings.TrimSpace(p.ReturnDate)

	if p.TripType == "" {
		switch {
		case len(p.AdditionalStops) > 0:
			p.TripType = model.TripMultiCity
		case p.ReturnDate != "":
			p.TripType = model.TripRoundTrip
		default:
			p.TripType = model.TripOneWay
		}
	}
	if p.CabinClass == "" {
		p.CabinClass = model.CabinEconomy
	}

	if len(p.AdditionalStops) > 0 {
		stops := make([]model.Leg, len(p.AdditionalStops))
		for i, s := range p.AdditionalStops {
			stops[i] = model.Leg{
				Origin:        strings.ToUpper(strings.TrimSpace(s.Origin)),
				Destination:   strings.ToUpper(strings.TrimSpace(s.Destination)),
				DepartureDate: strings.TrimSpace(s.DepartureDate),
			}
		}
		p.AdditionalStops = stops
	}
	return p
}

// ValidateSearch checks search parameters.
func (v *Validator) ValidateSearch(p model.FlightSearchParams) Result {
	var r Result
	today := dateOf(v.now())

	switch p.TripType {
	case model.TripOneWay, model.TripRoundTrip, model.TripMultiCity:
	default:
		r.addError("trip_type", "must be one of one_way, round_trip, multi_city")
	}

	switch p.CabinClass {
	case "", model.CabinEconomy, model.CabinPremiumEconomy, model.CabinBusiness, model.CabinFirst:
	default:
		r.addError("cabin_class", "must be one of economy, premium_economy, business, first")
	}

	validateRoute(&r, "", p.Origin, p.Destination)
	departure, ok := validateDate(&r, "departure_date", p.DepartureDate)
	if ok {
		switch days := int(departure.Sub(today).Hours() / 24); {
		case days < 0:
			r.addError("departure_date", "must not be in the past")
		case days < nearDepartureDays:
			r.addWarning("departure_date", "departure is within %d days, availability may be limited", nearDepartureDays)
		case days > farDepartureDays:
			r.addWarning("departure_date", "departure is more than %d days away, schedules may change", farDepartureDays)
		}
	}

	switch p.TripType {
	case model.TripRoundTrip:
		if p.ReturnDate == "" {
			r.addError("return_date", "is required for round trips")
		} else if ret, retOK := validateDate(&r, "return_date", p.ReturnDate); retOK && ok && !ret.After(departure) {
			r.addError("return_date", "must be after the departure date")
		}
	case model.TripMultiCity:
		v.validateChain(&r, p)
	}

	if p.DepartureTime != nil {
		r.Errors = append(r.Errors, ValidateTimeWindow("departure_time", *p.DepartureTime)...)
	}
	if p.ArrivalTime != nil {
		r.Errors = append(r.Errors, ValidateTimeWindow("arrival_time", *p.ArrivalTime)...)
	}

	validateCounts(&r, p.Passengers)

	if p.MaxConnections != nil && (*p.MaxConnections < 0 || *p.MaxConnections > maxConnections) {
		r.addError("max_connections", "must be between 0 and %d", maxConnections)
	}

	return r
}

// validateChain checks a multi-city itinerary: every hop is well formed, each hop starts
// where the previous one ended, and dates strictly increase.
func (v *Validator) validateChain(r *Result, p model.FlightSearchParams) {
	if len(p.AdditionalStops) == 0 {
		r.addError("additional_stops", "multi-city trips need at least one additional stop")
		return
	}

	legs := p.Legs()
	prevDate, prevOK := parseDate(legs[0].DepartureDate)
	for i := 1; i < len(legs); i++ {
		leg := legs[i]
		prefix := fmt.Sprintf("additional_stops[%d].", i-1)

		validateRoute(r, prefix, leg.Origin, leg.Destination)
		if !strings.EqualFold(legs[i-1].Destination, leg.Origin) {
			r.addError(prefix+"origin", "must equal the previous segment's destination %s", legs[i-1].Destination)
		}

		date, ok := validateDate(r, prefix+"departure_date", leg.DepartureDate)
		if ok && prevOK && !date.After(prevDate) {
			r.addError(prefix+"departure_date", "must be after the previous segment's departure date")
		}
		if ok {
			prevDate, prevOK = date, true
		}
	}
}

// ValidateTimeWindow checks an HH:MM–HH:MM window. Overnight windows are rejected here.
func ValidateTimeWindow(field string, w model.TimeWindow) []apperr.FieldError {
	var r Result
	fromOK := clockPattern.MatchString(w.From)
	toOK := clockPattern.MatchString(w.To)
	if !fromOK {
		r.addError(field+".from", "must be a time in HH:MM format")
	}
	if !toOK {
		r.addError(field+".to", "must be a time in HH:MM format")
	}
	if fromOK && toOK && w.From >= w.To {
		r.addError(field, "start time must be before end time")
	}
	return r.Errors
}

func validateRoute(r *Result, prefix, origin, destination string) {
	originOK := validateAirport(r, prefix+"origin", origin)
	destinationOK := validateAirport(r, prefix+"destination", destination)
	if originOK && destinationOK && strings.EqualFold(origin, destination) {
		r.addError(prefix+"destination", "must differ from origin")
	}
}

func validateAirport(r *Result, field, code string) bool {
	if code == "" {
		r.addError(field, "is required")
		return false
	}
	if !airportCodePattern.MatchString(code) {
		r.addError(field, "must be a 3-letter airport code")
		return false
	}
	return true
}

func validateDate(r *Result, field, value string) (time.Time, bool) {
	if value == "" {
		r.addError(field, "is required")
		return time.Time{}, false
	}
	d, ok := parseDate(value)
	if !ok {
		r.addError(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return d, true
}

func validateCounts(r *Result, c model.PassengerCounts) {
	if c.Adults < 1 {
		r.addError("passengers.adults", "at least one adult is required")
	}
	if c.Children < 0 {
		r.addError("passengers.children", "must not be negative")
	}
	if c.Infants < 0 {
		r.addError("passengers.infants", "must not be negative")
	}
	if c.Total() > maxPassengers {
		r.addError("passengers", "at most %d passengers per booking", maxPassengers)
	}
	if c.Infants > c.Adults {
		r.addError("passengers.infants", "each infant must travel with an adult")
	}
}

func parseDate(value string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
