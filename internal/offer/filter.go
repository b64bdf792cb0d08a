package offer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// SortKey orders a filtered result.
type SortKey string

const (
	SortNone      SortKey = ""
	SortPrice     SortKey = "price"
	SortDuration  SortKey = "duration"
	SortDeparture SortKey = "departure"
)

// Criteria narrows and orders a result set. Nil or empty fields do not filter.
type Criteria struct {
	DepartureTime      *model.TimeWindow `json:"departure_time,omitempty" mapstructure:"departure_time"`
	MaxConnections     *int              `json:"max_connections,omitempty" mapstructure:"max_connections"`
	Airlines           []string          `json:"airlines,omitempty" mapstructure:"airlines"`
	MinPrice           *float64          `json:"min_price,omitempty" mapstructure:"min_price"`
	MaxPrice           *float64          `json:"max_price,omitempty" mapstructure:"max_price"`
	MaxDurationMinutes *int              `json:"max_duration_minutes,omitempty" mapstructure:"max_duration_minutes"`
	SortBy             SortKey           `json:"sort_by,omitempty" mapstructure:"sort_by"`
	Descending         bool              `json:"descending,omitempty" mapstructure:"descending"`
}

// Validate checks the criteria shape. Overnight departure windows are accepted here.
func (c Criteria) Validate() error {
	var fields []apperr.FieldError
	add := func(field, msg string) {
		fields = append(fields, apperr.FieldError{Field: field, Message: msg})
	}

	if w := c.DepartureTime; w != nil {
		if _, ok := parseHour(w.From); !ok {
			add("departure_time.from", "must be HH:MM")
		}
		if _, ok := parseHour(w.To); !ok {
			add("departure_time.to", "must be HH:MM")
		}
	}
	if c.MaxConnections != nil && (*c.MaxConnections < 0 || *c.MaxConnections > 3) {
		add("max_connections", "must be between 0 and 3")
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		add("min_price", "must not exceed max_price")
	}
	if c.MaxDurationMinutes != nil && *c.MaxDurationMinutes <= 0 {
		add("max_duration_minutes", "must be positive")
	}
	switch c.SortBy {
	case SortNone, SortPrice, SortDuration, SortDeparture:
	default:
		add("sort_by", "must be one of price, duration, departure")
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// Filter returns the offers matching c, ordered by c.SortBy. The input is not modified.
func Filter(offers []model.Offer, c Criteria) []model.Offer {
	out := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if c.matches(o) {
			out = append(out, o)
		}
	}
	Sort(out, c.SortBy, c.Descending)
	return out
}

// Sort orders offers in place. Ties keep their original order.
func Sort(offers []model.Offer, key SortKey, descending bool) {
	var less func(a, b model.Offer) bool
	switch key {
	case SortPrice:
		less = func(a, b model.Offer) bool { return a.Total.Amount < b.Total.Amount }
	case SortDuration:
		less = func(a, b model.Offer) bool { return a.TotalDurationMinutes() < b.TotalDurationMinutes() }
	case SortDeparture:
		less = func(a, b model.Offer) bool { return a.DepartingAt().Before(b.DepartingAt()) }
	default:
		return
	}

	sort.SliceStable(offers, func(i, j int) bool {
		if descending {
			return less(offers[j], offers[i])
		}
		return less(offers[i], offers[j])
	})
}

func (c Criteria) matches(o model.Offer) bool {
	if c.DepartureTime != nil && !inWindow(o, *c.DepartureTime) {
		return false
	}

	if c.MaxConnections != nil {
		for _, s := range o.Slices {
			if s.Connections() > *c.MaxConnections {
				return false
			}
		}
	}

	if len(c.Airlines) > 0 && !operatedBy(o, c.Airlines) {
		return false
	}

	if c.MinPrice != nil && o.Total.Amount < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && o.Total.Amount > *c.MaxPrice {
		return false
	}

	if c.MaxDurationMinutes != nil && o.TotalDurationMinutes() > *c.MaxDurationMinutes {
		return false
	}

	return true
}

// inWindow compares the first slice's departure hour with [from, to). A window whose end
// is before its start wraps midnight.
func inWindow(o model.Offer, w model.TimeWindow) bool {
	from, okFrom := parseHour(w.From)
	to, okTo := parseHour(w.To)
	if !okFrom || !okTo || len(o.Slices) == 0 {
		return false
	}

	hour := o.Slices[0].DepartingAt.Hour()
	if to < from {
		return hour >= from || hour <= to
	}
	return hour >= from && hour < to
}

func operatedBy(o model.Offer, airlines []string) bool {
	for _, s := range o.Slices {
		for _, seg := range s.Segments {
			for _, code := range airlines {
				if strings.EqualFold(seg.OperatingCarrier.Code, strings.TrimSpace(code)) {
					return true
				}
			}
		}
	}
	return false
}

func parseHour(clock string) (int, bool) {
	hh, mm, found := strings.Cut(clock, ":")
	if !found || len(hh) != 2 || len(mm) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h, true
}
