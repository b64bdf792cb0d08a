// Package offer turns raw provider offers into the canonical model and provides the
// filtering, sorting and diverse selection applied to result sets.
package offer

import (
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
)

// Service kinds as reported by the provider.
const (
	serviceSeat    = "seat"
	serviceBaggage = "baggage"
)

var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

type seatMetadata struct {
	Designator   string   `mapstructure:"designator"`
	Disclosures  []string `mapstructure:"disclosures"`
	Amenities    []string `mapstructure:"amenities"`
	ExtraLegroom bool     `mapstructure:"extra_legroom"`
}

type baggageMetadata struct {
	Type            string  `mapstructure:"type"`
	MaximumWeightKg float64 `mapstructure:"maximum_weight_kg"`
}

type otherMetadata struct {
	Name        string `mapstructure:"name"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

// Normalize converts a list of raw offers.
func Normalize(raw []provider.Offer) []model.Offer {
	offers := make([]model.Offer, 0, len(raw))
	for i := range raw {
		offers = append(offers, NormalizeOne(raw[i]))
	}
	return offers
}

// NormalizeOne converts a single raw offer. Available services are only set when the raw
// offer carries any.
func NormalizeOne(raw provider.Offer) model.Offer {
	o := model.Offer{
		ID:         raw.ID,
		Total:      ParseMoney(raw.TotalAmount, raw.TotalCurrency),
		ExpiresAt:  parseTime(raw.ExpiresAt),
		CabinClass: model.CabinClass(raw.CabinClass),
		Owner:      model.Airline{Code: raw.Owner.IATACode, Name: raw.Owner.Name},
	}

	if c := raw.Conditions.RefundBeforeDeparture; c != nil {
		o.Refundable = c.Allowed
	}
	if c := raw.Conditions.ChangeBeforeDeparture; c != nil {
		o.Changeable = c.Allowed
	}
	if raw.PaymentRequirements != nil {
		o.RequiresInstantPayment = raw.PaymentRequirements.RequiresInstantPayment
	}

	baggage := make(map[string][]model.BaggageAllowance)
	for _, rs := range raw.Slices {
		o.Slices = append(o.Slices, normalizeSlice(rs))
		for _, seg := range rs.Segments {
			for _, sp := range seg.Passengers {
				if o.CabinClass == "" && sp.CabinClass != "" {
					o.CabinClass = model.CabinClass(sp.CabinClass)
				}
				if _, seen := baggage[sp.PassengerID]; seen {
					continue
				}
				allowances := make([]model.BaggageAllowance, 0, len(sp.Baggages))
				for _, b := range sp.Baggages {
					allowances = append(allowances, model.BaggageAllowance{Type: b.Type, Quantity: b.Quantity})
				}
				baggage[sp.PassengerID] = allowances
			}
		}
	}

	for _, p := range raw.Passengers {
		o.Passengers = append(o.Passengers, model.PassengerSlot{
			ID:      p.ID,
			Type:    model.PassengerType(p.Type),
			Baggage: baggage[p.ID],
		})
	}

	if len(raw.AvailableServices) > 0 {
		o.Services = NormalizeServices(raw.AvailableServices)
	}

	return o
}

func normalizeSlice(raw provider.Slice) model.Slice {
	s := model.Slice{
		ID:          raw.ID,
		Origin:      normalizePlace(raw.Origin),
		Destination: normalizePlace(raw.Destination),
		Duration:    ParseDuration(raw.Duration),
	}

	sum := 0
	for _, rs := range raw.Segments {
		seg := normalizeSegment(rs)
		sum += seg.Duration.Minutes
		s.Segments = append(s.Segments, seg)
	}

	// Segment times are authoritative for the slice boundaries.
	if n := len(s.Segments); n > 0 {
		s.DepartingAt = s.Segments[0].DepartingAt
		s.ArrivingAt = s.Segments[n-1].ArrivingAt
	} else {
		s.DepartingAt = parseTime(raw.DepartingAt)
		s.ArrivingAt = parseTime(raw.ArrivingAt)
	}

	if s.Duration.Minutes == 0 && sum > 0 && raw.Duration == "" {
		s.Duration = model.Duration{Text: FormatMinutes(sum), Minutes: sum}
	}
	return s
}

func normalizeSegment(raw provider.Segment) model.Segment {
	flightNumber := raw.MarketingCarrierFlightNumber
	if flightNumber == "" {
		flightNumber = raw.OperatingCarrierFlightNumber
	}

	seg := model.Segment{
		ID:                  raw.ID,
		OperatingCarrier:    model.Airline{Code: raw.OperatingCarrier.IATACode, Name: raw.OperatingCarrier.Name},
		MarketingCarrier:    model.Airline{Code: raw.MarketingCarrier.IATACode, Name: raw.MarketingCarrier.Name},
		FlightNumber:        flightNumber,
		Origin:              normalizePlace(raw.Origin),
		Destination:         normalizePlace(raw.Destination),
		OriginTerminal:      raw.OriginTerminal,
		DestinationTerminal: raw.DestinationTerminal,
		DepartingAt:         parseTime(raw.DepartingAt),
		ArrivingAt:          parseTime(raw.ArrivingAt),
		Duration:            ParseDuration(raw.Duration),
	}
	if raw.Aircraft != nil {
		seg.Aircraft = raw.Aircraft.Name
	}
	return seg
}

func normalizePlace(p provider.Place) model.Airport {
	return model.Airport{
		Code:        p.IATACode,
		Name:        p.Name,
		City:        p.CityName,
		CountryCode: p.IATACountryCode,
		TimeZone:    p.TimeZone,
	}
}

// NormalizeServices partitions raw services into seats, baggage and other.
func NormalizeServices(raw []provider.Service) *model.AvailableServices {
	out := &model.AvailableServices{
		Seats:   []model.SeatService{},
		Baggage: []model.BaggageService{},
		Other:   []model.OtherService{},
	}

	for _, rs := range raw {
		price := ParseMoney(rs.TotalAmount, rs.TotalCurrency)

		switch rs.Type {
		case serviceSeat:
			var meta seatMetadata
			decodeMetadata(rs.Metadata, &meta)
			seat := model.SeatService{
				ID:         rs.ID,
				Designator: meta.Designator,
				Type:       classifySeat(meta),
				Price:      price,
			}
			if len(rs.SegmentIDs) > 0 {
				seat.SegmentID = rs.SegmentIDs[0]
			}
			if len(rs.PassengerIDs) > 0 {
				seat.PassengerID = rs.PassengerIDs[0]
			}
			out.Seats = append(out.Seats, seat)

		case serviceBaggage:
			var meta baggageMetadata
			decodeMetadata(rs.Metadata, &meta)
			out.Baggage = append(out.Baggage, model.BaggageService{
				ID:           rs.ID,
				Type:         meta.Type,
				MaxWeightKg:  meta.MaximumWeightKg,
				MaxQuantity:  rs.MaximumQuantity,
				SegmentIDs:   rs.SegmentIDs,
				PassengerIDs: rs.PassengerIDs,
				Price:        price,
			})

		default:
			var meta otherMetadata
			decodeMetadata(rs.Metadata, &meta)
			name := meta.Name
			if name == "" {
				name = meta.Title
			}
			if name == "" {
				name = rs.Type
			}
			out.Other = append(out.Other, model.OtherService{
				ID:          rs.ID,
				Name:        name,
				Description: meta.Description,
				MaxQuantity: rs.MaximumQuantity,
				Price:       price,
			})
		}
	}

	return out
}

// classifySeat types a seat from its metadata. An explicit extra legroom marker wins,
// then the column letter of the designator.
func classifySeat(meta seatMetadata) model.SeatType {
	if meta.ExtraLegroom || mentionsLegroom(meta.Amenities) || mentionsLegroom(meta.Disclosures) {
		return model.SeatExtraLegroom
	}

	column := seatColumn(meta.Designator)
	switch column {
	case "":
		return model.SeatStandard
	case "A", "F", "K":
		return model.SeatWindow
	case "C", "D", "E", "H":
		return model.SeatAisle
	default:
		return model.SeatMiddle
	}
}

func mentionsLegroom(values []string) bool {
	for _, v := range values {
		v = strings.ToLower(v)
		if strings.Contains(v, "legroom") || strings.Contains(v, "leg room") {
			return true
		}
	}
	return false
}

func seatColumn(designator string) string {
	designator = strings.TrimSpace(strings.ToUpper(designator))
	if designator == "" {
		return ""
	}
	last := designator[len(designator)-1]
	if last < 'A' || last > 'Z' {
		return ""
	}
	return string(last)
}

func decodeMetadata(in map[string]any, out any) {
	if len(in) == 0 {
		return
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return
	}
	// Partial metadata is fine; fields that fail to decode keep their zero value.
	_ = dec.Decode(in)
}

// ParseMoney parses a provider decimal string. The raw string is kept so the exact
// amount can be echoed back on payment.
func ParseMoney(amount, currency string) model.Money {
	m := model.Money{Currency: currency, Raw: amount}
	if v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64); err == nil {
		m.Amount = v
	}
	return m
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
