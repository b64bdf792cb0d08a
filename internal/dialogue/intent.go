package dialogue

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
)

// Intent names understood by the conversation service.
const (
	IntentSearchFlights = "search_flights"
	IntentFilterOffers  = "filter_offers"
	IntentSelectOffer   = "select_offer"
	IntentAddPassengers = "add_passengers"
	IntentAddServices   = "add_services"
	IntentBook          = "book"
	IntentHold          = "hold"
	IntentPayHold       = "pay_hold"
	IntentCancelBooking = "cancel_booking"
)

var knownIntents = map[string]struct{}{
	IntentSearchFlights: {},
	IntentFilterOffers:  {},
	IntentSelectOffer:   {},
	IntentAddPassengers: {},
	IntentAddServices:   {},
	IntentBook:          {},
	IntentHold:          {},
	IntentPayHold:       {},
	IntentCancelBooking: {},
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Intent is a structured operation requested by the user.
type Intent struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Reply is the interpreted answer of the language model: a message for the user and an
// optional intent.
type Reply struct {
	Message string  `json:"message"`
	Intent  *Intent `json:"intent,omitempty"`
}

// ParseReply reads the model output. Code fences are tolerated; output that is not a JSON
// object becomes a plain message. Unknown intents are dropped.
func ParseReply(content string) Reply {
	text := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Reply{Message: strings.TrimSpace(content)}
	}

	var reply Reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return Reply{Message: strings.TrimSpace(content)}
	}
	if reply.Intent != nil {
		reply.Intent.Name = strings.ToLower(strings.TrimSpace(reply.Intent.Name))
		if _, ok := knownIntents[reply.Intent.Name]; !ok {
			reply.Intent = nil
		}
	}
	return reply
}

// Decode maps the intent arguments onto out. Numbers given as strings are accepted.
func (i Intent) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(i.Arguments); err != nil {
		return apperr.NewValidationError("arguments", fmt.Sprintf("invalid %s arguments: %v", i.Name, err))
	}
	return nil
}

// SelectArgs are the arguments of select_offer.
type SelectArgs struct {
	OfferID string `mapstructure:"offer_id"`
}

// PassengerArgs are the arguments of add_passengers.
type PassengerArgs struct {
	Passengers []model.Passenger `mapstructure:"passengers"`
}

// ServiceArgs are the arguments of add_services.
type ServiceArgs struct {
	Services []model.ServiceSelection `mapstructure:"services"`
}

// SearchArgs decodes search_flights arguments.
func (i Intent) SearchArgs() (model.FlightSearchParams, error) {
	var p model.FlightSearchParams
	err := i.Decode(&p)
	return p, err
}

// FilterArgs decodes filter_offers arguments.
func (i Intent) FilterArgs() (offer.Criteria, error) {
	var c offer.Criteria
	err := i.Decode(&c)
	return c, err
}
