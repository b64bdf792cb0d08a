package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

const passportValidityMonths = 6

var (
	emailPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nationalityPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
	nonDigits          = regexp.MustCompile(`\D`)
)

var validTitles = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {},
}

var validGenders = map[string]struct{}{
	"m": {}, "f": {}, "male": {}, "female": {},
}

// PassengerOptions controls trip-dependent passenger checks.
type PassengerOptions struct {
	// RequiresPassport demands passport number, expiry and nationality.
	RequiresPassport bool
	// DepartureDate is the first flight's date. Zero means today.
	DepartureDate time.Time
}

// ValidatePassengers checks every passenger record. Field names are prefixed with
// passengers[i].
func (v *Validator) ValidatePassengers(passengers []model.Passenger, opts PassengerOptions) Result {
	var r Result
	if len(passengers) == 0 {
		r.addError("passengers", "at least one passenger is required")
		return r
	}
	for i, p := range passengers {
		pr := v.ValidatePassenger(p, opts)
		prefix := fmt.Sprintf("passengers[%d].", i)
		for _, e := range pr.Errors {
			r.addError(prefix+e.Field, "%s", e.Message)
		}
	}
	return r
}

// ValidatePassenger checks a single passenger record.
func (v *Validator) ValidatePassenger(p model.Passenger, opts PassengerOptions) Result {
	var r Result
	today := dateOf(v.now())
	departure := today
	if !opts.DepartureDate.IsZero() {
		departure = dateOf(opts.DepartureDate)
	}

	if strings.TrimSpace(p.GivenName) == "" {
		r.addError("given_name", "is required")
	}
	if strings.TrimSpace(p.FamilyName) == "" {
		r.addError("family_name", "is required")
	}
	if p.Title != "" {
		if _, ok := validTitles[strings.ToLower(strings.TrimSuffix(p.Title, "."))]; !ok {
			r.addError("title", "must be one of Mr, Mrs, Ms, Miss, Dr")
		}
	}
	if p.Gender != "" {
		if _, ok := validGenders[strings.ToLower(p.Gender)]; !ok {
			r.addError("gender", "must be m or f")
		}
	}

	if born, ok := validateDate(&r, "born_on", p.BornOn); ok {
		if !born.Before(today) {
			r.addError("born_on", "must be in the past")
		} else {
			validateAge(&r, p.Type, ageAt(born, departure))
		}
	}

	if strings.TrimSpace(p.Email) == "" {
		r.addError("email", "is required")
	} else if !emailPattern.MatchString(p.Email) {
		r.addError("email", "must be a valid email address")
	}

	if strings.TrimSpace(p.Phone) == "" {
		r.addError("phone_number", "is required")
	} else if digits := len(nonDigits.ReplaceAllString(p.Phone, "")); digits < 7 || digits > 15 {
		r.addError("phone_number", "must contain between 7 and 15 digits")
	}

	if opts.RequiresPassport {
		if strings.TrimSpace(p.PassportNumber) == "" {
			r.addError("passport_number", "is required for this itinerary")
		}
		if expiry, ok := validateDate(&r, "passport_expiry", p.PassportExpiry); ok {
			if expiry.Before(departure.AddDate(0, passportValidityMonths, 0)) {
				r.addError("passport_expiry", "must be valid for at least %d months after departure", passportValidityMonths)
			}
		}
		if strings.TrimSpace(p.Nationality) == "" {
			r.addError("nationality", "is required for this itinerary")
		} else if !nationalityPattern.MatchString(p.Nationality) {
			r.addError("nationality", "must be a 2-letter country code")
		}
	}

	return r
}

func validateAge(r *Result, typ model.PassengerType, age int) {
	switch typ {
	case model.PassengerChild:
		if age < 2 || age > 11 {
			r.addError("born_on", "children must be between 2 and 11 years old at departure")
		}
	case model.PassengerInfant:
		if age >= 2 {
			r.addError("born_on", "infants must be under 2 years old at departure")
		}
	}
}

// ageAt returns completed years between born and at.
func ageAt(born, at time.Time) int {
	age := at.Year() - born.Year()
	if at.Month() < born.Month() || (at.Month() == born.Month() && at.Day() < born.Day()) {
		age--
	}
	return age
}
