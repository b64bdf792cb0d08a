package model

// Gender codes accepted by the inventory provider.
const (
	GenderMale   = "m"
	GenderFemale = "f"
)

// Passenger holds the traveller details captured before booking. Passengers are
// matched by position to the offer's passenger slots.
type Passenger struct {
	Type           PassengerType `json:"type,omitempty" bson:"type,omitempty" mapstructure:"type"`
	Title          string        `json:"title,omitempty" bson:"title,omitempty" mapstructure:"title"`
	GivenName      string        `json:"given_name" bson:"given_name" mapstructure:"given_name"`
	FamilyName     string        `json:"family_name" bson:"family_name" mapstructure:"family_name"`
	BornOn         string        `json:"born_on" bson:"born_on" mapstructure:"born_on"`
	Gender         string        `json:"gender,omitempty" bson:"gender,omitempty" mapstructure:"gender"`
	Email          string        `json:"email" bson:"email" mapstructure:"email"`
	Phone          string        `json:"phone_number" bson:"phone_number" mapstructure:"phone_number"`
	Nationality    string        `json:"nationality,omitempty" bson:"nationality,omitempty" mapstructure:"nationality"`
	PassportNumber string        `json:"passport_number,omitempty" bson:"passport_number,omitempty" mapstructure:"passport_number"`
	PassportExpiry string        `json:"passport_expiry,omitempty" bson:"passport_expiry,omitempty" mapstructure:"passport_expiry"`
}

// ServiceSelection is a requested ancillary and its quantity.
type ServiceSelection struct {
	ID       string `json:"id" bson:"id" mapstructure:"id"`
	Quantity int    `json:"quantity" bson:"quantity" mapstructure:"quantity"`
}
