package model

// SeatType classifies a seat service.
type SeatType string

const (
	SeatWindow       SeatType = "window"
	SeatAisle        SeatType = "aisle"
	SeatMiddle       SeatType = "middle"
	SeatExtraLegroom SeatType = "extra_legroom"
	SeatStandard     SeatType = "standard"
)

// SeatService is a purchasable seat on one segment for one passenger.
type SeatService struct {
	ID          string   `json:"id" bson:"id"`
	SegmentID   string   `json:"segment_id,omitempty" bson:"segment_id,omitempty"`
	PassengerID string   `json:"passenger_id,omitempty" bson:"passenger_id,omitempty"`
	Designator  string   `json:"designator,omitempty" bson:"designator,omitempty"`
	Type        SeatType `json:"type" bson:"type"`
	Price       Money    `json:"price" bson:"price"`
}

// BaggageService is a purchasable extra bag.
type BaggageService struct {
	ID           string   `json:"id" bson:"id"`
	Type         string   `json:"type" bson:"type"`
	MaxWeightKg  float64  `json:"max_weight_kg,omitempty" bson:"max_weight_kg,omitempty"`
	MaxQuantity  int      `json:"max_quantity" bson:"max_quantity"`
	SegmentIDs   []string `json:"segment_ids,omitempty" bson:"segment_ids,omitempty"`
	PassengerIDs []string `json:"passenger_ids,omitempty" bson:"passenger_ids,omitempty"`
	Price        Money    `json:"price" bson:"price"`
}

// OtherService is any ancillary that is neither a seat nor a bag.
type OtherService struct {
	ID          string `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	MaxQuantity int    `json:"max_quantity" bson:"max_quantity"`
	Price       Money  `json:"price" bson:"price"`
}

// AvailableServices partitions the ancillaries offered with an offer.
type AvailableServices struct {
	Seats   []SeatService    `json:"seats" bson:"seats"`
	Baggage []BaggageService `json:"baggage" bson:"baggage"`
	Other   []OtherService   `json:"other" bson:"other"`
}

// Price returns the unit price of the service with the given id.
func (a *AvailableServices) Price(id string) (Money, bool) {
	if a == nil {
		return Money{}, false
	}
	for _, s := range a.Seats {
		if s.ID == id {
			return s.Price, true
		}
	}
	for _, s := range a.Baggage {
		if s.ID == id {
			return s.Price, true
		}
	}
	for _, s := range a.Other {
		if s.ID == id {
			return s.Price, true
		}
	}
	return Money{}, false
}

// Has reports whether id is one of the offered services.
func (a *AvailableServices) Has(id string) bool {
	_, ok := a.Price(id)
	return ok
}

// Len returns the number of offered services across partitions.
func (a *AvailableServices) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Seats) + len(a.Baggage) + len(a.Other)
}
