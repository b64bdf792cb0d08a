package offer

import (
	"fmt"
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

var baseDay = time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

type offerFixture struct {
	id       string
	price    float64
	minutes  int
	departAt string
	segments int
	carrier  string
}

func makeOffer(s offerFixture) model.Offer {
	depart, err := time.Parse("15:04", s.departAt)
	if err != nil {
		panic(err)
	}
	dep := baseDay.Add(time.Duration(depart.Hour())*time.Hour + time.Duration(depart.Minute())*time.Minute)

	segs := s.segments
	if segs == 0 {
		segs = 1
	}
	carrier := s.carrier
	if carrier == "" {
		carrier = "BA"
	}

	slice := model.Slice{
		ID:          s.id + "-sl",
		DepartingAt: dep,
		ArrivingAt:  dep.Add(time.Duration(s.minutes) * time.Minute),
		Duration:    model.Duration{Minutes: s.minutes},
	}
	for i := 0; i < segs; i++ {
		slice.Segments = append(slice.Segments, model.Segment{
			ID:               fmt.Sprintf("%s-seg%d", s.id, i),
			OperatingCarrier: model.Airline{Code: carrier},
		})
	}

	return model.Offer{
		ID:     s.id,
		Total:  model.Money{Amount: s.price, Currency: "USD"},
		Slices: []model.Slice{slice},
	}
}

func ids(offers []model.Offer) []string {
	out := make([]string, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.ID)
	}
	return out
}
