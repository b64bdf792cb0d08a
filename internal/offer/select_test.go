package offer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

func tenOffers() []model.Offer {
	offers := make([]model.Offer, 0, 10)
	for i := 0; i < 10; i++ {
		offers = append(offers, makeOffer(offerFixture{
			id:       fmt.Sprintf("o%d", i),
			price:    float64(500 - i*7%40),
			minutes:  300 + (i*37)%200,
			departAt: fmt.Sprintf("%02d:00", (i*5)%24),
		}))
	}
	// o6 is the cheapest overall.
	offers[6].Total.Amount = 99
	return offers
}

func TestSelectReturnsDiverseUniqueOffers(t *testing.T) {
	offers := tenOffers()

	got := Select(offers, 3)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, o := range got {
		assert.False(t, seen[o.ID], "duplicate %s", o.ID)
		seen[o.ID] = true
	}
	assert.Equal(t, "o6", got[0].ID)
}

func TestSelectPicksCheapestShortestEarliest(t *testing.T) {
	offers := []model.Offer{
		makeOffer(offerFixture{id: "mid", price: 200, minutes: 500, departAt: "12:00"}),
		makeOffer(offerFixture{id: "cheap", price: 100, minutes: 700, departAt: "14:00"}),
		makeOffer(offerFixture{id: "fast", price: 400, minutes: 300, departAt: "16:00"}),
		makeOffer(offerFixture{id: "early", price: 350, minutes: 650, departAt: "06:00"}),
		makeOffer(offerFixture{id: "other", price: 380, minutes: 600, departAt: "09:00"}),
	}

	assert.Equal(t, []string{"cheap", "fast", "early"}, ids(Select(offers, 3)))
	assert.Equal(t, []string{"cheap", "fast", "early", "mid"}, ids(Select(offers, 4)))
}

func TestSelectSkipsAlreadyChosenCriteria(t *testing.T) {
	offers := []model.Offer{
		makeOffer(offerFixture{id: "best", price: 100, minutes: 300, departAt: "06:00"}),
		makeOffer(offerFixture{id: "second", price: 150, minutes: 320, departAt: "07:00"}),
		makeOffer(offerFixture{id: "third", price: 200, minutes: 400, departAt: "08:00"}),
		makeOffer(offerFixture{id: "fourth", price: 250, minutes: 500, departAt: "09:00"}),
	}

	assert.Equal(t, []string{"best", "second", "third"}, ids(Select(offers, 3)))
}

func TestSelectSmallInput(t *testing.T) {
	offers := sampleOffers()[:2]
	assert.Equal(t, []string{"a", "b"}, ids(Select(offers, 3)))
	assert.Empty(t, Select(offers, 0))
}

func TestSelectSetIndependentOfInputOrder(t *testing.T) {
	offers := tenOffers()
	reversed := make([]model.Offer, len(offers))
	for i := range offers {
		reversed[len(offers)-1-i] = offers[i]
	}

	assert.ElementsMatch(t, ids(Select(offers, 3)), ids(Select(reversed, 3)))
}
