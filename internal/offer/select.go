package offer

import (
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// Select picks up to n offers favouring variety: the cheapest, then the shortest, then the
// earliest departure, then the remaining offers in their original order.
func Select(offers []model.Offer, n int) []model.Offer {
	if n <= 0 {
		return []model.Offer{}
	}
	if len(offers) <= n {
		out := make([]model.Offer, len(offers))
		copy(out, offers)
		return out
	}

	chosen := make(map[string]bool, n)
	out := make([]model.Offer, 0, n)
	take := func(i int) {
		if i < 0 || len(out) >= n || chosen[offers[i].ID] {
			return
		}
		chosen[offers[i].ID] = true
		out = append(out, offers[i])
	}

	take(best(offers, chosen, func(a, b model.Offer) bool { return a.Total.Amount < b.Total.Amount }))
	take(best(offers, chosen, func(a, b model.Offer) bool { return a.TotalDurationMinutes() < b.TotalDurationMinutes() }))
	take(best(offers, chosen, func(a, b model.Offer) bool { return a.DepartingAt().Before(b.DepartingAt()) }))

	for i := range offers {
		if len(out) >= n {
			break
		}
		take(i)
	}
	return out
}

// best returns the index of the first unchosen offer that no other unchosen offer beats.
func best(offers []model.Offer, chosen map[string]bool, less func(a, b model.Offer) bool) int {
	idx := -1
	for i := range offers {
		if chosen[offers[i].ID] {
			continue
		}
		if idx < 0 || less(offers[i], offers[idx]) {
			idx = i
		}
	}
	return idx
}
