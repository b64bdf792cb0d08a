package booking

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

type enrichResult struct {
	offer model.Offer
	err   *apperr.EnrichmentError
}

// EnrichOffers fetches the detail of every offer concurrently. An offer whose fetch fails
// is returned in its basic form; a failure never affects the other offers.
func (o *Orchestrator) EnrichOffers(ctx context.Context, offers []model.Offer) []model.Offer {
	results := make([]enrichResult, len(offers))

	// Branches never return an error, so the group context is never cancelled by a sibling.
	var g errgroup.Group
	g.SetLimit(o.cfg.EnrichConcurrency)

	for i := range offers {
		i := i
		g.Go(func() error {
			detail, err := o.GetOffer(ctx, offers[i].ID)
			if err != nil {
				results[i] = enrichResult{err: &apperr.EnrichmentError{OfferID: offers[i].ID, Err: err}}
				return nil
			}
			results[i] = enrichResult{offer: detail}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Offer, len(offers))
	for i, r := range results {
		if r.err != nil {
			metrics.EnrichmentFailuresTotal.Inc()
			o.logger.Warn("offer enrichment failed, using basic offer",
				zap.String("offer_id", r.err.OfferID),
				zap.Bool("canceled", errors.Is(r.err, context.Canceled)),
				zap.Error(r.err.Err),
			)
			out[i] = offers[i]
			continue
		}
		out[i] = r.offer
	}
	return out
}
