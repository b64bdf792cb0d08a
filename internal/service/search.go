package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/offer"
	"github.com/capitalize-ai/flight-concierge/internal/validator"
)

// Search validates params, queries the provider and presents a diverse selection of the
// results. Searching again from selection replaces the results.
func (s *ConversationService) Search(ctx context.Context, sessionID string, params model.FlightSearchParams) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.search(ctx, sess, params)
	})
}

func (s *ConversationService) search(ctx context.Context, sess *session, params model.FlightSearchParams) (*model.Response, error) {
	params = validator.Canonicalize(params)
	result := s.validator.ValidateSearch(params)
	if err := result.Err(); err != nil {
		return nil, err
	}
	sess.warn(result.Warnings...)

	if sess.Stage() != model.StageSelection {
		if err := sess.transition(model.StageSearch); err != nil {
			return nil, err
		}
	}

	offers, err := s.orchestrator.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	sess.SetSearch(params, offers)
	sess.emit(model.EventSearchCompleted, "", map[string]any{
		"trip_type":    string(params.TripType),
		"result_count": len(offers),
	})

	if len(offers) == 0 {
		return &model.Response{
			Message: "No flights matched. Try other dates or airports.",
			Data:    OffersData{Offers: []model.Offer{}},
		}, nil
	}

	if err := sess.transition(model.StageSelection); err != nil {
		return nil, err
	}
	presented := s.orchestrator.EnrichOffers(ctx, offer.Select(offers, s.cfg.ResultSize))
	sess.Present(presented)

	return &model.Response{
		Message: fmt.Sprintf("Found %d flights. Here are %d good options.", len(offers), len(presented)),
		Data:    OffersData{Offers: presented, TotalFound: len(offers)},
	}, nil
}

// Filter narrows and sorts the stored results. Without a sort key a diverse selection is
// presented; with one, the first results in that order.
func (s *ConversationService) Filter(ctx context.Context, sessionID string, criteria offer.Criteria) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.filter(ctx, sess, criteria)
	})
}

func (s *ConversationService) filter(_ context.Context, sess *session, criteria offer.Criteria) (*model.Response, error) {
	if err := sess.Require(model.StageSelection, model.StageSelection); err != nil {
		return nil, err
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	matched := offer.Filter(sess.Conversation().SearchResults, criteria)
	var presented []model.Offer
	if criteria.SortBy != "" {
		presented = matched[:min(len(matched), s.cfg.ResultSize)]
	} else {
		presented = offer.Select(matched, s.cfg.ResultSize)
	}
	sess.Present(presented)

	msg := fmt.Sprintf("%d flights match.", len(matched))
	if len(matched) == 0 {
		msg = "No flights match those filters."
	}
	return &model.Response{
		Message: msg,
		Data:    OffersData{Offers: presented, TotalFound: len(matched)},
	}, nil
}

// SelectOffer picks one of the stored results. The offer is re-read with its services and
// must not have expired.
func (s *ConversationService) SelectOffer(ctx context.Context, sessionID, offerID string) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		return s.selectOffer(ctx, sess, offerID)
	})
}

func (s *ConversationService) selectOffer(ctx context.Context, sess *session, offerID string) (*model.Response, error) {
	if offerID == "" {
		return nil, apperr.NewValidationError("offer_id", "is required")
	}
	if err := sess.Require(model.StagePassengerDetails, model.StageSelection); err != nil {
		return nil, err
	}
	if _, ok := sess.FindResult(offerID); !ok {
		return nil, &apperr.NotFoundError{Resource: "offer", ID: offerID}
	}

	detail, err := s.orchestrator.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if detail.Expired(s.now()) {
		return nil, &apperr.ExpiryError{OfferID: offerID, ExpiredAt: detail.ExpiresAt}
	}

	next := model.StagePassengerDetails
	needsAuth := s.cfg.RequireAuth && sess.Conversation().UserID == ""
	if needsAuth {
		next = model.StageAuthentication
	}
	if err := sess.transition(next); err != nil {
		return nil, err
	}
	sess.SelectOffer(detail)
	sess.emit(model.EventOfferSelected, "", map[string]any{
		"offer_id": detail.ID,
		"amount":   detail.Total.Raw,
		"currency": detail.Total.Currency,
	})

	msg := fmt.Sprintf("Selected flight for %s %s. Please enter passenger details.", detail.Total.Raw, detail.Total.Currency)
	if needsAuth {
		msg = "Please sign in to continue with this flight."
	}
	return &model.Response{
		Message: msg,
		Data:    SelectionData{Offer: detail, RequiresAuthentication: needsAuth},
	}, nil
}

// Authenticate links the user to the conversation and leaves the authentication stage if
// the conversation is waiting there.
func (s *ConversationService) Authenticate(ctx context.Context, sessionID, userID string) (*model.Response, error) {
	return s.run(ctx, sessionID, func(ctx context.Context, sess *session) (*model.Response, error) {
		if userID == "" {
			return nil, apperr.NewValidationError("user_id", "is required")
		}
		conv := sess.Conversation()
		if conv.UserID != "" && conv.UserID != userID {
			return nil, apperr.Conflictf("session is linked to another user")
		}
		sess.LinkUser(userID)

		if sess.Stage() == model.StageAuthentication {
			next := model.StagePassengerDetails
			if len(conv.Passengers) > 0 {
				next = model.StageAdditionalServices
			}
			if err := sess.transition(next); err != nil {
				return nil, err
			}
		}
		s.logger.Info("session authenticated", zap.String("session_id", conv.SessionID))
		return &model.Response{Message: "You are signed in."}, nil
	})
}
