package service

import (
	"context"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

type callerKey struct{}

// WithCaller records the user making the request. Anonymous callers pass "".
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerOf returns the user recorded by WithCaller.
func CallerOf(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// checkOwner hides a session linked to a user from every other caller. Anonymous sessions
// are open to whoever holds the id.
func checkOwner(ctx context.Context, conv *model.Conversation) error {
	if conv.UserID != "" && conv.UserID != CallerOf(ctx) {
		return &apperr.NotFoundError{Resource: "session", ID: conv.SessionID}
	}
	return nil
}
