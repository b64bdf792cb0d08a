// Package store persists conversations and bookings.
package store

import (
	"context"
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// SessionStore loads and saves conversations by session id. Conversations expire after
// ExpiresAt unless they hold a booking.
type SessionStore interface {
	// Load returns the conversation or an apperr.NotFoundError.
	Load(ctx context.Context, sessionID string) (*model.Conversation, error)
	Save(ctx context.Context, conv *model.Conversation) error
	Delete(ctx context.Context, sessionID string) error
	// PurgeExpired removes expired conversations without a booking and returns how many
	// were removed. Each session is checked and deleted while holding lock(id); a nil lock
	// skips locking.
	PurgeExpired(ctx context.Context, now time.Time, lock LockFunc) (int, error)
}

// LockFunc takes a per-session lock and returns its release. Locker.Lock satisfies it.
type LockFunc func(key string) (unlock func())

func (f LockFunc) acquire(key string) func() {
	if f == nil {
		return func() {}
	}
	return f(key)
}

// BookingRepository persists booking records.
type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
}
