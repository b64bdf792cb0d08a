package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// MemorySessionStore keeps conversations in process. Values are stored encoded so callers
// never share state with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (*model.Conversation, error) {
	s.mu.RLock()
	data, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "session", ID: sessionID}
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &conv, nil
}

func (s *MemorySessionStore) Save(_ context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", conv.SessionID, err)
	}
	s.mu.Lock()
	s.sessions[conv.SessionID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) PurgeExpired(ctx context.Context, now time.Time, lock LockFunc) (int, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	purged := 0
	for _, id := range ids {
		if s.purgeOne(ctx, id, now, lock) {
			purged++
		}
	}
	return purged, nil
}

func (s *MemorySessionStore) purgeOne(ctx context.Context, id string, now time.Time, lock LockFunc) bool {
	unlock := lock.acquire(id)
	defer unlock()

	conv, err := s.Load(ctx, id)
	if err != nil || !conv.Expired(now) {
		return false
	}
	_ = s.Delete(ctx, id)
	return true
}

// MemoryBookingRepository keeps bookings in process.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]model.Booking
}

// NewMemoryBookingRepository creates an empty in-memory booking repository.
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]model.Booking)}
}

func (r *MemoryBookingRepository) Create(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[b.OrderID]; exists {
		return apperr.Conflictf("booking for order %s already exists", b.OrderID)
	}
	r.bookings[b.OrderID] = *b
	return nil
}

func (r *MemoryBookingRepository) GetByOrderID(_ context.Context, orderID string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[orderID]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "booking", ID: orderID}
	}
	return &b, nil
}

func (r *MemoryBookingRepository) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Booking{}
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryBookingRepository) Update(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[b.OrderID]; !ok {
		return &apperr.NotFoundError{Resource: "booking", ID: b.OrderID}
	}
	r.bookings[b.OrderID] = *b
	return nil
}
