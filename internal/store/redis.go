package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

const (
	sessionKeyPrefix = "flight:session:"
	sessionExpiryKey = "flight:session:expiry"
	minSessionTTL    = time.Second
)

// RedisSessionStore keeps conversations as JSON values with a TTL. A sorted set indexes
// expiry times for the sweeper.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Load returns the conversation stored under sessionID.
func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*model.Conversation, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &apperr.NotFoundError{Resource: "session", ID: sessionID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &conv, nil
}

// Save writes the conversation. Booked conversations are kept without a TTL.
func (s *RedisSessionStore) Save(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", conv.SessionID, err)
	}

	key := sessionKey(conv.SessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if conv.HasBooking() {
			pipe.Set(ctx, key, data, 0)
			pipe.ZRem(ctx, sessionExpiryKey, conv.SessionID)
			return nil
		}

		ttl := conv.ExpiresAt.Sub(s.now())
		if ttl < minSessionTTL {
			ttl = minSessionTTL
		}
		pipe.Set(ctx, key, data, ttl)
		pipe.ZAdd(ctx, sessionExpiryKey, redis.Z{
			Score:  float64(conv.ExpiresAt.Unix()),
			Member: conv.SessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", conv.SessionID, err)
	}
	return nil
}

// Delete removes a conversation.
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		pipe.ZRem(ctx, sessionExpiryKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// PurgeExpired removes conversations whose expiry has passed. Keys already evicted by
// their TTL are dropped from the index and counted.
func (s *RedisSessionStore) PurgeExpired(ctx context.Context, now time.Time, lock LockFunc) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, sessionExpiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan session expiry index: %w", err)
	}

	purged := 0
	for _, id := range ids {
		removed, err := s.purgeOne(ctx, id, now, lock)
		if err != nil {
			return purged, err
		}
		if removed {
			purged++
		}
	}
	return purged, nil
}

func (s *RedisSessionStore) purgeOne(ctx context.Context, id string, now time.Time, lock LockFunc) (bool, error) {
	unlock := lock.acquire(id)
	defer unlock()

	conv, err := s.Load(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if err := s.client.ZRem(ctx, sessionExpiryKey, id).Err(); err != nil {
			return false, fmt.Errorf("failed to unindex session %s: %w", id, err)
		}
		return true, nil
	case err != nil:
		return false, err
	}

	if conv.HasBooking() {
		if err := s.client.ZRem(ctx, sessionExpiryKey, id).Err(); err != nil {
			return false, fmt.Errorf("failed to unindex session %s: %w", id, err)
		}
		return false, nil
	}
	if !conv.Expired(now) {
		return false, nil
	}

	if err := s.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}
