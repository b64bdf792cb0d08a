package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisSessionStore(client)
	s.now = func() time.Time { return now }
	return s, mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	_, err := s.Load(ctx, "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	conv := &model.Conversation{SessionID: "s1", Stage: model.StageSearch, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.Save(ctx, conv))

	loaded, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSearch, loaded.Stage)
	assert.True(t, loaded.ExpiresAt.Equal(conv.ExpiresAt))

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Load(ctx, "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRedisSessionStoreSaveTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	conv := &model.Conversation{SessionID: "s1", ExpiresAt: now.Add(30 * time.Minute)}
	require.NoError(t, s.Save(ctx, conv))

	assert.Equal(t, 30*time.Minute, mr.TTL(sessionKey("s1")))
	score, err := mr.ZScore(sessionExpiryKey, "s1")
	require.NoError(t, err)
	assert.Equal(t, float64(conv.ExpiresAt.Unix()), score)

	// Already past its deadline: kept briefly so the in-flight request can finish.
	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "late", ExpiresAt: now.Add(-time.Minute)}))
	assert.Equal(t, minSessionTTL, mr.TTL(sessionKey("late")))

	conv.OrderID = "ord_1"
	require.NoError(t, s.Save(ctx, conv))

	assert.Zero(t, mr.TTL(sessionKey("s1")))
	assert.True(t, mr.Exists(sessionKey("s1")))
	_, err = mr.ZScore(sessionExpiryKey, "s1")
	assert.Error(t, err)
}

func TestRedisSessionStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "stale", ExpiresAt: now.Add(-time.Minute)}))

	// Evicted by its TTL but still indexed.
	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "evicted", ExpiresAt: now.Add(-2 * time.Minute)}))
	mr.Del(sessionKey("evicted"))

	// Booked after an older save left it indexed.
	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "booked", ExpiresAt: now.Add(-time.Hour), BookingReference: "ABC123"}))
	_, err := mr.ZAdd(sessionExpiryKey, float64(now.Add(-time.Hour).Unix()), "booked")
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		locked []string
	)
	lock := func(key string) func() {
		mu.Lock()
		locked = append(locked, key)
		mu.Unlock()
		return func() {}
	}

	purged, err := s.PurgeExpired(ctx, now, lock)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.ElementsMatch(t, []string{"booked", "evicted", "stale"}, locked)

	members, err := mr.ZMembers(sessionExpiryKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, members)

	_, err = s.Load(ctx, "stale")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Load(ctx, "live")
	assert.NoError(t, err)
	booked, err := s.Load(ctx, "booked")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", booked.BookingReference)

	// A second sweep finds nothing left to do.
	purged, err = s.PurgeExpired(ctx, now, nil)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestRedisSessionStorePurgeAfterTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Save(ctx, &model.Conversation{SessionID: "s1", ExpiresAt: now.Add(10 * time.Minute)}))
	mr.FastForward(11 * time.Minute)
	assert.False(t, mr.Exists(sessionKey("s1")))

	purged, err := s.PurgeExpired(ctx, now.Add(11*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = mr.ZMembers(sessionExpiryKey)
	assert.ErrorIs(t, err, miniredis.ErrKeyNotFound)
}
