package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carshare/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// BookingCacheTTL bounds how stale a read can be if an invalidation is lost.
const BookingCacheTTL = 60 * time.Second

const bookingCachePrefix = "cache:booking:"

// GetBooking retrieves a booking snapshot from cache. A miss returns nil, nil.
func (s *CacheStore) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	data, err := s.client.Get(ctx, bookingCachePrefix+bookingID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var b domain.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// setIfNewerScript writes the snapshot unless the cached one already has the
// same or a higher version. Returns 1 when written.
var setIfNewerScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, cached = pcall(cjson.decode, current)
	if ok and tonumber(cached.version) and tonumber(cached.version) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// SetBooking stores a booking snapshot in cache. An older snapshot never
// replaces a newer one, so a slow read cannot undo a transition's refresh.
func (s *CacheStore) SetBooking(ctx context.Context, b *domain.Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return setIfNewerScript.Run(ctx, s.client,
		[]string{bookingCachePrefix + b.ID},
		string(data), b.Version, BookingCacheTTL.Milliseconds(),
	).Err()
}

// InvalidateBooking removes a booking from cache.
func (s *CacheStore) InvalidateBooking(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, bookingCachePrefix+bookingID).Err()
}
