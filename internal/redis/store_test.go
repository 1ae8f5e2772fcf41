package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/domain"
)

func newTestLockStore(t *testing.T, tokens ...string) (*LockStore, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	store := NewLockStore(client)
	store.newToken = func() string {
		token := tokens[0]
		tokens = tokens[1:]
		return token
	}
	return store, mock
}

func TestLockStore_AcquireAndRelease(t *testing.T) {
	store, mock := newTestLockStore(t, "token-a", "token-b")
	ctx := context.Background()

	mock.ExpectSetNX("lock:booking:b-1", "token-a", 10*time.Second).SetVal(true)
	token, ok, err := store.AcquireBookingLock(ctx, "b-1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-a", token)

	mock.ExpectSetNX("lock:booking:b-1", "token-b", 10*time.Second).SetVal(false)
	token, ok, err = store.AcquireBookingLock(ctx, "b-1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must see the lock held")
	assert.Empty(t, token)

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:booking:b-1"}, "token-a").SetVal(int64(1))
	require.NoError(t, store.ReleaseBookingLock(ctx, "b-1", "token-a"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockStore_ReleaseKeepsAnotherHoldersLock(t *testing.T) {
	store, mock := newTestLockStore(t)

	// The lock expired and was taken by someone else, so the script deletes nothing.
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:booking:b-1"}, "token-a").SetVal(int64(0))
	err := store.ReleaseBookingLock(context.Background(), "b-1", "token-a")
	assert.ErrorIs(t, err, ErrLockNotHeld)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_BookingRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewCacheStore(client)
	ctx := context.Background()

	b := &domain.Booking{
		ID:          "b-1",
		RenterID:    "renter-1",
		ProviderID:  "owner-1",
		Status:      domain.BookingStatusActive,
		GrossAmount: domain.NewMoney(13500, "USD"),
		NetAmount:   domain.NewMoney(11475, "USD"),
		Version:     2,
	}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	mock.ExpectEvalSha(setIfNewerScript.Hash(), []string{"cache:booking:b-1"},
		string(data), int64(2), BookingCacheTTL.Milliseconds()).SetVal(int64(1))
	require.NoError(t, store.SetBooking(ctx, b))

	mock.ExpectGet("cache:booking:b-1").SetVal(string(data))
	cached, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, domain.BookingStatusActive, cached.Status)
	assert.Equal(t, int64(11475), cached.NetAmount.Amount)
	assert.Equal(t, int64(2), cached.Version)

	mock.ExpectDel("cache:booking:b-1").SetVal(1)
	require.NoError(t, store.InvalidateBooking(ctx, "b-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_SetBookingSkipsOlderSnapshot(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewCacheStore(client)

	stale := &domain.Booking{ID: "b-1", Status: domain.BookingStatusPending, Version: 1}
	data, err := json.Marshal(stale)
	require.NoError(t, err)

	// The script answers 0 when a newer version is already cached.
	mock.ExpectEvalSha(setIfNewerScript.Hash(), []string{"cache:booking:b-1"},
		string(data), int64(1), BookingCacheTTL.Milliseconds()).SetVal(int64(0))
	require.NoError(t, store.SetBooking(context.Background(), stale))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewCacheStore(client)

	mock.ExpectGet("cache:booking:nope").RedisNil()
	cached, err := store.GetBooking(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestEventBus_Publish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	bus := NewEventBus(client)

	ev := domain.BookingStatusChanged{BookingID: "b-1", Status: domain.BookingStatusCompleted, ActorID: "owner-1"}
	data, err := json.Marshal(envelope{Type: "booking.status_changed", Payload: ev})
	require.NoError(t, err)

	mock.ExpectPublish(SettlementChannel, data).SetVal(1)
	require.NoError(t, bus.Publish(context.Background(), "booking.status_changed", ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}
