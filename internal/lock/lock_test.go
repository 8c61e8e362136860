package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reservation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for the Redis lock primitives.
type fakeStore struct {
	mu     sync.Mutex
	locks  map[string]string
	expiry map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locks:  make(map[string]string),
		expiry: make(map[string]time.Time),
	}
}

func (f *fakeStore) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if holder, ok := f.locks[key]; ok && holder != "" {
		if time.Now().Before(f.expiry[key]) {
			return false, nil
		}
	}
	f.locks[key] = token
	f.expiry[key] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeStore) Unlock(ctx context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.locks[key] != token {
		return false, nil
	}
	delete(f.locks, key)
	delete(f.expiry, key)
	return true, nil
}

func newTestManager(store Store) *Manager {
	return NewManager(store, 100*time.Millisecond, 50*time.Millisecond, 2*time.Millisecond, 10*time.Millisecond)
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	token, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.True(t, m.Release(ctx, "product:1", token))

	// Released lock is immediately acquirable again, with a fresh token.
	token2, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestAcquireContentionTimesOut(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Acquire(ctx, "product:1")
	assert.ErrorIs(t, err, models.ErrLockTimeout)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireAfterExpiry(t *testing.T) {
	store := newFakeStore()
	// TTL shorter than the wait deadline: the second caller should win once
	// the first holder's lease lapses.
	m := NewManager(store, 10*time.Millisecond, 100*time.Millisecond, 2*time.Millisecond, 5*time.Millisecond)
	ctx := context.Background()

	staleToken, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)

	token, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)
	assert.NotEqual(t, staleToken, token)

	// The original holder's release must be a no-op now.
	assert.False(t, m.Release(ctx, "product:1", staleToken))

	// The current holder still owns the lock.
	assert.True(t, m.Release(ctx, "product:1", token))
}

func TestReleaseWrongTokenIsNoOp(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	token, err := m.Acquire(ctx, "product:1")
	require.NoError(t, err)

	assert.False(t, m.Release(ctx, "product:1", "not-the-token"))

	// Lock still held: a second acquire must time out.
	_, err = m.Acquire(ctx, "product:1")
	assert.ErrorIs(t, err, models.ErrLockTimeout)

	assert.True(t, m.Release(ctx, "product:1", token))
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, time.Second, 10*time.Second, 5*time.Millisecond, 50*time.Millisecond)

	_, err := m.Acquire(context.Background(), "product:1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = m.Acquire(ctx, "product:1")
	assert.True(t, errors.Is(err, context.Canceled))
}
