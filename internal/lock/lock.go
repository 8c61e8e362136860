package lock

import (
	"context"
	"fmt"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the key/value primitive the lock is built on. Implemented by
// redisclient.Client.
type Store interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) (bool, error)
}

// Manager grants short-lived, token-owned mutual exclusion over a key.
// The lock is advisory: it serializes the reservation step per product,
// nothing more. The TTL bounds how long a crashed holder can block others.
type Manager struct {
	store       Store
	ttl         time.Duration
	waitTimeout time.Duration
	retryBase   time.Duration
	retryMax    time.Duration
	logger      *zap.Logger
}

// NewManager creates a lock manager with the given TTL and retry policy.
func NewManager(store Store, ttl, waitTimeout, retryBase, retryMax time.Duration) *Manager {
	return &Manager{
		store:       store,
		ttl:         ttl,
		waitTimeout: waitTimeout,
		retryBase:   retryBase,
		retryMax:    retryMax,
		logger:      util.GetLogger(),
	}
}

// Acquire obtains the lock for key, retrying with exponential backoff until
// the overall wait deadline. Returns the owner token on success, or
// models.ErrLockTimeout when the deadline passes without acquisition.
func (m *Manager) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.New().String()
	start := time.Now()
	defer func() {
		util.LockAcquireLatency.Observe(time.Since(start).Seconds())
	}()

	deadline := start.Add(m.waitTimeout)
	backoff := m.retryBase

	for {
		ok, err := m.store.TryLock(ctx, key, token, m.ttl)
		if err != nil {
			return "", fmt.Errorf("lock acquire for %s: %w", key, err)
		}
		if ok {
			return token, nil
		}

		if time.Now().Add(backoff).After(deadline) {
			util.LockTimeoutsTotal.Inc()
			return "", fmt.Errorf("lock %s held after %s: %w", key, m.waitTimeout, models.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > m.retryMax {
			backoff = m.retryMax
		}
	}
}

// Release removes the lock if the token still owns it. A false return means
// the lock expired and was possibly re-acquired by someone else; that is not
// an error for the caller, only worth logging.
func (m *Manager) Release(ctx context.Context, key, token string) bool {
	released, err := m.store.Unlock(ctx, key, token)
	if err != nil {
		m.logger.Error("Failed to release lock", zap.String("key", key), zap.Error(err))
		return false
	}
	if !released {
		m.logger.Warn("Lock not owned at release time", zap.String("key", key))
	}
	return released
}
