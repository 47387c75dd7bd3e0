package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/config"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

const (
	lockPrefix     = "audit:run:"
	DefaultLockTTL = 30 * time.Minute
)

// RunLock serialises audit runs of one tenant across processes.
type RunLock struct {
	locker *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRunLock(locker *redislock.Client, ttl time.Duration, log logrus.FieldLogger) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{locker: locker, ttl: ttl, log: log}
}

func lockKey(tenant string) string { return lockPrefix + tenant }

// Acquire fails with audit.ErrRunInProgress when another process holds the tenant's lock.
func (l *RunLock) Acquire(ctx context.Context, tenant string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockKey(tenant), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, audit.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain run lock: %w", err)
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(l.log, "cache", "RunLock.Release", "release run lock", tenant, err)
		}
	}, nil
}
