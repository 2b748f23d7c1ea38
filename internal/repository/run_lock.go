package repository

import (
	"context"
	"time"

	drepo "QuotePull/internal/domain/repository"
)

// keyLocker is the subset of *cache.RedisCache the run lock needs.
type keyLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisRunLock holds one fixed key for the duration of a run.
type RedisRunLock struct {
	locks keyLocker
	key   string
	ttl   time.Duration
}

var _ drepo.RunLocker = (*RedisRunLock)(nil)

func NewRedisRunLock(locks keyLocker, key string, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{locks: locks, key: key, ttl: ttl}
}

func (l *RedisRunLock) TryLock(ctx context.Context) (bool, error) {
	return l.locks.TryLock(ctx, l.key, l.ttl)
}

func (l *RedisRunLock) Unlock(ctx context.Context) error {
	return l.locks.Unlock(ctx, l.key)
}
