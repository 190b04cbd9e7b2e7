package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ repository.DeviceLocker = (*DeviceLocker)(nil)

const lockKeyPrefix = "zatca:lock:"

// DeviceLocker candado distribuido por dispositivo (un único escritor por cadena).
type DeviceLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewDeviceLocker crea el locker. ttl acota cuánto puede durar una emisión;
// wait es cuánto se espera a que otro proceso libere el candado (0 = no esperar).
func NewDeviceLocker(client goredis.UniversalClient, ttl, wait time.Duration) *DeviceLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DeviceLocker{locker: redislock.New(client), ttl: ttl, wait: wait}
}

// Lock obtiene el candado o devuelve domain.ErrDeviceBusy.
func (l *DeviceLocker) Lock(ctx context.Context, deviceID string) (func(context.Context) error, error) {
	opts := &redislock.Options{RetryStrategy: redislock.NoRetry()}
	if l.wait > 0 {
		backoff := 50 * time.Millisecond
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(backoff), int(l.wait/backoff))
	}
	lock, err := l.locker.Obtain(ctx, lockKeyPrefix+deviceID, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeviceBusy, deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: obtener candado %s: %w", deviceID, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("redis: liberar candado %s: %w", deviceID, err)
		}
		return nil
	}, nil
}
