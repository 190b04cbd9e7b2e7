package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ repository.DeviceLocker = (*DeviceLocker)(nil)

// DeviceLocker candado por dispositivo dentro del proceso (un canal con buffer 1 por dispositivo).
type DeviceLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewDeviceLocker wait es cuánto se espera un candado ocupado (0 = no esperar).
func NewDeviceLocker(wait time.Duration) *DeviceLocker {
	return &DeviceLocker{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *DeviceLocker) slot(deviceID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[deviceID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[deviceID] = ch
	}
	return ch
}

// Lock toma el candado o devuelve domain.ErrDeviceBusy.
func (l *DeviceLocker) Lock(ctx context.Context, deviceID string) (func(context.Context) error, error) {
	ch := l.slot(deviceID)
	select {
	case ch <- struct{}{}:
	default:
		if l.wait <= 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrDeviceBusy, deviceID)
		}
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		select {
		case ch <- struct{}{}:
		case <-timer.C:
			return nil, fmt.Errorf("%w: %s", domain.ErrDeviceBusy, deviceID)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
