package geolocate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var (
	// ErrPermissionDenied is terminal for the attempt; the caller must
	// re-invoke after the user grants access.
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnavailable      = errors.New("location unavailable")
)

// DefaultTimeout bounds a whole acquisition attempt.
const DefaultTimeout = 10 * time.Second

// Provider is a platform location source. Implementations must return a
// fresh fix, never a cached one.
type Provider interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// Acquirer obtains device coordinates, preferring a high-accuracy source
// and falling back to a permission-gated secondary one. Every failure is
// non-fatal: callers substitute their configured default coordinate and
// offer a retry.
type Acquirer struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
}

func NewAcquirer(primary, fallback Provider) *Acquirer {
	return &Acquirer{primary: primary, fallback: fallback, timeout: DefaultTimeout}
}

// WithTimeout overrides the attempt deadline. Used by tests.
func (a *Acquirer) WithTimeout(d time.Duration) *Acquirer {
	a.timeout = d
	return a
}

func (a *Acquirer) Acquire(ctx context.Context) (Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	coord, err := a.locate(ctx, a.primary)
	if err == nil {
		return coord, nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrTimeout) {
		return Coordinate{}, err
	}

	log.WithError(err).Warn("high-accuracy location failed, trying fallback")

	if a.fallback == nil {
		return Coordinate{}, ErrUnavailable
	}
	coord, err = a.locate(ctx, a.fallback)
	if err != nil {
		return Coordinate{}, err
	}
	return coord, nil
}

func (a *Acquirer) locate(ctx context.Context, p Provider) (Coordinate, error) {
	if p == nil {
		return Coordinate{}, ErrUnavailable
	}
	coord, err := p.Locate(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return Coordinate{}, ErrTimeout
		}
		return Coordinate{}, err
	}
	return coord, nil
}

// BridgeProvider receives fixes pushed by the device shell through the
// gateway. Locate hands out only fixes that arrive after the call starts,
// which is the maximumAge=0 contract.
type BridgeProvider struct {
	mu      sync.Mutex
	waiters []chan Coordinate
}

func NewBridgeProvider() *BridgeProvider {
	return &BridgeProvider{}
}

// Report delivers a fresh fix from the device to all pending Locate calls.
func (b *BridgeProvider) Report(coord Coordinate) {
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, w := range waiters {
		w <- coord
	}
}

func (b *BridgeProvider) Locate(ctx context.Context) (Coordinate, error) {
	ch := make(chan Coordinate, 1)
	b.mu.Lock()
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	select {
	case coord := <-ch:
		return coord, nil
	case <-ctx.Done():
		b.mu.Lock()
		for i, w := range b.waiters {
			if w == ch {
				b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		return Coordinate{}, ctx.Err()
	}
}

// StaticProvider returns a fixed position. Useful as a fallback source on
// hosts without any location hardware.
type StaticProvider struct {
	Coord Coordinate
}

func (s StaticProvider) Locate(ctx context.Context) (Coordinate, error) {
	return s.Coord, nil
}
