package geolocate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type providerFunc func(ctx context.Context) (Coordinate, error)

func (f providerFunc) Locate(ctx context.Context) (Coordinate, error) { return f(ctx) }

func TestAcquirePrimarySuccess(t *testing.T) {
	paris := Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	fallbackCalled := false

	a := NewAcquirer(
		StaticProvider{Coord: paris},
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			fallbackCalled = true
			return Coordinate{}, nil
		}),
	)

	coord, err := a.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, paris, coord)
	require.False(t, fallbackCalled, "fallback must not run when primary succeeds")
}

func TestAcquirePermissionDeniedIsTerminal(t *testing.T) {
	fallbackCalled := false

	a := NewAcquirer(
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			return Coordinate{}, ErrPermissionDenied
		}),
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			fallbackCalled = true
			return Coordinate{Latitude: 1}, nil
		}),
	)

	_, err := a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.False(t, fallbackCalled, "permission denial must not fall through")
}

func TestAcquireTimesOut(t *testing.T) {
	a := NewAcquirer(
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			<-ctx.Done()
			return Coordinate{}, ctx.Err()
		}),
		nil,
	).WithTimeout(20 * time.Millisecond)

	_, err := a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestAcquireFallsBackOnUnavailable(t *testing.T) {
	lyon := Coordinate{Latitude: 45.7640, Longitude: 4.8357}

	a := NewAcquirer(
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			return Coordinate{}, errors.New("no GPS lock")
		}),
		StaticProvider{Coord: lyon},
	)

	coord, err := a.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, lyon, coord)
}

func TestAcquireNoFallbackConfigured(t *testing.T) {
	a := NewAcquirer(
		providerFunc(func(ctx context.Context) (Coordinate, error) {
			return Coordinate{}, errors.New("no GPS lock")
		}),
		nil,
	)

	_, err := a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestBridgeProviderDeliversFreshFix(t *testing.T) {
	b := NewBridgeProvider()
	fix := Coordinate{Latitude: 43.2965, Longitude: 5.3698}

	done := make(chan struct{})
	var got Coordinate
	var err error
	go func() {
		got, err = b.Locate(context.Background())
		close(done)
	}()

	// Give Locate time to register its waiter before pushing the fix.
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiters) == 1
	}, time.Second, 5*time.Millisecond)

	b.Report(fix)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Locate did not return after Report")
	}
	require.NoError(t, err)
	require.Equal(t, fix, got)
}

func TestBridgeProviderHonorsCancellation(t *testing.T) {
	b := NewBridgeProvider()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Locate(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The cancelled waiter must not leak; a later Report finds no one.
	b.mu.Lock()
	require.Empty(t, b.waiters)
	b.mu.Unlock()
	b.Report(Coordinate{Latitude: 1})
}

func TestBridgeProviderFanOut(t *testing.T) {
	b := NewBridgeProvider()
	fix := Coordinate{Latitude: 47.2184, Longitude: -1.5536}

	type result struct {
		coord Coordinate
		err   error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			coord, err := b.Locate(context.Background())
			results <- result{coord, err}
		}()
	}

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiters) == 2
	}, time.Second, 5*time.Millisecond)

	b.Report(fix)

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			require.Equal(t, fix, r.coord)
		case <-time.After(time.Second):
			t.Fatal("waiter never received the fix")
		}
	}
}
