package ports

import (
	"context"
	"math/rand/v2"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleeper pauses the caller. Implementations must return ctx.Err() when the
// context is cancelled before the duration elapses.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemSleeper struct{}

func (SystemSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Random is the subset of *math/rand/v2.Rand the engines draw from.
type Random interface {
	IntN(n int) int
	Float64() float64
}

// SystemRandom draws from the goroutine-safe top-level math/rand/v2 source.
type SystemRandom struct{}

func (SystemRandom) IntN(n int) int {
	return rand.IntN(n)
}

func (SystemRandom) Float64() float64 {
	return rand.Float64()
}
