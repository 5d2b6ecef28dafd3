package application

import (
	"context"
	"time"

	"github.com/bnema/pogo-accounts/internal/ports"
)

// pacer spaces remote calls with randomized pauses so that a session never
// produces uniform, machine-like timing.
type pacer struct {
	sleeper ports.Sleeper
	random  ports.Random
}

// pause sleeps for a uniformly drawn duration in [min, max].
func (p pacer) pause(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(p.random.Float64() * float64(max-min))
	}
	return p.sleeper.Sleep(ctx, d)
}

// between draws an integer in [lo, hi].
func (p pacer) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + p.random.IntN(hi-lo+1)
}

func (p pacer) chance(probability float64) bool {
	return p.random.Float64() < probability
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
