package flow

import (
	"context"
	"time"
)

// Sleeper waits for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Timing holds the pacing shared by all flows. Every artificial delay is
// multiplied by Scale; zero disables them.
type Timing struct {
	Scale   float64
	Sleeper Sleeper
	Clock   Clock
}

// DefaultTiming paces flows in real time.
func DefaultTiming() Timing {
	return Timing{Scale: 1, Sleeper: realSleeper{}, Clock: realClock{}}
}

func (t Timing) wait(ctx context.Context, d time.Duration) error {
	if t.Scale <= 0 {
		return ctx.Err()
	}
	s := t.Sleeper
	if s == nil {
		s = realSleeper{}
	}
	return s.Sleep(ctx, time.Duration(float64(d)*t.Scale))
}

func (t Timing) now() time.Time {
	if t.Clock == nil {
		return time.Now().UTC()
	}
	return t.Clock.Now().UTC()
}
