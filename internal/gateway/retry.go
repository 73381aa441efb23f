package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kalambet/lumina/internal/gemini"
)

// RetryPolicy controls backoff on quota errors.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultPolicy allows two retries, waiting 1.5s then 3.75s.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialBackoff: 1500 * time.Millisecond, Multiplier: 2.5}
}

// Sleeper waits between attempts.
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

// IsQuotaError reports whether err means the upstream quota is exhausted.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 429 || apiErr.Code == "RESOURCE_EXHAUSTED" {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Retry calls fn until it succeeds, fails with a non-quota error, or the
// policy's retries are spent. At most MaxRetries+1 attempts are made.
func Retry[T any](ctx context.Context, p RetryPolicy, s Sleeper, fn func(context.Context) (T, error)) (T, error) {
	delay := p.InitialBackoff
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsQuotaError(err) || attempt >= p.MaxRetries {
			return v, err
		}
		if serr := s.Sleep(ctx, delay); serr != nil {
			return v, serr
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
}
