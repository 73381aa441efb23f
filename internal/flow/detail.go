package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kalambet/lumina/internal/catalog"
	"github.com/kalambet/lumina/internal/gateway"
)

type DetailState string

const (
	DetailClosed  DetailState = "closed"
	DetailLoading DetailState = "loading"
	DetailOpen    DetailState = "open"
)

// Detail is a modal that loads content for a selected item. Selecting a
// new item while one is loading abandons the earlier load.
type Detail[T any] struct {
	*Machine[DetailState]

	fetch func(ctx context.Context, key string) T

	mu       sync.Mutex
	selected string
	content  T
}

func newDetail[T any](fetch func(ctx context.Context, key string) T) *Detail[T] {
	return &Detail[T]{
		Machine: NewMachine(DetailClosed, map[DetailState][]DetailState{
			DetailClosed:  {DetailLoading},
			DetailLoading: {DetailOpen},
			DetailOpen:    {DetailLoading},
		}),
		fetch: fetch,
	}
}

// Open selects key and loads its content.
func (d *Detail[T]) Open(ctx context.Context, key string) (T, error) {
	var zero T
	if d.State() == DetailLoading {
		d.Machine.Reset()
	}
	t, err := d.Begin(DetailLoading, DetailClosed, DetailOpen)
	if err != nil {
		return zero, err
	}
	d.mu.Lock()
	d.selected = key
	d.content = zero
	d.mu.Unlock()

	content := d.fetch(ctx, key)
	if !d.Valid(t) {
		return zero, ErrAbandoned
	}
	d.mu.Lock()
	d.content = content
	d.mu.Unlock()
	if err := d.Advance(t, DetailOpen); err != nil {
		return zero, err
	}
	return content, nil
}

// Selected returns the selected key and its content once loaded.
func (d *Detail[T]) Selected() (string, T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected, d.content
}

// Close dismisses the modal.
func (d *Detail[T]) Close() {
	var zero T
	d.mu.Lock()
	d.selected, d.content = "", zero
	d.mu.Unlock()
	d.Machine.Reset()
}

// PhaseAdvisor explains a process phase.
type PhaseAdvisor interface {
	PhaseDetails(ctx context.Context, phase string) string
}

// NewPhase is the process-phase detail modal.
func NewPhase(ai PhaseAdvisor) *Detail[string] {
	return newDetail(ai.PhaseDetails)
}

// OpenPhase resolves a phase id or title before loading.
func OpenPhase(ctx context.Context, d *Detail[string], phase string) (string, error) {
	p, ok := catalog.FindPhase(phase)
	if !ok {
		return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, strings.TrimSpace(phase))
	}
	return d.Open(ctx, p.Title)
}

// InsightAdvisor explains a studio service.
type InsightAdvisor interface {
	ServiceInsight(ctx context.Context, service string) gateway.ServiceInsight
}

// NewInsight is the service deep-dive modal.
func NewInsight(ai InsightAdvisor) *Detail[gateway.ServiceInsight] {
	return newDetail(ai.ServiceInsight)
}

// OpenInsight resolves a service title before loading.
func OpenInsight(ctx context.Context, d *Detail[gateway.ServiceInsight], service string) (gateway.ServiceInsight, error) {
	s, ok := catalog.FindService(service)
	if !ok {
		return gateway.ServiceInsight{}, fmt.Errorf("%w: unknown service %q", ErrInvalidInput, strings.TrimSpace(service))
	}
	return d.Open(ctx, s.Title)
}
