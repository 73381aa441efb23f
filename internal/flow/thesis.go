package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kalambet/lumina/internal/vault"
)

type ThesisState string

const (
	ThesisIdle        ThesisState = "idle"
	ThesisDownloading ThesisState = "downloading"
	ThesisReady       ThesisState = "ready"
)

// DownloadSteps are shown in turn while the thesis is drafted.
var DownloadSteps = []string{
	"Establishing encrypted connection...",
	"Retrieving Lumina Digital Manifesto...",
	"Synthesizing strategic philosophies...",
	"Authenticating architectural blueprints...",
	"Finalizing document export...",
}

const (
	stepDelay   = 1500 * time.Millisecond
	finishDelay = 1000 * time.Millisecond
)

// Thesist drafts the studio's brand thesis.
type Thesist interface {
	BrandThesis(ctx context.Context) string
}

// ThesisStore persists theses.
type ThesisStore interface {
	SaveThesis(content string) (vault.ThesisRecord, error)
}

// Thesis is the brand thesis download flow.
type Thesis struct {
	*Machine[ThesisState]

	ai     Thesist
	store  ThesisStore
	timing Timing

	mu     sync.Mutex
	step   int
	result *vault.ThesisRecord
}

func NewThesis(ai Thesist, store ThesisStore, timing Timing) *Thesis {
	return &Thesis{
		Machine: NewMachine(ThesisIdle, map[ThesisState][]ThesisState{
			ThesisIdle:        {ThesisDownloading},
			ThesisDownloading: {ThesisReady, ThesisIdle},
			ThesisReady:       {ThesisDownloading},
		}),
		ai:     ai,
		store:  store,
		timing: timing,
	}
}

// Step returns the progress line currently shown.
func (th *Thesis) Step() string {
	th.mu.Lock()
	defer th.mu.Unlock()
	return DownloadSteps[th.step]
}

func (th *Thesis) setStep(i int) {
	th.mu.Lock()
	th.step = i
	th.mu.Unlock()
}

// Download drafts the thesis while cycling the progress steps, stores it
// and settles in ready.
func (th *Thesis) Download(ctx context.Context) (vault.ThesisRecord, error) {
	t, err := th.Begin(ThesisDownloading, ThesisIdle, ThesisReady)
	if err != nil {
		return vault.ThesisRecord{}, err
	}
	th.setStep(0)

	stepCtx, stopSteps := context.WithCancel(ctx)
	stepped := make(chan struct{})
	go func() {
		defer close(stepped)
		for i := 1; i < len(DownloadSteps); i++ {
			if th.timing.wait(stepCtx, stepDelay) != nil || !th.Valid(t) {
				return
			}
			th.setStep(i)
		}
	}()

	content := th.ai.BrandThesis(ctx)
	rec, saveErr := th.store.SaveThesis(content)
	stopSteps()
	<-stepped
	th.setStep(len(DownloadSteps) - 1)
	waitErr := th.timing.wait(ctx, finishDelay)

	if !th.Valid(t) {
		return rec, ErrAbandoned
	}
	if saveErr != nil || waitErr != nil {
		if err := th.Advance(t, ThesisIdle); err != nil {
			return vault.ThesisRecord{}, err
		}
		if saveErr != nil {
			return vault.ThesisRecord{}, fmt.Errorf("saving thesis: %w", saveErr)
		}
		return vault.ThesisRecord{}, waitErr
	}
	th.mu.Lock()
	th.result = &rec
	th.mu.Unlock()
	if err := th.Advance(t, ThesisReady); err != nil {
		return rec, err
	}
	return rec, nil
}

// Result returns the last drafted thesis.
func (th *Thesis) Result() *vault.ThesisRecord {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.result
}
