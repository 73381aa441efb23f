package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kalambet/lumina/internal/vault"
)

type VisionState string

const (
	VisionIdle         VisionState = "idle"
	VisionArchitecting VisionState = "architecting"
	VisionVisionary    VisionState = "visionary"
)

// Visionary drafts a digital vision.
type Visionary interface {
	DigitalVision(ctx context.Context, industry, keyword string) vault.VisionData
}

// VisionStore persists visions.
type VisionStore interface {
	SaveVision(rec vault.VisionRecord) (vault.VisionRecord, error)
}

// Vision is the vision generator flow.
type Vision struct {
	*Machine[VisionState]

	ai    Visionary
	store VisionStore

	mu     sync.Mutex
	result *vault.VisionRecord
}

func NewVision(ai Visionary, store VisionStore) *Vision {
	return &Vision{
		Machine: NewMachine(VisionIdle, map[VisionState][]VisionState{
			VisionIdle:         {VisionArchitecting},
			VisionArchitecting: {VisionVisionary, VisionIdle},
		}),
		ai:    ai,
		store: store,
	}
}

// Generate drafts and stores a vision for industry and keyword.
func (v *Vision) Generate(ctx context.Context, industry, keyword string) (vault.VisionRecord, error) {
	industry, keyword = strings.TrimSpace(industry), strings.TrimSpace(keyword)
	if industry == "" || keyword == "" {
		return vault.VisionRecord{}, fmt.Errorf("%w: industry and keyword are required", ErrInvalidInput)
	}
	t, err := v.Begin(VisionArchitecting, VisionIdle)
	if err != nil {
		return vault.VisionRecord{}, err
	}

	data := v.ai.DigitalVision(ctx, industry, keyword)
	rec, err := v.store.SaveVision(vault.VisionRecord{
		ID:       uuid.NewString(),
		Industry: industry,
		Keyword:  keyword,
		Data:     data,
	})
	if !v.Valid(t) {
		return rec, ErrAbandoned
	}
	if err != nil {
		if aerr := v.Advance(t, VisionIdle); aerr != nil {
			return vault.VisionRecord{}, aerr
		}
		return vault.VisionRecord{}, fmt.Errorf("saving vision: %w", err)
	}
	v.mu.Lock()
	v.result = &rec
	v.mu.Unlock()
	if err := v.Advance(t, VisionVisionary); err != nil {
		return rec, err
	}
	return rec, nil
}

// Result returns the last generated vision.
func (v *Vision) Result() *vault.VisionRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// Reset clears the result and abandons any generation in progress.
func (v *Vision) Reset() {
	v.mu.Lock()
	v.result = nil
	v.mu.Unlock()
	v.Machine.Reset()
}
