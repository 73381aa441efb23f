package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/vault"
)

type ScanState string

const (
	ScanIdle     ScanState = "idle"
	ScanScanning ScanState = "scanning"
	ScanResult   ScanState = "result"
)

const revealDelay = 2500 * time.Millisecond

// Auditor scores a brand.
type Auditor interface {
	BrandAudit(ctx context.Context, name, industry string) gateway.Audit
}

// AuditStore persists audit records.
type AuditStore interface {
	SaveAudit(rec vault.AuditRecord) (vault.AuditRecord, error)
}

// Scanner is the brand audit flow.
type Scanner struct {
	*Machine[ScanState]

	auditor Auditor
	store   AuditStore
	timing  Timing

	mu     sync.Mutex
	result *vault.AuditRecord
}

func NewScanner(auditor Auditor, store AuditStore, timing Timing) *Scanner {
	return &Scanner{
		Machine: NewMachine(ScanIdle, map[ScanState][]ScanState{
			ScanIdle:     {ScanScanning},
			ScanScanning: {ScanResult, ScanIdle},
		}),
		auditor: auditor,
		store:   store,
		timing:  timing,
	}
}

// Scan audits name in industry, stores the record and reveals it after a
// short delay. Any failure returns the flow to idle.
func (s *Scanner) Scan(ctx context.Context, name, industry string) (vault.AuditRecord, error) {
	name, industry = strings.TrimSpace(name), strings.TrimSpace(industry)
	if name == "" || industry == "" {
		return vault.AuditRecord{}, fmt.Errorf("%w: business name and industry are required", ErrInvalidInput)
	}
	t, err := s.Begin(ScanScanning, ScanIdle)
	if err != nil {
		return vault.AuditRecord{}, err
	}

	a := s.auditor.BrandAudit(ctx, name, industry)
	rec, err := s.store.SaveAudit(vault.AuditRecord{
		ID:              uuid.NewString(),
		BusinessName:    name,
		Industry:        industry,
		Score:           a.Score,
		Critique:        a.Critique,
		Recommendations: a.Recommendations,
		CreatedAt:       s.timing.now(),
	})
	if err != nil {
		return vault.AuditRecord{}, s.fail(t, fmt.Errorf("saving audit: %w", err))
	}
	if err := s.timing.wait(ctx, revealDelay); err != nil {
		return vault.AuditRecord{}, s.fail(t, err)
	}
	if !s.Valid(t) {
		return rec, ErrAbandoned
	}
	s.mu.Lock()
	s.result = &rec
	s.mu.Unlock()
	if err := s.Advance(t, ScanResult); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Scanner) fail(t Ticket, cause error) error {
	if err := s.Advance(t, ScanIdle); err != nil {
		return err
	}
	return cause
}

// Result returns the revealed audit.
func (s *Scanner) Result() *vault.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Reset clears the result and abandons any scan in progress.
func (s *Scanner) Reset() {
	s.mu.Lock()
	s.result = nil
	s.mu.Unlock()
	s.Machine.Reset()
}
