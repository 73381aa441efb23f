// Package flow holds the studio's view and form state machines. Each flow
// moves through a declared set of states; work that outlives a reset is
// discarded when it completes.
package flow

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned for a move the flow's table forbids.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrBusy is returned when a flow is asked to start while running.
	ErrBusy = errors.New("flow busy")
	// ErrAbandoned is returned when a run was reset before it completed.
	ErrAbandoned = errors.New("flow abandoned")
	// ErrInvalidInput is returned when required fields are missing.
	ErrInvalidInput = errors.New("invalid input")
)

// Ticket identifies one run of a flow. It stops being valid when the flow
// is reset or abandoned.
type Ticket struct {
	epoch uint64
}

// Machine is a state holder with a fixed transition table.
type Machine[S comparable] struct {
	initial     S
	transitions map[S][]S

	mu        sync.Mutex
	state     S
	epoch     uint64
	history   []S
	observers []func(from, to S)
}

// NewMachine starts in initial. table lists, for each state, the states it
// may move to. Reset to initial is always allowed.
func NewMachine[S comparable](initial S, table map[S][]S) *Machine[S] {
	return &Machine[S]{
		initial:     initial,
		transitions: table,
		state:       initial,
		history:     []S{initial},
	}
}

// State returns the current state.
func (m *Machine[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns every state entered, oldest first.
func (m *Machine[S]) History() []S {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]S, len(m.history))
	copy(out, m.history)
	return out
}

// Observe registers fn to run after every transition.
func (m *Machine[S]) Observe(fn func(from, to S)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Machine[S]) allowed(from, to S) bool {
	for _, s := range m.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Begin moves from one of the start states to busy and returns a ticket
// for the run. It fails with ErrBusy when the flow is elsewhere.
func (m *Machine[S]) Begin(busy S, from ...S) (Ticket, error) {
	m.mu.Lock()
	ok := false
	for _, s := range from {
		if m.state == s {
			ok = true
			break
		}
	}
	if !ok {
		cur := m.state
		m.mu.Unlock()
		return Ticket{}, fmt.Errorf("%w: in state %v", ErrBusy, cur)
	}
	m.epoch++
	t := Ticket{epoch: m.epoch}
	prev, obs, err := m.moveLocked(busy)
	m.mu.Unlock()
	if err != nil {
		return Ticket{}, err
	}
	notify(obs, prev, busy)
	return t, nil
}

// Transition moves to to, subject to the table.
func (m *Machine[S]) Transition(to S) error {
	m.mu.Lock()
	prev, obs, err := m.moveLocked(to)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	notify(obs, prev, to)
	return nil
}

// Advance is Transition for the run identified by t. A stale ticket returns
// ErrAbandoned and leaves the state untouched.
func (m *Machine[S]) Advance(t Ticket, to S) error {
	m.mu.Lock()
	if t.epoch != m.epoch {
		m.mu.Unlock()
		return ErrAbandoned
	}
	prev, obs, err := m.moveLocked(to)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	notify(obs, prev, to)
	return nil
}

// Valid reports whether t is still the current run.
func (m *Machine[S]) Valid(t Ticket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.epoch == m.epoch
}

// Reset abandons any run in progress and returns to the initial state.
func (m *Machine[S]) Reset() {
	m.mu.Lock()
	m.epoch++
	prev := m.state
	m.state = m.initial
	m.history = append(m.history, m.initial)
	obs := m.snapshotObservers()
	m.mu.Unlock()
	notify(obs, prev, m.initial)
}

// Abandon invalidates outstanding tickets without changing state.
func (m *Machine[S]) Abandon() {
	m.Claim()
}

// Claim invalidates outstanding tickets and returns a fresh one for a run
// that starts from the current state.
func (m *Machine[S]) Claim() Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return Ticket{epoch: m.epoch}
}

// moveLocked performs a checked transition. Caller holds m.mu.
func (m *Machine[S]) moveLocked(to S) (S, []func(from, to S), error) {
	from := m.state
	if !m.allowed(from, to) {
		return from, nil, fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return from, m.snapshotObservers(), nil
}

func (m *Machine[S]) snapshotObservers() []func(from, to S) {
	obs := make([]func(from, to S), len(m.observers))
	copy(obs, m.observers)
	return obs
}

func notify[S any](obs []func(from, to S), from, to S) {
	for _, fn := range obs {
		fn(from, to)
	}
}
