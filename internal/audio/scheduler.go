package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when audio is enqueued after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Voice is one scheduled fragment. Stop silences it without running its
// completion callback.
type Voice interface {
	Stop()
}

// Sink plays samples starting at a wall-clock time and calls done when the
// fragment has finished playing.
type Sink interface {
	Schedule(at time.Time, samples []float32, done func()) (Voice, error)
}

// Scheduler lays received fragments back to back so they play gaplessly in
// arrival order.
type Scheduler struct {
	sink  Sink
	clock Clock
	rate  int

	mu      sync.Mutex
	cursor  time.Time
	active  map[int]Voice
	nextID  int
	stopped bool
	onIdle  func()
}

// NewScheduler creates a Scheduler for audio at rate samples per second.
func NewScheduler(sink Sink, rate int) *Scheduler {
	return NewSchedulerWithClock(sink, rate, realClock{})
}

// NewSchedulerWithClock creates a Scheduler with a custom clock (for testing).
func NewSchedulerWithClock(sink Sink, rate int, clock Clock) *Scheduler {
	return &Scheduler{
		sink:   sink,
		clock:  clock,
		rate:   rate,
		active: make(map[int]Voice),
	}
}

// OnIdle registers fn to run whenever the last active fragment finishes.
func (s *Scheduler) OnIdle(fn func()) {
	s.mu.Lock()
	s.onIdle = fn
	s.mu.Unlock()
}

// Enqueue schedules samples at max(cursor, now) and advances the cursor by
// their duration. It returns the scheduled start time.
func (s *Scheduler) Enqueue(samples []float32) (time.Time, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return time.Time{}, ErrStopped
	}
	now := s.clock.Now()
	if s.cursor.Before(now) {
		s.cursor = now
	}
	start := s.cursor
	s.cursor = s.cursor.Add(Duration(len(samples), s.rate))
	id := s.nextID
	s.nextID++
	s.active[id] = nil
	s.mu.Unlock()

	voice, err := s.sink.Schedule(start, samples, func() { s.finished(id) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.active, id)
		return time.Time{}, err
	}
	if _, ok := s.active[id]; ok {
		s.active[id] = voice
	} else {
		// Flushed while scheduling.
		voice.Stop()
	}
	return start, nil
}

func (s *Scheduler) finished(id int) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	idle := len(s.active) == 0
	fn := s.onIdle
	s.mu.Unlock()

	if idle && fn != nil {
		fn()
	}
}

// Interrupt silences every active fragment and rewinds the cursor. Later
// fragments are still accepted.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
}

// Stop flushes playback and rejects further fragments. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.flush()
}

// flush stops every voice, then empties the active set. Caller holds s.mu.
func (s *Scheduler) flush() {
	for _, v := range s.active {
		if v != nil {
			v.Stop()
		}
	}
	clear(s.active)
	s.cursor = time.Time{}
}

// Active reports how many fragments are scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the start time the next fragment would be given if it
// arrived before then. Zero after a flush.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
