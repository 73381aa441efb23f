package concierge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/lumina/internal/audio"
	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/gemini"
)

// Microphone yields captured frames of InputSampleRate audio.
type Microphone interface {
	ReadFrame(ctx context.Context) ([]float32, error)
	Close() error
}

// LiveConn is an open live connection. Implemented by *gemini.LiveSession.
type LiveConn interface {
	SendText(text string) error
	SendAudio(chunk gemini.Blob) error
	Receive() (*gemini.LiveMessage, error)
	Close() error
}

// DialFunc opens a live connection.
type DialFunc func(ctx context.Context, cfg gemini.LiveConfig) (LiveConn, error)

// MicFunc opens the microphone.
type MicFunc func(ctx context.Context) (Microphone, error)

// LiveOptions names the model and voice of a live session.
type LiveOptions struct {
	Model string
	Voice string
}

// State is a snapshot of the live session for observers.
type State struct {
	Status     Status `json:"status"`
	Transcript string `json:"transcript"`
}

// ErrStopped is returned by Start when Stop was called while the session
// was still connecting.
var ErrStopped = errors.New("live session stopped while connecting")

// liveRun is one connected session. Teardown only touches the run that is
// still current, so a late teardown cannot close a newer session.
type liveRun struct {
	conn   LiveConn
	mic    Microphone
	sched  *audio.Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

// LiveSession is the voice conversation: idle, listening, speaking, and back.
// There is at most one connection at a time and no automatic reconnect.
type LiveSession struct {
	dial   DialFunc
	mic    MicFunc
	sink   audio.Sink
	opts   LiveOptions
	logger *slog.Logger

	mu         sync.Mutex
	status     Status
	transcript string
	gen        uint64
	connecting context.CancelFunc
	run        *liveRun
	done       chan struct{}
	observers  []func(State)
}

// NewLiveSession creates an idle session that plays model audio through sink.
func NewLiveSession(dial DialFunc, mic MicFunc, sink audio.Sink, opts LiveOptions) *LiveSession {
	return &LiveSession{
		dial:   dial,
		mic:    mic,
		sink:   sink,
		opts:   opts,
		logger: slog.Default(),
		status: StatusIdle,
	}
}

// Observe registers fn to receive every state change.
func (s *LiveSession) Observe(fn func(State)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// State returns the current status and live transcript.
func (s *LiveSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Status: s.status, Transcript: s.transcript}
}

// Done is closed when the most recent session has been torn down. It returns
// a closed channel when no session was ever connected.
func (s *LiveSession) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// setLocked updates state and returns the observers to notify. Caller holds s.mu.
func (s *LiveSession) setLocked(status Status, transcript string) (State, []func(State)) {
	s.status = status
	s.transcript = transcript
	obs := make([]func(State), len(s.observers))
	copy(obs, s.observers)
	return State{Status: status, Transcript: transcript}, obs
}

func notify(st State, obs []func(State)) {
	for _, fn := range obs {
		fn(st)
	}
}

// Start opens the microphone and the live connection for a visitor on
// section, asks the model to greet them, then streams audio both ways until
// Stop or an error.
func (s *LiveSession) Start(ctx context.Context, section string) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	// Reserve the session while dialing.
	s.gen++
	gen := s.gen
	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()
	s.connecting = cancelDial
	s.status = StatusListening
	s.mu.Unlock()

	mic, err := s.mic(dialCtx)
	if err != nil {
		s.abortStart(gen)
		return fmt.Errorf("opening microphone: %w", err)
	}

	conn, err := s.dial(dialCtx, gemini.LiveConfig{
		Model:              s.opts.Model,
		SystemInstruction:  gateway.LiveInstruction(section),
		Voice:              s.opts.Voice,
		InputTranscription: true,
	})
	if err != nil {
		mic.Close()
		if !s.abortStart(gen) {
			return ErrStopped
		}
		return fmt.Errorf("connecting live session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &liveRun{conn: conn, mic: mic, cancel: cancel, done: make(chan struct{})}
	run.sched = audio.NewScheduler(s.sink, audio.OutputSampleRate)
	run.sched.OnIdle(func() { s.playbackIdle(run) })

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		cancel()
		conn.Close()
		mic.Close()
		run.sched.Stop()
		return ErrStopped
	}
	s.connecting = nil
	s.run = run
	s.done = run.done
	st, obs := s.setLocked(StatusListening, "")
	s.mu.Unlock()
	notify(st, obs)

	if err := conn.SendText(gateway.LiveGreetingPrompt); err != nil {
		s.stopRun(run)
		close(run.done)
		return fmt.Errorf("sending greeting: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.capture(gctx, mic, conn) })
	g.Go(func() error { return s.receive(run) })
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		mic.Close()
		return nil
	})

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("live session ended", "error", err)
		}
		s.stopRun(run)
		close(run.done)
	}()
	return nil
}

// abortStart returns the session to idle after a failed connect. It reports
// false when Stop already cancelled this attempt.
func (s *LiveSession) abortStart(gen uint64) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.connecting = nil
	st, obs := s.setLocked(StatusIdle, "")
	s.mu.Unlock()
	notify(st, obs)
	return true
}

func (s *LiveSession) capture(ctx context.Context, mic Microphone, conn LiveConn) error {
	for {
		frame, err := mic.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("microphone closed: %w", err)
			}
			return fmt.Errorf("reading microphone: %w", err)
		}
		if len(frame) == 0 {
			continue
		}
		if err := conn.SendAudio(gemini.Blob{MimeType: audio.InputMIME, Data: audio.EncodeFrame(frame)}); err != nil {
			return fmt.Errorf("sending audio: %w", err)
		}
	}
}

func (s *LiveSession) receive(run *liveRun) error {
	for {
		msg, err := run.conn.Receive()
		if err != nil {
			return fmt.Errorf("receiving: %w", err)
		}
		s.handle(run, msg)
	}
}

func (s *LiveSession) handle(run *liveRun, msg *gemini.LiveMessage) {
	sc := msg.ServerContent
	if sc == nil {
		return
	}

	if sc.InputTranscription != nil {
		s.update(run, func(st *State) { st.Transcript = sc.InputTranscription.Text })
	}
	if sc.TurnComplete {
		s.update(run, func(st *State) { st.Transcript = "" })
	}
	if blob, ok := sc.Audio(); ok {
		samples, err := audio.DecodeFragment(blob.Data)
		if err != nil {
			s.logger.Warn("dropping audio fragment", "error", err)
		} else {
			s.update(run, func(st *State) { st.Status = StatusSpeaking })
			if _, err := run.sched.Enqueue(samples); err != nil && !errors.Is(err, audio.ErrStopped) {
				s.logger.Warn("scheduling audio failed", "error", err)
			}
		}
	}
	if sc.Interrupted {
		run.sched.Interrupt()
		s.update(run, func(st *State) {
			st.Status = StatusListening
			st.Transcript = ""
		})
	}
}

// update applies fn while run is the current session.
func (s *LiveSession) update(run *liveRun, fn func(*State)) {
	s.mu.Lock()
	if s.run != run {
		s.mu.Unlock()
		return
	}
	cur := State{Status: s.status, Transcript: s.transcript}
	fn(&cur)
	st, obs := s.setLocked(cur.Status, cur.Transcript)
	s.mu.Unlock()
	notify(st, obs)
}

// playbackIdle runs when the last scheduled fragment of run has finished.
func (s *LiveSession) playbackIdle(run *liveRun) {
	s.update(run, func(st *State) {
		st.Status = StatusListening
		st.Transcript = ""
	})
}

// Stop tears the session down: microphone, connection, and playback. A Stop
// during connect cancels the attempt. Safe to call more than once and when no
// session is running.
func (s *LiveSession) Stop() {
	s.mu.Lock()
	if run := s.run; run != nil {
		s.mu.Unlock()
		s.stopRun(run)
		return
	}
	if s.connecting == nil {
		s.mu.Unlock()
		return
	}
	s.connecting()
	s.connecting = nil
	s.gen++
	st, obs := s.setLocked(StatusIdle, "")
	s.mu.Unlock()
	notify(st, obs)
}

// stopRun tears run down if it is still the current session.
func (s *LiveSession) stopRun(run *liveRun) {
	s.mu.Lock()
	if s.run != run {
		s.mu.Unlock()
		return
	}
	s.run = nil
	st, obs := s.setLocked(StatusIdle, "")
	s.mu.Unlock()

	run.cancel()
	run.mic.Close()
	run.conn.Close()
	run.sched.Stop()
	notify(st, obs)
}
