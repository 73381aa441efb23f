package audio

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// WriterSink plays fragments by writing them as PCM16 to w at their
// scheduled start time. Writes are serialized.
type WriterSink struct {
	mu   sync.Mutex
	w    io.Writer
	rate int
}

// NewWriterSink returns a sink writing audio at rate to w.
func NewWriterSink(w io.Writer, rate int) *WriterSink {
	return &WriterSink{w: w, rate: rate}
}

type timedVoice struct {
	mu      sync.Mutex
	start   *time.Timer
	end     *time.Timer
	stopped bool
}

func (v *timedVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	v.start.Stop()
	if v.end != nil {
		v.end.Stop()
	}
}

func (s *WriterSink) Schedule(at time.Time, samples []float32, done func()) (Voice, error) {
	pcm := EncodePCM16(samples)
	length := Duration(len(samples), s.rate)
	v := &timedVoice{}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.start = time.AfterFunc(time.Until(at), func() {
		v.mu.Lock()
		if v.stopped {
			v.mu.Unlock()
			return
		}
		v.end = time.AfterFunc(length, func() {
			v.mu.Lock()
			stopped := v.stopped
			v.mu.Unlock()
			if !stopped {
				done()
			}
		})
		v.mu.Unlock()

		s.mu.Lock()
		_, err := s.w.Write(pcm)
		s.mu.Unlock()
		if err != nil {
			slog.Warn("audio write failed", "error", err)
		}
	})
	return v, nil
}
