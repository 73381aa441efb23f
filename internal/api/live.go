package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/kalambet/lumina/internal/audio"
	"github.com/kalambet/lumina/internal/concierge"
)

// liveFrame is one JSON message on the live bridge. Clients send "audio"
// (base64 PCM16 at 16kHz) and "stop"; the server sends "state", "audio"
// (base64 PCM16 at 24kHz) and "error".
type liveFrame struct {
	Type       string           `json:"type"`
	Data       string           `json:"data,omitempty"`
	Status     concierge.Status `json:"status,omitempty"`
	Transcript string           `json:"transcript,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type socketWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (s *socketWriter) send(f liveFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(f)
}

// audioFrames turns PCM written by a WriterSink into audio frames.
type audioFrames struct {
	out *socketWriter
}

func (a audioFrames) Write(p []byte) (int, error) {
	if err := a.out.send(liveFrame{Type: "audio", Data: base64.StdEncoding.EncodeToString(p)}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// socketMic yields frames pushed by the bridge client.
type socketMic struct {
	frames chan []float32
	closed chan struct{}
	once   sync.Once
}

func newSocketMic() *socketMic {
	return &socketMic{frames: make(chan []float32, 8), closed: make(chan struct{})}
}

func (m *socketMic) ReadFrame(ctx context.Context) ([]float32, error) {
	select {
	case f := <-m.frames:
		return f, nil
	case <-m.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *socketMic) push(f []float32) {
	select {
	case m.frames <- f:
	case <-m.closed:
	}
}

func (m *socketMic) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// handleLive bridges a websocket client to a live concierge session. The
// client's audio becomes the microphone; model audio is relayed back as it
// is scheduled for playback.
func handleLive(deps Deps) websocket.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		out := &socketWriter{enc: json.NewEncoder(conn)}

		if deps.Live.Dial == nil {
			out.send(liveFrame{Type: "error", Error: "live concierge is not configured"})
			return
		}

		mic := newSocketMic()
		sess := concierge.NewLiveSession(
			deps.Live.Dial,
			func(context.Context) (concierge.Microphone, error) { return mic, nil },
			audio.NewWriterSink(audioFrames{out: out}, audio.OutputSampleRate),
			deps.Live.Options,
		)
		sess.Observe(func(st concierge.State) {
			out.send(liveFrame{Type: "state", Status: st.Status, Transcript: st.Transcript})
		})

		section := conn.Request().URL.Query().Get("section")
		if section == "" && deps.Shell != nil {
			section = deps.Shell.Section()
		}
		if err := sess.Start(conn.Request().Context(), section); err != nil {
			out.send(liveFrame{Type: "error", Error: err.Error()})
			return
		}

		go func() {
			defer mic.Close()
			dec := json.NewDecoder(conn)
			for {
				var f liveFrame
				if err := dec.Decode(&f); err != nil {
					return
				}
				switch f.Type {
				case "audio":
					samples, err := audio.DecodeFragment(f.Data)
					if err != nil {
						slog.Warn("dropping client audio frame", "error", err)
						continue
					}
					mic.push(samples)
				case "stop":
					sess.Stop()
					return
				}
			}
		}()

		<-sess.Done()
	})
}
