package api

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kalambet/lumina/internal/audio"
	"github.com/kalambet/lumina/internal/concierge"
	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/gemini"
)

// upstream stands in for the live model connection.
type upstream struct {
	in        chan *gemini.LiveMessage
	audio     chan gemini.Blob
	closed    chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	texts []string
}

func newUpstream() *upstream {
	return &upstream{
		in:     make(chan *gemini.LiveMessage, 4),
		audio:  make(chan gemini.Blob, 16),
		closed: make(chan struct{}),
	}
}

func (u *upstream) SendText(text string) error {
	u.mu.Lock()
	u.texts = append(u.texts, text)
	u.mu.Unlock()
	return nil
}

func (u *upstream) SendAudio(chunk gemini.Blob) error {
	select {
	case u.audio <- chunk:
	default:
	}
	return nil
}

func (u *upstream) Receive() (*gemini.LiveMessage, error) {
	select {
	case msg := <-u.in:
		return msg, nil
	case <-u.closed:
		return nil, io.EOF
	}
}

func (u *upstream) Close() error {
	u.closeOnce.Do(func() { close(u.closed) })
	return nil
}

func dialLive(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/concierge/live" + query
	ws, err := websocket.Dial(url, "", srv.URL)
	if err != nil {
		t.Fatalf("dialing live bridge: %v", err)
	}
	ws.SetDeadline(time.Now().Add(5 * time.Second))
	return ws
}

// nextFrame reads frames until one of the given type arrives.
func nextFrame(t *testing.T, ws *websocket.Conn, typ string) liveFrame {
	t.Helper()
	for {
		var f liveFrame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			t.Fatalf("waiting for %q frame: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

func TestLiveBridgeNotConfigured(t *testing.T) {
	deps, _ := newTestDeps(t)
	srv := httptest.NewServer(NewHandler(deps))
	defer srv.Close()

	ws := dialLive(t, srv, "")
	defer ws.Close()

	f := nextFrame(t, ws, "error")
	if !strings.Contains(f.Error, "not configured") {
		t.Errorf("error = %q", f.Error)
	}
}

func TestLiveBridge(t *testing.T) {
	deps, _ := newTestDeps(t)
	up := newUpstream()
	configs := make(chan gemini.LiveConfig, 1)
	deps.Live = LiveDeps{
		Dial: func(_ context.Context, cfg gemini.LiveConfig) (concierge.LiveConn, error) {
			configs <- cfg
			return up, nil
		},
		Options: concierge.LiveOptions{Model: "live-model", Voice: "Zephyr"},
	}
	srv := httptest.NewServer(NewHandler(deps))
	defer srv.Close()

	ws := dialLive(t, srv, "?section=Services")
	defer ws.Close()

	st := nextFrame(t, ws, "state")
	if st.Status != concierge.StatusListening {
		t.Fatalf("first state = %q, want listening", st.Status)
	}
	cfg := <-configs
	if cfg.Model != "live-model" || cfg.Voice != "Zephyr" {
		t.Errorf("config = %+v", cfg)
	}
	if !strings.Contains(cfg.SystemInstruction, `"Services" section`) {
		t.Errorf("instruction does not name the section")
	}
	up.mu.Lock()
	texts := append([]string(nil), up.texts...)
	up.mu.Unlock()
	if len(texts) != 1 || texts[0] != gateway.LiveGreetingPrompt {
		t.Errorf("texts = %q", texts)
	}

	// Client audio is forwarded upstream as 16kHz PCM.
	frame := liveFrame{Type: "audio", Data: audio.EncodeFrame([]float32{0.25, -0.25, 0.5})}
	if err := websocket.JSON.Send(ws, frame); err != nil {
		t.Fatalf("sending audio: %v", err)
	}
	select {
	case blob := <-up.audio:
		if blob.MimeType != audio.InputMIME || blob.Data != frame.Data {
			t.Errorf("upstream blob = %+v", blob)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client audio was not forwarded")
	}

	// Model audio is relayed back to the client.
	reply := audio.EncodeFrame([]float32{0.1, 0.2, 0.3, 0.4})
	up.in <- &gemini.LiveMessage{ServerContent: &gemini.ServerContent{
		ModelTurn: &gemini.Content{Role: "model", Parts: []gemini.Part{{
			InlineData: &gemini.Blob{MimeType: audio.OutputMIME, Data: reply},
		}}},
	}}
	got := nextFrame(t, ws, "audio")
	if got.Data != reply {
		t.Errorf("relayed audio = %q, want %q", got.Data, reply)
	}

	if err := websocket.JSON.Send(ws, liveFrame{Type: "stop"}); err != nil {
		t.Fatalf("sending stop: %v", err)
	}
	select {
	case <-up.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection was not closed after stop")
	}
}
