package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const setupTimeout = 30 * time.Second

// LiveConfig describes a bidirectional audio session.
type LiveConfig struct {
	Model              string
	SystemInstruction  string
	Voice              string
	InputTranscription bool
}

type liveSetup struct {
	Model                   string            `json:"model"`
	GenerationConfig        *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction       *Content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription *struct{}         `json:"inputAudioTranscription,omitempty"`
}

type liveClientMessage struct {
	Setup         *liveSetup         `json:"setup,omitempty"`
	ClientContent *liveClientContent `json:"clientContent,omitempty"`
	RealtimeInput *liveRealtimeInput `json:"realtimeInput,omitempty"`
}

type liveClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type liveRealtimeInput struct {
	Audio *Blob `json:"audio,omitempty"`
}

// LiveMessage is one server frame of a live session.
type LiveMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	GoAway        *struct {
		TimeLeft string `json:"timeLeft"`
	} `json:"goAway,omitempty"`
}

type ServerContent struct {
	ModelTurn          *Content       `json:"modelTurn,omitempty"`
	TurnComplete       bool           `json:"turnComplete,omitempty"`
	Interrupted        bool           `json:"interrupted,omitempty"`
	InputTranscription *Transcription `json:"inputTranscription,omitempty"`
}

type Transcription struct {
	Text string `json:"text"`
}

// Audio returns the first inline audio blob of the model turn.
func (sc *ServerContent) Audio() (*Blob, bool) {
	if sc == nil || sc.ModelTurn == nil {
		return nil, false
	}
	for _, p := range sc.ModelTurn.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData, true
		}
	}
	return nil, false
}

// LiveSession is an open bidirectional connection. Send methods are safe for
// concurrent use; Receive must be called from a single goroutine.
type LiveSession struct {
	conn *websocket.Conn
	dec  *json.Decoder

	mu  sync.Mutex
	enc *json.Encoder

	closeOnce sync.Once
	closeErr  error
}

// Live dials the live endpoint, sends the setup frame and waits for the
// server to acknowledge it.
func (c *Client) Live(ctx context.Context, cfg LiveConfig) (*LiveSession, error) {
	wsURL := c.liveURL
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(wsURL, "?") {
			sep = "&"
		}
		wsURL += sep + "key=" + url.QueryEscape(c.apiKey)
	}

	wsCfg, err := websocket.NewConfig(wsURL, "http://localhost/")
	if err != nil {
		return nil, fmt.Errorf("configuring live connection: %w", err)
	}
	conn, err := wsCfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialing live endpoint: %w", err)
	}

	s := &LiveSession{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}

	setup := &liveSetup{
		Model: "models/" + strings.TrimPrefix(cfg.Model, "models/"),
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{ModalityAudio},
		},
	}
	if cfg.Voice != "" {
		setup.GenerationConfig.SpeechConfig = Voice(cfg.Voice)
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: cfg.SystemInstruction}}}
	}
	if cfg.InputTranscription {
		setup.InputAudioTranscription = &struct{}{}
	}

	if err := s.send(liveClientMessage{Setup: setup}); err != nil {
		s.Close()
		return nil, fmt.Errorf("sending setup: %w", err)
	}

	deadline := time.Now().Add(setupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	for {
		msg, err := s.Receive()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("waiting for setup: %w", err)
		}
		if msg.SetupComplete != nil {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})

	return s, nil
}

func (s *LiveSession) send(msg liveClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(msg)
}

// SendText sends a complete user turn.
func (s *LiveSession) SendText(text string) error {
	return s.send(liveClientMessage{ClientContent: &liveClientContent{
		Turns:        []Content{UserText(text)},
		TurnComplete: true,
	}})
}

// SendAudio streams one chunk of captured audio.
func (s *LiveSession) SendAudio(chunk Blob) error {
	return s.send(liveClientMessage{RealtimeInput: &liveRealtimeInput{Audio: &chunk}})
}

// Receive blocks for the next server frame.
func (s *LiveSession) Receive() (*LiveMessage, error) {
	var msg LiveMessage
	if err := s.dec.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Close closes the connection. Safe to call more than once.
func (s *LiveSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// IsClosed reports whether err came from reading a closed connection.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
