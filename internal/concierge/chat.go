// Package concierge runs the studio assistant: a streamed text chat and a
// live voice session.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/gemini"
)

// ErrBusy is returned when a request arrives while the previous one is
// still in progress.
var ErrBusy = errors.New("concierge busy")

// Status of the assistant as seen by the visitor.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
	StatusThinking  Status = "thinking"
	StatusSpeaking  Status = "speaking"
)

// Message is one chat turn. Role is "user" or "model".
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Asker streams a concierge reply. Implemented by gateway.Gateway.
type Asker interface {
	AskConcierge(ctx context.Context, message, section string, history []gemini.Content) (*gemini.Stream, error)
}

// Chat is the text conversation. History always starts with the greeting.
type Chat struct {
	asker Asker

	mu       sync.Mutex
	history  []Message
	thinking bool
}

// NewChat returns a Chat seeded with the greeting.
func NewChat(asker Asker) *Chat {
	c := &Chat{asker: asker}
	c.history = greetingHistory()
	return c
}

func greetingHistory() []Message {
	return []Message{{Role: "model", Text: gateway.Greeting}}
}

// History returns a copy of the conversation so far.
func (c *Chat) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Status reports thinking while a reply is streaming, idle otherwise.
func (c *Chat) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thinking {
		return StatusThinking
	}
	return StatusIdle
}

// Clear resets the conversation to the greeting.
func (c *Chat) Clear() {
	c.mu.Lock()
	c.history = greetingHistory()
	c.mu.Unlock()
}

// Send asks the concierge about text on behalf of a visitor viewing section.
// Each fragment is passed to onFragment as it arrives; the full reply is
// returned. Blank input is ignored. A send while another is in flight
// returns ErrBusy.
func (c *Chat) Send(ctx context.Context, text, section string, onFragment func(string)) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	c.mu.Lock()
	if c.thinking {
		c.mu.Unlock()
		return "", ErrBusy
	}
	prior := make([]gemini.Content, 0, len(c.history))
	for _, m := range c.history {
		role := "model"
		if m.Role == "user" {
			role = "user"
		}
		prior = append(prior, gemini.Content{Role: role, Parts: []gemini.Part{{Text: m.Text}}})
	}
	c.history = append(c.history, Message{Role: "user", Text: text})
	c.thinking = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.thinking = false
		c.mu.Unlock()
	}()

	stream, err := c.asker.AskConcierge(ctx, text, section, prior)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	c.mu.Lock()
	c.history = append(c.history, Message{Role: "model"})
	idx := len(c.history) - 1
	c.mu.Unlock()

	var full strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("reading reply: %w", err)
		}
		full.WriteString(frag)

		c.mu.Lock()
		if idx < len(c.history) {
			c.history[idx].Text = full.String()
		}
		c.mu.Unlock()

		if onFragment != nil {
			onFragment(frag)
		}
	}
	return full.String(), nil
}
