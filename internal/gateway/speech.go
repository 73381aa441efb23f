package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/kalambet/lumina/internal/gemini"
)

// SpeechCache stores synthesized audio by voice and text.
// Implemented by storage.Store.
type SpeechCache interface {
	GetSpeech(voice, text string) (string, bool, error)
	PutSpeech(voice, text, audio string) error
}

type memorySpeechCache struct {
	mu    sync.RWMutex
	items map[string]string
}

func newMemorySpeechCache() *memorySpeechCache {
	return &memorySpeechCache{items: make(map[string]string)}
}

func (c *memorySpeechCache) GetSpeech(voice, text string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[voice+"\x00"+text]
	return v, ok, nil
}

func (c *memorySpeechCache) PutSpeech(voice, text, audio string) error {
	c.mu.Lock()
	c.items[voice+"\x00"+text] = audio
	c.mu.Unlock()
	return nil
}

// Speech synthesizes text and returns base64 PCM audio. Results are cached by
// trimmed text. It reports false for blank text or when synthesis fails.
func (g *Gateway) Speech(ctx context.Context, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	if audio, ok, err := g.speech.GetSpeech(g.cfg.Voice, trimmed); err != nil {
		g.logger.Warn("speech cache read failed", "error", err)
	} else if ok {
		return audio, true
	}

	policy := g.cfg.Policy
	policy.MaxRetries = 1
	audio := Call(ctx, g, Operation[string]{
		Name:   "speech",
		Policy: &policy,
		Invoke: func(ctx context.Context) (string, error) {
			resp, err := g.client.GenerateContent(ctx, g.cfg.SpeechModel, gemini.Request{
				Contents: []gemini.Content{{Parts: []gemini.Part{{Text: trimmed}}}},
				GenerationConfig: &gemini.GenerationConfig{
					ResponseModalities: []string{gemini.ModalityAudio},
					SpeechConfig:       gemini.Voice(g.cfg.Voice),
				},
			})
			if err != nil {
				return "", err
			}
			blob, ok := resp.InlineData()
			if !ok {
				return "", nil
			}
			return blob.Data, nil
		},
		Fallback: func() string { return "" },
	})
	if audio == "" {
		return "", false
	}

	if err := g.speech.PutSpeech(g.cfg.Voice, trimmed, audio); err != nil {
		g.logger.Warn("speech cache write failed", "error", err)
	}
	return audio, true
}
