package gateway

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/lumina/internal/gemini"
)

const instrumentationName = "github.com/kalambet/lumina/internal/gateway"

// Generator is the subset of the generation client the gateway needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, req gemini.Request) (*gemini.Response, error)
	StreamGenerateContent(ctx context.Context, model string, req gemini.Request) (*gemini.Stream, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config names the models and retry behaviour.
type Config struct {
	TextModel   string
	ProModel    string
	SpeechModel string
	Voice       string
	Policy      RetryPolicy
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithSleeper(s Sleeper) Option {
	return func(g *Gateway) { g.sleeper = s }
}

func WithClock(c Clock) Option {
	return func(g *Gateway) { g.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithSpeechCache replaces the in-memory speech cache.
func WithSpeechCache(c SpeechCache) Option {
	return func(g *Gateway) { g.speech = c }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(instrumentationName) }
}

// Gateway wraps every model call with retry on quota errors and a fixed
// fallback, so callers of the non-streaming operations never see an error.
type Gateway struct {
	client  Generator
	cfg     Config
	sleeper Sleeper
	clock   Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	speech  SpeechCache
}

// New creates a Gateway. Zero-valued config fields take their defaults.
func New(client Generator, cfg Config, opts ...Option) *Gateway {
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-3-flash-preview"
	}
	if cfg.ProModel == "" {
		cfg.ProModel = "gemini-3-pro-preview"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	if cfg.Policy == (RetryPolicy{}) {
		cfg.Policy = DefaultPolicy()
	}

	g := &Gateway{
		client:  client,
		cfg:     cfg,
		sleeper: realSleeper{},
		clock:   realClock{},
		logger:  slog.Default(),
		tracer:  otel.Tracer(instrumentationName),
		speech:  newMemorySpeechCache(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Operation is one resilient model call.
type Operation[T any] struct {
	Name     string
	Invoke   func(ctx context.Context) (T, error)
	Fallback func() T
	// Policy overrides the gateway's retry policy when set.
	Policy *RetryPolicy
}

// Call runs op with retry and returns its result, or op.Fallback() when
// every attempt failed.
func Call[T any](ctx context.Context, g *Gateway, op Operation[T]) T {
	ctx, span := g.tracer.Start(ctx, "gateway."+op.Name)
	defer span.End()

	policy := g.cfg.Policy
	if op.Policy != nil {
		policy = *op.Policy
	}

	attempts := 0
	v, err := Retry(ctx, policy, g.sleeper, func(ctx context.Context) (T, error) {
		attempts++
		return op.Invoke(ctx)
	})
	span.SetAttributes(
		attribute.String("gateway.operation", op.Name),
		attribute.Int("gateway.attempts", attempts),
		attribute.Bool("gateway.fallback", err != nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback used")
		g.logger.Warn("model call failed, using fallback", "operation", op.Name, "attempts", attempts, "error", err)
		return op.Fallback()
	}
	return v
}

// generate runs a non-streaming request against model and returns its text.
func (g *Gateway) generate(ctx context.Context, model string, req gemini.Request) (string, error) {
	resp, err := g.client.GenerateContent(ctx, model, req)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
