package telemetry

import (
	"context"
	"testing"

	"github.com/caarlos0/env/v11"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(env.Options{Environment: map[string]string{}})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Enabled || cfg.ServiceName != "lumina" || cfg.SampleRatio != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Active() {
		t.Error("config without endpoint should not be active")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(env.Options{Environment: map[string]string{
		"LUMINA_OTEL_ENDPOINT":     "http://192.0.2.1:4318",
		"LUMINA_OTEL_ENABLED":      "false",
		"LUMINA_OTEL_SERVICE_NAME": "studio",
		"LUMINA_OTEL_SAMPLE_RATIO": "0.25",
	}})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Enabled || cfg.ServiceName != "studio" || cfg.SampleRatio != 0.25 {
		t.Errorf("overrides = %+v", cfg)
	}
	if cfg.Active() {
		t.Error("disabled config should not be active")
	}
}

func TestLoadConfigRejectsBadRatio(t *testing.T) {
	_, err := loadConfig(env.Options{Environment: map[string]string{"LUMINA_OTEL_SAMPLE_RATIO": "2"}})
	if err == nil {
		t.Fatal("expected error for ratio above 1")
	}
}

func TestSetupNoopWhenInactive(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); ok {
		t.Error("inactive setup should not build an SDK provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupCreatesProvider(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	tp, shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "http://192.0.2.1:4318",
		Enabled:     true,
		ServiceName: "test",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Errorf("provider = %T, want *sdktrace.TracerProvider", tp)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
