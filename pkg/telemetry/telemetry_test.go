package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"zeta/pkg/config"
)

func TestInitDisabledLeavesGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()

	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{name: "disabled", cfg: config.TelemetryConfig{Endpoint: "localhost:4317"}},
		{name: "no endpoint", cfg: config.TelemetryConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Init(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("Init error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
			if otel.GetTracerProvider() != before {
				t.Fatalf("global tracer provider replaced")
			}
		})
	}
}
