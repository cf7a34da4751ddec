package otelx

import "testing"

func TestGetenvFallback(t *testing.T) {
	if got := getenv("OTEL_TEST_UNSET_KEY", "fallback"); got != "fallback" {
		t.Fatalf("getenv unset = %q, want fallback", got)
	}

	t.Setenv("OTEL_TEST_SET_KEY", "value")
	if got := getenv("OTEL_TEST_SET_KEY", "fallback"); got != "value" {
		t.Fatalf("getenv set = %q, want value", got)
	}

	// An empty value is still set; the fallback applies only to unset keys.
	t.Setenv("OTEL_TEST_EMPTY_KEY", "")
	if got := getenv("OTEL_TEST_EMPTY_KEY", "fallback"); got != "" {
		t.Fatalf("getenv empty = %q, want empty", got)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg := ConfigFromEnv("pricing-service")
	if !cfg.Enabled {
		t.Fatal("expected tracing enabled by default")
	}
	if cfg.ServiceName != "pricing-service" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.OTLPEndpoint != "jaeger:4317" {
		t.Fatalf("endpoint = %q", cfg.OTLPEndpoint)
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("sample ratio = %v", cfg.SampleRatio)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

	cfg := ConfigFromEnv("entitlements-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled")
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("endpoint = %q", cfg.OTLPEndpoint)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("sample ratio = %v", cfg.SampleRatio)
	}
}

func TestConfigFromEnvBadRatioIgnored(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "2.5")
	if cfg := ConfigFromEnv("svc"); cfg.SampleRatio != 1.0 {
		t.Fatalf("sample ratio = %v, want 1 for out-of-range input", cfg.SampleRatio)
	}
}
