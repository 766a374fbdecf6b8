package observe

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jonwraymond/itemcache/observe/exporters"
)

func init() {
	exporters.Stdout = io.Discard
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ServiceName: "itemcache-test",
			Version:     "1.0.0",
			Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
			Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
			Logging:     LoggingConfig{Enabled: true, Level: "info", Backend: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: ErrMissingServiceName},
		{name: "unknown tracing exporter", mutate: func(c *Config) { c.Tracing.Exporter = "zipkin" }, wantErr: ErrInvalidTracingExporter},
		{name: "sample above one", mutate: func(c *Config) { c.Tracing.SamplePct = 1.5 }, wantErr: ErrInvalidSamplePct},
		{name: "sample negative", mutate: func(c *Config) { c.Tracing.SamplePct = -0.1 }, wantErr: ErrInvalidSamplePct},
		{name: "tracing disabled ignores exporter", mutate: func(c *Config) { c.Tracing = TracingConfig{Exporter: "zipkin"} }},
		{name: "unknown metrics exporter", mutate: func(c *Config) { c.Metrics.Exporter = "statsd" }, wantErr: ErrInvalidMetricsExporter},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: ErrInvalidLogLevel},
		{name: "unknown log backend", mutate: func(c *Config) { c.Logging.Backend = "syslog" }, wantErr: ErrInvalidLogBackend},
		{name: "glog backend", mutate: func(c *Config) { c.Logging.Backend = "glog" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewObserver_DisabledNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "itemcache-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("disabled observer must still return usable primitives")
	}
	if _, ok := obs.Logger().(*noopLogger); !ok {
		t.Errorf("logger = %T, want *noopLogger", obs.Logger())
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewObserver_LoggingBackends(t *testing.T) {
	tests := []struct {
		backend string
		check   func(Logger) bool
	}{
		{backend: "", check: func(l Logger) bool { _, ok := l.(*structuredLogger); return ok }},
		{backend: "json", check: func(l Logger) bool { _, ok := l.(*structuredLogger); return ok }},
		{backend: "glog", check: func(l Logger) bool { _, ok := l.(*glogLogger); return ok }},
	}

	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			obs, err := NewObserver(context.Background(), Config{
				ServiceName: "itemcache-test",
				Logging:     LoggingConfig{Enabled: true, Level: "warn", Backend: tc.backend},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.check(obs.Logger()) {
				t.Errorf("logger = %T", obs.Logger())
			}
		})
	}
}

func TestNewObserver_EnabledAndShutdown(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "itemcache-test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver: %v", err)
	}
	wrapped := mw.Wrap(func(ctx context.Context, meta OperationMeta) error { return nil })
	if err := wrapped(context.Background(), OperationMeta{ItemID: "x", Operation: OpLoad}); err != nil {
		t.Fatalf("wrapped: %v", err)
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("err = %v, want ErrMissingServiceName", err)
	}
}
