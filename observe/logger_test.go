package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line as JSON: %v\nline: %s", err, line)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IncludesOperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithOperation(OperationMeta{
		ItemID:    "users",
		Operation: OpLoad,
		ValueType: "[]main.User",
	})

	logger.Info(context.Background(), "loaded", Field{Key: "duration_ms", Value: 12.5})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	want := map[string]any{
		"cache.item.id":    "users",
		"cache.operation":  "load",
		"cache.value.type": "[]main.User",
		"msg":              "loaded",
		"level":            "info",
		"duration_ms":      12.5,
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("%s = %v, want %v", k, e[k], v)
		}
	}
	if _, ok := e["timestamp"].(string); !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{level: "debug", want: []string{"debug", "info", "warn", "error"}},
		{level: "info", want: []string{"info", "warn", "error"}},
		{level: "warn", want: []string{"warn", "error"}},
		{level: "error", want: []string{"error"}},
		{level: "bogus", want: []string{"info", "warn", "error"}},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tc.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			entries := decodeLines(t, &buf)
			if len(entries) != len(tc.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tc.want))
			}
			for i, e := range entries {
				if e["level"] != tc.want[i] {
					t.Errorf("entry %d level = %v, want %s", i, e["level"], tc.want[i])
				}
			}
		})
	}
}

func TestLogger_RedactsValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "saved",
		Field{Key: "value", Value: "card-4242"},
		Field{Key: "response", Value: map[string]string{"ok": "yes"}},
		Field{Key: "token", Value: "abc"},
		Field{Key: "item", Value: "users"},
	)

	out := buf.String()
	if strings.Contains(out, "card-4242") || strings.Contains(out, "abc") {
		t.Fatalf("sensitive data leaked: %s", out)
	}
	e := decodeLines(t, &buf)[0]
	for _, k := range []string{"value", "response", "token"} {
		if e[k] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", k, e[k])
		}
	}
	if e["item"] != "users" {
		t.Errorf("item = %v, want users", e["item"])
	}
}

func TestLogger_WithOperationDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.WithOperation(OperationMeta{ItemID: "a", Operation: OpSave})

	parent.Info(context.Background(), "plain")

	e := decodeLines(t, &buf)[0]
	if _, ok := e["cache.item.id"]; ok {
		t.Error("parent logger picked up child fields")
	}
}

func TestLogger_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.WithOperation(OperationMeta{ItemID: "x", Operation: OpLoad}).Info(context.Background(), "line")
		}()
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 20 {
		t.Errorf("got %d lines, want 20", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
	if ParseLogLevel("") != LevelInfo {
		t.Error("empty level should default to info")
	}
}

func TestGlogLogger_Format(t *testing.T) {
	l := NewGlogLogger("debug").(*glogLogger)
	l = l.WithOperation(OperationMeta{ItemID: "users", Operation: OpDelete}).(*glogLogger)

	got := l.format("deleted", []Field{
		{Key: "value", Value: "secret-data"},
		{Key: "attempt", Value: 2},
	})

	want := "deleted attempt=2 cache.item.id=users cache.operation=delete value=[REDACTED]"
	if got != want {
		t.Errorf("format() = %q, want %q", got, want)
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "x")
	if l.WithOperation(OperationMeta{}) != l {
		t.Error("nop WithOperation should return itself")
	}
}
