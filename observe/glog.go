package observe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"
)

// glogLogger writes key=value lines through glog, for binaries that already
// route their logs through glog flags.
type glogLogger struct {
	level LogLevel
	base  []Field
}

// NewGlogLogger creates a Logger backed by glog. Debug messages are emitted
// only when glog verbosity is at least 1.
func NewGlogLogger(level string) Logger {
	return &glogLogger{level: ParseLogLevel(level)}
}

func (l *glogLogger) WithOperation(meta OperationMeta) Logger {
	base := make([]Field, 0, len(l.base)+3)
	base = append(base, l.base...)
	base = append(base, meta.fields()...)
	return &glogLogger{level: l.level, base: base}
}

func (l *glogLogger) Info(_ context.Context, msg string, fields ...Field) {
	if l.level <= LevelInfo {
		glog.InfoDepth(1, l.format(msg, fields))
	}
}

func (l *glogLogger) Warn(_ context.Context, msg string, fields ...Field) {
	if l.level <= LevelWarn {
		glog.WarningDepth(1, l.format(msg, fields))
	}
}

func (l *glogLogger) Error(_ context.Context, msg string, fields ...Field) {
	glog.ErrorDepth(1, l.format(msg, fields))
}

func (l *glogLogger) Debug(_ context.Context, msg string, fields ...Field) {
	if l.level <= LevelDebug && glog.V(1) {
		glog.InfoDepth(1, l.format(msg, fields))
	}
}

func (l *glogLogger) format(msg string, fields []Field) string {
	all := make([]Field, 0, len(l.base)+len(fields))
	all = append(all, l.base...)
	all = append(all, fields...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	var b strings.Builder
	b.WriteString(msg)
	for _, f := range all {
		v := f.Value
		if isRedactedField(f.Key) {
			v = "[REDACTED]"
		}
		fmt.Fprintf(&b, " %s=%v", f.Key, v)
	}
	return b.String()
}

var _ Logger = (*glogLogger)(nil)
