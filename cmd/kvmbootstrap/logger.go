package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	clrReset  = "\033[0m"
	clrBold   = "\033[1m"
	clrRed    = "\033[31m"
	clrYellow = "\033[33m"
	clrGreen  = "\033[32m"
	clrCyan   = "\033[36m"
	clrGray   = "\033[90m"
	clrWhite  = "\033[97m"
)

// hiddenKeys never reach the console; they stay in the debug log.
var hiddenKeys = map[string]bool{"executor": true}

// prettyHandler renders one console line per record: a level glyph, the
// message, then key=value pairs colored by what they describe.
type prettyHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	group  string
	preset []slog.Attr
}

func newPrettyLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&prettyHandler{mu: &sync.Mutex{}, out: w, level: level})
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), h.qualify(attrs)...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func (h *prettyHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + a.Key, Value: a.Value}
	}
	return out
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	glyph, tone := levelStyle(r.Level)

	var sb strings.Builder
	sb.WriteString(glyph)
	sb.WriteString(tone + clrBold + r.Message + clrReset)

	for _, a := range h.preset {
		writeAttr(&sb, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + a.Key
		}
		writeAttr(&sb, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func levelStyle(level slog.Level) (glyph, tone string) {
	switch {
	case level >= slog.LevelError:
		return clrRed + "  ✗ " + clrReset, clrRed
	case level >= slog.LevelWarn:
		return clrYellow + "  ⚠ " + clrReset, clrYellow
	case level >= slog.LevelInfo:
		return clrGray + "  → " + clrReset, clrWhite
	}
	return clrGray + "  · " + clrReset, clrGray
}

func writeAttr(sb *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) || hiddenKeys[baseKey(a.Key)] {
		return
	}
	sb.WriteString("  " + clrGray + a.Key + "=" + clrReset)
	sb.WriteString(attrColor(a) + a.Value.String() + clrReset)
}

// baseKey drops any group qualifier.
func baseKey(key string) string {
	return key[strings.LastIndexByte(key, '.')+1:]
}

// attrColor highlights session states, steps, durations and disk artifacts.
func attrColor(a slog.Attr) string {
	switch a.Value.Kind() {
	case slog.KindDuration:
		return clrGray
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return clrYellow
	case slog.KindBool:
		if a.Value.Bool() {
			return clrGreen
		}
		return clrYellow
	}

	val := a.Value.String()
	switch baseKey(a.Key) {
	case "error":
		return clrRed
	case "state":
		switch val {
		case "succeeded":
			return clrGreen
		case "failed":
			return clrRed
		}
		return clrYellow
	case "step", "last_step":
		return clrBold + clrCyan
	}
	switch filepath.Ext(val) {
	case ".img", ".qcow2", ".iso":
		return clrGreen
	}
	if _, err := time.ParseDuration(val); err == nil {
		return clrGray
	}
	return clrCyan
}

// parseLevel maps a settings log level to slog.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
