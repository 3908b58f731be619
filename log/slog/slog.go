package slog

import (
	"context"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/unkn0wn-root/quizgate"
)

var _ quizgate.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New builds a JSON handler logger on stderr at level (debug|info|warn|error).
func New(level string) Logger {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = stdslog.LevelInfo
	}
	h := stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl})
	return Logger{L: stdslog.New(h)}
}

func (s Logger) Debug(msg string, f quizgate.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f quizgate.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f quizgate.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f quizgate.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}

func attrs(f quizgate.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, stdslog.String(k, err.Error()))
			continue
		}
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
