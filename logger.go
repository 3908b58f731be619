package quizgate

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around logging stack
// (see log/zap, log/logrus, log/slog). Components fall back to NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// With returns a Logger that adds base to every entry. Entry fields win on conflict.
func With(l Logger, base Fields) Logger {
	if l == nil {
		return NopLogger{}
	}
	if len(base) == 0 {
		return l
	}
	if w, ok := l.(withLogger); ok {
		return withLogger{inner: w.inner, base: merge(w.base, base)}
	}
	return withLogger{inner: l, base: base}
}

type withLogger struct {
	inner Logger
	base  Fields
}

func (w withLogger) Debug(msg string, f Fields) { w.inner.Debug(msg, merge(w.base, f)) }
func (w withLogger) Info(msg string, f Fields)  { w.inner.Info(msg, merge(w.base, f)) }
func (w withLogger) Warn(msg string, f Fields)  { w.inner.Warn(msg, merge(w.base, f)) }
func (w withLogger) Error(msg string, f Fields) { w.inner.Error(msg, merge(w.base, f)) }

func merge(a, b Fields) Fields {
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
