package monitoring

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu        sync.RWMutex
	root      *zap.Logger
	rootGen   atomic.Uint64
	overrides = map[string]zapcore.Level{}
)

func init() {
	l, err := New("info", "console")
	if err != nil {
		l = zap.NewNop()
	}
	root = l
}

// New builds a zap logger for the given level ("debug", "info", "warn",
// "error") and format ("json" or "console").
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// ParseLevel maps a config level name onto a zap level. The empty string
// is treated as info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// SetLogger replaces the root logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	mu.Unlock()
	rootGen.Add(1)
}

// Logger returns the current root logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// SetLevel pins the minimum level of a named stream set, independently of
// the root logger level.
func SetLevel(name string, lvl zapcore.Level) {
	mu.Lock()
	overrides[name] = lvl
	mu.Unlock()
}

// ClearLevel removes a level pinned with SetLevel.
func ClearLevel(name string) {
	mu.Lock()
	delete(overrides, name)
	mu.Unlock()
}

// Quiet raises a named stream set to warn, unless it was explicitly put at
// debug level, in which case it is left alone. The returned func puts the
// previous level back.
func Quiet(name string) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev, had := overrides[name]
	if had && prev == zapcore.DebugLevel {
		return func() {}
	}
	overrides[name] = zapcore.WarnLevel
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if had {
			overrides[name] = prev
		} else {
			delete(overrides, name)
		}
	}
}

// Streams holds the three logging streams of a package:
// ops (actionable warnings, errors, lifecycle events), diag (day-to-day
// diagnostics) and trace (high-frequency per-row telemetry).
type Streams struct {
	name   string
	cached atomic.Pointer[cachedLogger]
}

type cachedLogger struct {
	gen uint64
	s   *zap.SugaredLogger
}

// Named returns the stream set for a package. Streams follow later
// SetLogger calls.
func Named(name string) *Streams {
	return &Streams{name: name}
}

func (s *Streams) sugar() *zap.SugaredLogger {
	gen := rootGen.Load()
	if c := s.cached.Load(); c != nil && c.gen == gen {
		return c.s
	}
	l := Logger().Named(s.name).Sugar()
	s.cached.Store(&cachedLogger{gen: gen, s: l})
	return l
}

func (s *Streams) enabled(lvl zapcore.Level) bool {
	mu.RLock()
	min, ok := overrides[s.name]
	mu.RUnlock()
	return !ok || lvl >= min
}

// Opsf logs to the ops stream.
func (s *Streams) Opsf(format string, args ...interface{}) {
	if s.enabled(zapcore.WarnLevel) {
		s.sugar().Warnf(format, args...)
	}
}

// Diagf logs to the diag stream.
func (s *Streams) Diagf(format string, args ...interface{}) {
	if s.enabled(zapcore.InfoLevel) {
		s.sugar().Infof(format, args...)
	}
}

// Tracef logs to the trace stream.
func (s *Streams) Tracef(format string, args ...interface{}) {
	if s.enabled(zapcore.DebugLevel) {
		s.sugar().Debugf(format, args...)
	}
}
