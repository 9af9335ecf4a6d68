package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger for the given mode: "prod"/"production" emits JSON at info,
// "test"/"nop" discards everything, anything else is the colored development console.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(levelFromEnv(zapcore.InfoLevel))
	case "test", "nop":
		return &Logger{SugaredLogger: zap.NewNop().Sugar()}, nil
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(levelFromEnv(zapcore.DebugLevel))
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop returns a logger that drops every entry.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func levelFromEnv(def zapcore.Level) zapcore.Level {
	raw := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if raw == "" {
		return def
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		return def
	}
	return lvl
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

var credentialMarkers = []string{
	"api_key", "apikey", "secret", "password", "token",
	"authorization", "access_key", "dsn", "credential",
}

type scrubber struct {
	redact bool
	// clip bounds string values; provider errors can echo whole prompts.
	clip int
}

var activeScrubber = sync.OnceValue(func() scrubber {
	sc := scrubber{redact: true, clip: 2048}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		sc.redact = false
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("LOG_MAX_VALUE_LEN"))); err == nil {
		sc.clip = n
	}
	return sc
})

func sanitizeKVs(kv []interface{}) []interface{} {
	return activeScrubber().pairs(kv)
}

func sanitizeValue(key string, val interface{}) interface{} {
	return activeScrubber().value(strings.ToLower(key), val)
}

// pairs rewrites alternating key/value arguments; a trailing key without a
// value is passed through for zap to report.
func (sc scrubber) pairs(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 1; i < len(out); i += 2 {
		key := keyString(out[i-1])
		out[i-1] = key
		out[i] = sc.value(strings.ToLower(key), out[i])
	}
	return out
}

func (sc scrubber) value(key string, val interface{}) interface{} {
	if sc.redact && isCredentialKey(key) {
		return "[REDACTED]"
	}
	switch v := val.(type) {
	case string:
		if sc.clip > 0 && len(v) > sc.clip {
			return fmt.Sprintf("%s...(%d bytes)", v[:sc.clip], len(v))
		}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = sc.value(strings.ToLower(k), inner)
		}
		return out
	}
	return val
}

func isCredentialKey(key string) bool {
	for _, m := range credentialMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

func keyString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
