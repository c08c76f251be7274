package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level that gets written: debug, info,
	// warn or error. Unknown values fall back to info.
	Level string

	// Format selects the handler: "json" (default) or "text".
	Format string

	// Output defaults to os.Stderr when nil.
	Output io.Writer

	// AddSource annotates records with file and line.
	AddSource bool
}

// DefaultConfig is JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// level is shared by all loggers built here so SetLevel takes effect
// everywhere at once.
var level = new(slog.LevelVar)

// New builds a logger from cfg. All attributes are filtered for
// sensitive values before being written.
func New(cfg Config) *slog.Logger {
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	if f := strings.ToLower(cfg.Format); f == "text" || f == "console" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// SetLevel changes the level of every logger built by New, including
// ones already handed out.
func SetLevel(l string) {
	level.Set(parseLevel(l))
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func parseLevel(name string) slog.Level {
	if l, ok := levelNames[strings.ToLower(name)]; ok {
		return l
	}
	return slog.LevelInfo
}
