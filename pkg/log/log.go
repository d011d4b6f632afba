package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// OffLevel is above every level slog emits.
const OffLevel = slog.Level(1000)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"off":   OffLevel,
}

func ParseLevel(lvl string) (slog.Level, error) {
	if l, ok := levels[strings.ToLower(lvl)]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("unrecognized level: %s", lvl)
}

// New returns a logger writing to w at the given level. Format is text or
// json, empty selects text.
func New(w io.Writer, level string, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unrecognized format: %s", format)
	}
}
