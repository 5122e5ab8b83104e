package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// maxTextAttr caps user-supplied text in log lines.
const maxTextAttr = 200

// textAttrs carry chat queries, invalidation patterns and raw bus payloads.
var textAttrs = map[string]struct{}{
	"query":   {},
	"pattern": {},
	"payload": {},
}

type Options struct {
	Service string
	Level   string
	// Format is "json" (default) or "text".
	Format string
	Output io.Writer
}

func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       parseLevel(opts.Level),
		ReplaceAttr: clipTextAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler).With("service", opts.Service)
}

func clipTextAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Value.Kind() != slog.KindString {
		return a
	}
	if _, ok := textAttrs[a.Key]; !ok {
		return a
	}
	s := a.Value.String()
	if utf8.RuneCountInString(s) <= maxTextAttr {
		return a
	}
	runes := []rune(s)
	return slog.String(a.Key, string(runes[:maxTextAttr])+"...")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
