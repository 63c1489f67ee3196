package observability

import (
	"errors"
	"log/slog"

	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// LogParseError logs a rejected expression. Syntax errors carry their
// kind and position.
func LogParseError(logger *slog.Logger, source, expression string, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("source", source),
		slog.String("expression", expression),
		slog.String("error", err.Error()),
	}
	var serr *tagexpr.SyntaxError
	if errors.As(err, &serr) {
		attrs = append(attrs,
			slog.String("kind", serr.Kind.String()),
			slog.Int("position", serr.Pos),
		)
	}
	logger.Warn("tag expression rejected", attrs...)
}

// ErrorKind returns the syntax error kind of err for metrics, or
// "Unknown" for other errors.
func ErrorKind(err error) string {
	var serr *tagexpr.SyntaxError
	if errors.As(err, &serr) {
		return serr.Kind.String()
	}
	return "Unknown"
}
