package logger

import (
	"log/slog"
	"os"
)

// New builds the process logger: JSON in prod, text with debug elsewhere.
func New(env string) *slog.Logger {
	var h slog.Handler
	if env == "prod" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	log := slog.New(h).With("service", "hydit-backend")
	slog.SetDefault(log)
	return log
}
