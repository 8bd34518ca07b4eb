package logging

import (
	"io"
	"log/slog"
	"time"
)

// Common structured field names shared across packages so log queries stay
// stable.
const (
	FieldTab        = "tab"
	FieldRun        = "run"
	FieldGeneration = "generation"
	FieldTitle      = "title"
	FieldYear       = "year"
	FieldStage      = "stage"
	FieldProvider   = "provider"
	FieldCountry    = "country"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
