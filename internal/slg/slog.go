// Package slg carries a request-scoped *slog.Logger in a context.
package slg

import (
	"context"
	"log/slog"
)

type slogStruct struct {
	Name string
}

var slogKey = &slogStruct{Name: "slog"}

// From returns the logger stored in ctx, or slog.Default() if there is none.
func From(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(slogKey).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

// With returns a copy of ctx carrying log.
func With(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, slogKey, log)
}
