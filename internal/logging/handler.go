package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swappableHandler is a slog.Handler whose backing handler can be replaced
// atomically, letting the bootstrap-to-full transition happen without
// invalidating logger references handed out earlier.
type swappableHandler struct {
	handler atomic.Pointer[slog.Handler]
}

func newSwappableHandler(initial slog.Handler) *swappableHandler {
	h := &swappableHandler{}
	h.handler.Store(&initial)
	return h
}

// swap replaces the backing handler; safe while logging is in progress.
func (h *swappableHandler) swap(next slog.Handler) {
	h.handler.Store(&next)
}

func (h *swappableHandler) current() slog.Handler {
	return *h.handler.Load()
}

func (h *swappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.current().Enabled(ctx, level)
}

func (h *swappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *swappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSwappableHandler(h.current().WithAttrs(attrs))
}

func (h *swappableHandler) WithGroup(name string) slog.Handler {
	return newSwappableHandler(h.current().WithGroup(name))
}
