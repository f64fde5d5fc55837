package logging

import (
	"context"
	"log/slog"

	"siren/internal/services"
)

const (
	// FieldComponent names the emitting package or subsystem.
	FieldComponent = "component"
	// FieldSongID carries the Monster Siren song cid being processed.
	FieldSongID = "song_id"
	// FieldStage carries the workflow stage (metadata, download, verify, ...).
	FieldStage = "stage"
	// FieldCorrelationID carries the per-run request id.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts the standard attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if cid, ok := services.SongIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSongID, cid))
	}
	return fields
}

// WithContext returns logger with the attributes carried by ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// contextHandler stamps context attributes onto records logged with a
// context, skipping keys the record or logger already carries.
type contextHandler struct {
	base  slog.Handler
	bound map[string]struct{}
}

func newContextHandler(base slog.Handler) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &contextHandler{base: base}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := ContextFields(ctx)
	if len(fields) > 0 {
		present := make(map[string]struct{}, record.NumAttrs())
		record.Attrs(func(a slog.Attr) bool {
			present[a.Key] = struct{}{}
			return true
		})
		for _, field := range fields {
			if _, ok := present[field.Key]; ok {
				continue
			}
			if _, ok := h.bound[field.Key]; ok {
				continue
			}
			record.AddAttrs(field)
		}
	}
	return h.base.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for key := range h.bound {
		bound[key] = struct{}{}
	}
	for _, attr := range attrs {
		bound[attr.Key] = struct{}{}
	}
	return &contextHandler{base: h.base.WithAttrs(attrs), bound: bound}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{base: h.base.WithGroup(name), bound: h.bound}
}
