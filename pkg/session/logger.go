package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// LogHandler mirrors pipeline log records onto a connection as logs events
// while also forwarding to the process handler. Attach one per run so the
// client watches the pipeline work in real time.
type LogHandler struct {
	conn  *Conn
	next  slog.Handler
	attrs []slog.Attr
}

func NewLogHandler(conn *Conn, next slog.Handler) *LogHandler {
	return &LogHandler{conn: conn, next: next}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.next.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelInfo {
		h.conn.Emit(workflow.Event{
			Type:     workflow.EventLogs,
			Content:  strings.ToLower(rec.Level.String()),
			Output:   rec.Message,
			Metadata: recordAttrs(rec, h.attrs),
		})
	}
	if h.next.Enabled(ctx, rec.Level) {
		return h.next.Handle(ctx, rec)
	}
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LogHandler{conn: h.conn, next: h.next.WithAttrs(attrs), attrs: merged}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{conn: h.conn, next: h.next.WithGroup(name), attrs: h.attrs}
}

// recordAttrs flattens a record's attributes into a JSON-friendly map.
func recordAttrs(rec slog.Record, base []slog.Attr) map[string]string {
	if rec.NumAttrs() == 0 && len(base) == 0 {
		return nil
	}
	out := make(map[string]string, rec.NumAttrs()+len(base))
	for _, a := range base {
		out[a.Key] = fmt.Sprint(a.Value.Any())
	}
	rec.Attrs(func(a slog.Attr) bool {
		out[a.Key] = fmt.Sprint(a.Value.Any())
		return true
	})
	return out
}
