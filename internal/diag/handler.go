package diag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/speedwagon-io/envstream/internal/model"
)

// SourceKey is the attribute used as the diagnostic entry source.
const SourceKey = "component"

// Handler forwards every record to next and, while the sink is active, copies
// records at or above level into the sink.
type Handler struct {
	next   slog.Handler
	sink   *Sink
	level  slog.Leveler
	source string
	prefix string
	// bound holds attributes added through WithAttrs, already rendered.
	bound string
}

func NewHandler(next slog.Handler, sink *Sink, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		next:  next,
		sink:  sink,
		level: level,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next.Enabled(ctx, level) {
		return true
	}
	return h.sink.Active() && level >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}

	if h.sink.Active() && r.Level >= h.level.Level() {
		h.sink.Record(h.entry(r))
	}

	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)

	var b strings.Builder
	b.WriteString(h.bound)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == SourceKey {
			c.source = a.Value.String()
			continue
		}
		writeAttr(&b, h.prefix, a)
	}
	c.bound = b.String()
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

func (h *Handler) entry(r slog.Record) model.DiagnosticEntry {
	source := h.source
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.bound)

	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == SourceKey {
			source = a.Value.String()
			return true
		}
		writeAttr(&b, h.prefix, a)
		return true
	})

	entry := model.DiagnosticEntry{
		Level:   r.Level.String(),
		Source:  source,
		Message: b.String(),
	}
	if !r.Time.IsZero() {
		entry.Timestamp = uint64(r.Time.Unix())
	}
	return entry
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}
