package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// NewFluentClient connects to Fluent Bit. There is no ping: a bad address
// only shows up on the first Post.
func NewFluentClient(host string, port int, tagPrefix string) (*fluent.Fluent, error) {
	if tagPrefix == "" {
		return nil, fmt.Errorf("fluent: tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		TagPrefix:  tagPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("fluent: create client: %w", err)
	}
	return client, nil
}

// fluentHandler posts slog records to Fluent Bit, tagged by level.
type fluentHandler struct {
	client *fluent.Fluent
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

func newFluentHandler(client *fluent.Fluent, level slog.Leveler) *fluentHandler {
	return &fluentHandler{client: client, level: level}
}

func (h *fluentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *fluentHandler) Handle(_ context.Context, r slog.Record) error {
	data := make(map[string]interface{}, len(h.attrs)+r.NumAttrs()+3)
	for _, a := range h.attrs {
		h.put(data, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(data, a)
		return true
	})

	level := strings.ToLower(r.Level.String())
	data["level"] = level
	data["message"] = r.Message
	data["timestamp"] = r.Time.UTC().Format(time.RFC3339Nano)

	return h.client.Post(level, data)
}

func (h *fluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	if h.group != "" {
		for _, a := range attrs {
			merged = append(merged, slog.Attr{Key: h.group + "." + a.Key, Value: a.Value})
		}
	} else {
		merged = append(merged, attrs...)
	}
	return &fluentHandler{client: h.client, level: h.level, attrs: merged, group: h.group}
}

func (h *fluentHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &fluentHandler{client: h.client, level: h.level, attrs: h.attrs, group: group}
}

// put flattens a into data; msgpack only takes plain scalars, everything
// else is stringified.
func (h *fluentHandler) put(data map[string]interface{}, a slog.Attr) {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		data[a.Key] = v.String()
	case slog.KindInt64:
		data[a.Key] = v.Int64()
	case slog.KindUint64:
		data[a.Key] = v.Uint64()
	case slog.KindFloat64:
		data[a.Key] = v.Float64()
	case slog.KindBool:
		data[a.Key] = v.Bool()
	default:
		data[a.Key] = v.String()
	}
}

// fanoutHandler sends every record to each enabled handler.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
