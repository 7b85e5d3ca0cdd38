package pipeline

import (
	"log/slog"
	"strings"

	"github.com/speedwagon-io/homechecks/internal/model"
)

const genericNamespace = "core"

// Stats summarizes one walk.
type Stats struct {
	Entities int
	Emitted  int
	// Dropped counts states whose value kind is unsupported.
	Dropped int
	// Skipped counts malformed entities and states.
	Skipped int
}

type Walker struct {
	log     *slog.Logger
	prefix  string
	layouts map[string]Layout
}

// NewWalker returns a walker emitting metrics under prefix. layouts is keyed
// by entity kind; kinds without a layout get the "" entry, if any.
func NewWalker(log *slog.Logger, prefix string, layouts map[string]Layout) *Walker {
	return &Walker{
		log:     log,
		prefix:  prefix,
		layouts: layouts,
	}
}

func (w *Walker) Walk(snapshot *model.Snapshot, emitter Emitter) Stats {
	var stats Stats
	if snapshot == nil {
		return stats
	}
	for _, e := range snapshot.Entities {
		w.walkEntity(e, nil, emitter, &stats)
	}
	return stats
}

func (w *Walker) walkEntity(e *model.Entity, inherited []string, emitter Emitter, stats *Stats) {
	if e == nil {
		stats.Skipped++
		w.log.Warn("skipping nil entity")
		return
	}
	if e.ID == "" {
		stats.Skipped++
		w.log.Warn("skipping entity without id",
			slog.String("kind", e.Kind),
			slog.String("name", e.Name),
		)
		return
	}
	stats.Entities++

	layout := w.layoutFor(e.Kind)
	passed := BuildTags(inherited, e, layout.TagPrefix, layout.Inherit...)
	own := BuildTags(passed, e, layout.TagPrefix, layout.Own...)

	for _, state := range e.States {
		metric := w.metricName(state.Name)
		if metric == "" {
			stats.Skipped++
			w.log.Debug("skipping state with empty name",
				slog.String("entity_id", e.ID),
				slog.String("state", state.Name),
			)
			continue
		}

		obs, ok := Classify(Join(w.prefix, metric), state, own)
		if !ok {
			stats.Dropped++
			w.log.Debug("unsupported value kind",
				slog.String("entity_id", e.ID),
				slog.String("metric", metric),
			)
			continue
		}

		emitter.Emit(obs)
		stats.Emitted++
	}

	for _, child := range e.Children {
		w.walkEntity(child, passed, emitter, stats)
	}
}

// metricName normalizes a state name. Under a prefix the generic "core:"
// namespace is replaced by the prefix; other namespaces ("io:",
// "modbuslink:") are kept since devices report the same state under several
// of them.
func (w *Walker) metricName(raw string) string {
	if w.prefix != "" {
		raw = strings.TrimPrefix(raw, genericNamespace+":")
	}
	return Normalize(raw)
}

func (w *Walker) layoutFor(kind string) Layout {
	if l, ok := w.layouts[kind]; ok {
		return l
	}
	return w.layouts[""]
}
