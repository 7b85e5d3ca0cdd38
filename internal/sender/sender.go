package sender

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/speedwagon-io/homechecks/internal/model"
)

var (
	ErrUnknownType  = errors.New("sender: unknown type")
	ErrNotConnected = errors.New("sender: not connected")
)

type Sender interface {
	Send(ctx context.Context, batch *model.Batch) error
	Health(ctx context.Context) error
	Close() error
}

// splitTag splits "key:value" on the first colon. A tag without a colon is
// returned as a key with an empty value.
func splitTag(tag string) (string, string) {
	k, v, _ := strings.Cut(tag, ":")
	return k, v
}

// tagMap folds tags into a map; later duplicates win.
func tagMap(tags []string) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		k, v := splitTag(t)
		if k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// LogSender logs batches instead of sending them (dry-run)
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, batch *model.Batch) error {
	s.log.Info("SEND",
		slog.String("check", batch.Check),
		slog.String("batch_id", batch.ID),
		slog.Int("observations", len(batch.Observations)),
	)

	for _, obs := range batch.Observations {
		s.log.Info(string(obs.Type),
			slog.String("metric", obs.Name),
			slog.Float64("value", obs.Value),
			slog.Any("tags", obs.Tags),
		)
	}

	return nil
}

func (s *LogSender) Health(ctx context.Context) error {
	return nil
}

func (s *LogSender) Close() error {
	return nil
}
