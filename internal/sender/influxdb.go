package sender

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/model"
)

const (
	influxValueField = "value"
	// influxTextTag replaces a "value" tag, which would shadow the field of
	// the same name in InfluxQL.
	influxTextTag = "text"
)

// InfluxSender writes one point per observation. The measurement is the
// metric name and the observation tags become point tags.
type InfluxSender struct {
	log      *slog.Logger
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxSender(log *slog.Logger, cfg *config.InfluxDBConfig) *InfluxSender {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions())

	return &InfluxSender{
		log:      log,
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (s *InfluxSender) Send(ctx context.Context, batch *model.Batch) error {
	if len(batch.Observations) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(batch.Observations))
	for _, obs := range batch.Observations {
		points = append(points, influxdb2.NewPoint(
			obs.Name,
			influxTags(obs.Tags),
			map[string]interface{}{influxValueField: obs.Value},
			batch.Timestamp,
		))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influxdb write failed: %w", err)
	}

	s.log.Debug("points written", slog.String("check", batch.Check), slog.Int("points", len(points)))
	return nil
}

func influxTags(tags []string) map[string]string {
	m := tagMap(tags)
	if v, ok := m[influxValueField]; ok {
		delete(m, influxValueField)
		m[influxTextTag] = v
	}
	return m
}

func (s *InfluxSender) Health(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

func (s *InfluxSender) Close() error {
	s.client.Close()
	return nil
}
