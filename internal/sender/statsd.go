package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
)

const statsdRate = 1

// statsdClient is the part of statsd.ClientInterface the sender needs.
type statsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Flush() error
	Close() error
	IsClosed() bool
}

// StatsdSender ships observations to a DogStatsD agent. Monotonic counts are
// turned into deltas against the previous sample of the same series; the
// first sample of a series and any decrease only reset the baseline.
type StatsdSender struct {
	log    *slog.Logger
	client statsdClient

	mu       sync.Mutex
	counters map[string]counterSample
}

type counterSample struct {
	value float64
	at    time.Time
}

func NewStatsdSender(log *slog.Logger, cfg *config.StatsdConfig) (*StatsdSender, error) {
	opts := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}

	client, err := statsd.New(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	return newStatsdSender(log, client), nil
}

func newStatsdSender(log *slog.Logger, client statsdClient) *StatsdSender {
	return &StatsdSender{
		log:      log,
		client:   client,
		counters: make(map[string]counterSample),
	}
}

func (s *StatsdSender) Send(ctx context.Context, batch *model.Batch) error {
	var errs []error

	for _, obs := range batch.Observations {
		switch obs.Type {
		case model.MetricMonotonicCount:
			delta, ok := s.delta(obs, batch.Timestamp)
			if !ok {
				continue
			}
			if err := s.client.Count(obs.Name, delta, obs.Tags, statsdRate); err != nil {
				errs = append(errs, fmt.Errorf("count %s: %w", obs.Name, err))
			}
		default:
			if err := s.client.Gauge(obs.Name, obs.Value, obs.Tags, statsdRate); err != nil {
				errs = append(errs, fmt.Errorf("gauge %s: %w", obs.Name, err))
			}
		}
	}

	if err := s.client.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}

	if len(errs) > 0 {
		s.log.Debug("statsd submission errors", slog.Int("count", len(errs)), sl.Err(errs[0]))
	}
	return errors.Join(errs...)
}

// delta returns the whole-unit increase since the previous sample. The
// fractional remainder is carried over to the next call. Samples from a
// batch older than the last one seen for the series (a replayed buffered
// batch) are ignored.
func (s *StatsdSender) delta(obs model.Observation, at time.Time) (int64, bool) {
	key := obs.Name + "|" + strings.Join(obs.Tags, ",")

	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.counters[key]
	if seen && at.Before(last.at) {
		return 0, false
	}
	if !seen || obs.Value < last.value {
		s.counters[key] = counterSample{value: obs.Value, at: at}
		return 0, false
	}

	d := math.Floor(obs.Value - last.value)
	s.counters[key] = counterSample{value: last.value + d, at: at}
	if d == 0 {
		return 0, false
	}
	return int64(d), true
}

func (s *StatsdSender) Health(ctx context.Context) error {
	if s.client.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func (s *StatsdSender) Close() error {
	return s.client.Close()
}
