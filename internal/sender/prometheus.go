package sender

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedwagon-io/homechecks/internal/model"
)

type promSample struct {
	name       string
	help       string
	valueType  prometheus.ValueType
	value      float64
	labelNames []string
	labelVals  []string
}

// PrometheusSender keeps the latest batch of every check and exposes it as
// const metrics. Register it on a registry and serve that registry.
// Label sets may differ between series, so it is an unchecked collector.
type PrometheusSender struct {
	log *slog.Logger

	mu     sync.RWMutex
	latest map[string][]promSample
}

func NewPrometheusSender(log *slog.Logger) *PrometheusSender {
	return &PrometheusSender{
		log:    log,
		latest: make(map[string][]promSample),
	}
}

func (s *PrometheusSender) Send(ctx context.Context, batch *model.Batch) error {
	seen := make(map[string]int, len(batch.Observations))
	samples := make([]promSample, 0, len(batch.Observations))

	for _, obs := range batch.Observations {
		sample := toPromSample(obs)
		key := sample.name + "|" + strings.Join(sample.labelNames, ",") + "|" + strings.Join(sample.labelVals, ",")
		if i, ok := seen[key]; ok {
			samples[i] = sample
			continue
		}
		seen[key] = len(samples)
		samples = append(samples, sample)
	}

	s.mu.Lock()
	s.latest[batch.Check] = samples
	s.mu.Unlock()

	return nil
}

func (s *PrometheusSender) Describe(ch chan<- *prometheus.Desc) {}

func (s *PrometheusSender) Collect(ch chan<- prometheus.Metric) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, samples := range s.latest {
		for _, sample := range samples {
			desc := prometheus.NewDesc(sample.name, sample.help, sample.labelNames, nil)
			m, err := prometheus.NewConstMetric(desc, sample.valueType, sample.value, sample.labelVals...)
			if err != nil {
				ch <- prometheus.NewInvalidMetric(desc, err)
				continue
			}
			ch <- m
		}
	}
}

func (s *PrometheusSender) Health(ctx context.Context) error {
	return nil
}

func (s *PrometheusSender) Close() error {
	return nil
}

func toPromSample(obs model.Observation) promSample {
	labels := tagMap(obs.Tags)
	sanitized := make(map[string]string, len(labels))
	for k, v := range labels {
		sanitized[promLabelName(k)] = v
	}

	names := make([]string, 0, len(sanitized))
	for k := range sanitized {
		names = append(names, k)
	}
	sort.Strings(names)

	vals := make([]string, len(names))
	for i, k := range names {
		vals[i] = sanitized[k]
	}

	name := promMetricName(obs.Name)
	valueType := prometheus.GaugeValue
	if obs.Type == model.MetricMonotonicCount {
		valueType = prometheus.CounterValue
		if !strings.HasSuffix(name, "_total") {
			name += "_total"
		}
	}

	return promSample{
		name:       name,
		help:       obs.Name,
		valueType:  valueType,
		value:      obs.Value,
		labelNames: names,
		labelVals:  vals,
	}
}

func promMetricName(name string) string {
	return sanitizePromName(name, true)
}

func promLabelName(name string) string {
	n := sanitizePromName(name, false)
	if strings.HasPrefix(n, "__") {
		n = "tag" + n
	}
	return n
}

func sanitizePromName(name string, allowColon bool) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		valid := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(allowColon && r == ':') ||
			(i > 0 && r >= '0' && r <= '9')
		if valid {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
