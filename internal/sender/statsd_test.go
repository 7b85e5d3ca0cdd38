package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
)

type statsdCall struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeStatsd struct {
	calls    []statsdCall
	gaugeErr error
	flushed  int
	closed   bool
}

func (f *fakeStatsd) Gauge(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, statsdCall{kind: "gauge", name: name, value: value, tags: tags})
	return f.gaugeErr
}

func (f *fakeStatsd) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, statsdCall{kind: "count", name: name, value: float64(value), tags: tags})
	return nil
}

func (f *fakeStatsd) Flush() error {
	f.flushed++
	return nil
}

func (f *fakeStatsd) Close() error {
	f.closed = true
	return nil
}

func (f *fakeStatsd) IsClosed() bool {
	return f.closed
}

func counterBatch(v float64) *model.Batch {
	return model.NewBatch("sbfspot", []model.Observation{
		{Name: "sbfspot.energy_total", Value: v, Type: model.MetricGauge, Tags: []string{"inverter_sn:1"}},
		{Name: "sbfspot.energy", Value: v, Type: model.MetricMonotonicCount, Tags: []string{"inverter_sn:1"}},
	})
}

func TestStatsdSenderGaugesAndCounters(t *testing.T) {
	ctx := context.Background()
	fake := &fakeStatsd{}
	s := newStatsdSender(sl.Discard(), fake)

	require.NoError(t, s.Send(ctx, counterBatch(1000)))
	require.Len(t, fake.calls, 1, "first counter sample only sets the baseline")
	assert.Equal(t, statsdCall{kind: "gauge", name: "sbfspot.energy_total", value: 1000, tags: []string{"inverter_sn:1"}}, fake.calls[0])

	fake.calls = nil
	require.NoError(t, s.Send(ctx, counterBatch(1250.5)))
	require.Len(t, fake.calls, 2)
	assert.Equal(t, statsdCall{kind: "count", name: "sbfspot.energy", value: 250, tags: []string{"inverter_sn:1"}}, fake.calls[1])

	fake.calls = nil
	require.NoError(t, s.Send(ctx, counterBatch(1251)))
	require.Len(t, fake.calls, 2)
	assert.Equal(t, 1.0, fake.calls[1].value, "carried remainder completes a whole unit")

	fake.calls = nil
	require.NoError(t, s.Send(ctx, counterBatch(10)))
	assert.Len(t, fake.calls, 1, "a decrease resets the baseline")

	assert.Equal(t, 4, fake.flushed)
}

func TestStatsdSenderSeparatesSeriesByTags(t *testing.T) {
	ctx := context.Background()
	fake := &fakeStatsd{}
	s := newStatsdSender(sl.Discard(), fake)

	obs := func(sn string, v float64) model.Observation {
		return model.Observation{Name: "sbfspot.pac", Value: v, Type: model.MetricMonotonicCount, Tags: []string{"inverter_sn:" + sn}}
	}

	require.NoError(t, s.Send(ctx, model.NewBatch("sbfspot", []model.Observation{obs("1", 10), obs("2", 100)})))
	require.NoError(t, s.Send(ctx, model.NewBatch("sbfspot", []model.Observation{obs("1", 15), obs("2", 103)})))

	require.Len(t, fake.calls, 2)
	assert.Equal(t, 5.0, fake.calls[0].value)
	assert.Equal(t, 3.0, fake.calls[1].value)
}

func TestStatsdSenderErrors(t *testing.T) {
	fake := &fakeStatsd{gaugeErr: errors.New("buffer full")}
	s := newStatsdSender(sl.Discard(), fake)

	err := s.Send(context.Background(), counterBatch(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestStatsdSenderHealth(t *testing.T) {
	fake := &fakeStatsd{}
	s := newStatsdSender(sl.Discard(), fake)

	assert.NoError(t, s.Health(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Health(context.Background()), ErrNotConnected)
}

func TestStatsdSenderIgnoresReplayedCounters(t *testing.T) {
	ctx := context.Background()
	fake := &fakeStatsd{}
	s := newStatsdSender(sl.Discard(), fake)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(minutes int, v float64) *model.Batch {
		b := counterBatch(v)
		b.Timestamp = base.Add(time.Duration(minutes) * time.Minute)
		return b
	}

	// 110 failed and is replayed from the buffer after 120 went out
	for _, b := range []*model.Batch{at(0, 100), at(2, 120), at(1, 110), at(3, 130)} {
		require.NoError(t, s.Send(ctx, b))
	}

	var counted float64
	for _, c := range fake.calls {
		if c.kind == "count" {
			counted += c.value
		}
	}
	assert.Equal(t, 30.0, counted)
}
