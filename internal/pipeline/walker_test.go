package pipeline

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/homechecks/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testLayouts = map[string]Layout{
	"device": {
		Inherit: []string{"name", "build", "id", "place"},
		Own:     []string{"operating_mode"},
	},
	"sensor": {
		TagPrefix: "sensor_",
		Inherit:   []string{"id", "name"},
	},
}

func TestWalkBoiler(t *testing.T) {
	snap := &model.Snapshot{Entities: []*model.Entity{{
		ID:    "d1",
		Name:  "Boiler",
		Kind:  "device",
		Place: model.Some("Kitchen"),
		States: []model.State{
			{Name: "core:OnOffState", Value: model.Numeric(1)},
			{Name: "core:StatusState", Value: model.Text("on")},
		},
	}}}

	rec := NewRecorder()
	stats := NewWalker(discardLogger(), "cozytouch", testLayouts).Walk(snap, rec)

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, model.Observation{
		Name:  "cozytouch.on_off_state",
		Value: 1,
		Type:  model.MetricGauge,
		Tags:  []string{"name:Boiler", "id:d1", "place:Kitchen"},
	}, rec.Observations()[0])
	assert.Equal(t, model.Observation{
		Name:  "cozytouch.status_state.by_value",
		Value: 1,
		Type:  model.MetricGauge,
		Tags:  []string{"name:Boiler", "id:d1", "place:Kitchen", "value:on"},
	}, rec.Observations()[1])
	assert.Equal(t, Stats{Entities: 1, Emitted: 2}, stats)
}

func TestWalkChildrenInheritWithoutLeaking(t *testing.T) {
	device := &model.Entity{
		ID:            "d1",
		Name:          "Heater",
		Kind:          "device",
		OperatingMode: model.Some("eco"),
		Children: []*model.Entity{
			{ID: "s1", Name: "Probe A", Kind: "sensor", States: []model.State{{Name: "Temp", Value: model.Numeric(20)}}},
			{ID: "s2", Name: "Probe B", Kind: "sensor", States: []model.State{{Name: "Temp", Value: model.Numeric(21)}}},
		},
		States: []model.State{{Name: "Power", Value: model.Numeric(900)}},
	}

	var got []model.Observation
	NewWalker(discardLogger(), "p", testLayouts).Walk(&model.Snapshot{Entities: []*model.Entity{device}}, EmitterFunc(func(o model.Observation) {
		got = append(got, o)
	}))

	require.Len(t, got, 3)
	assert.Equal(t, []string{"name:Heater", "id:d1", "operating_mode:eco"}, got[0].Tags)
	assert.Equal(t, []string{"name:Heater", "id:d1", "sensor_id:s1", "sensor_name:Probe A"}, got[1].Tags)
	assert.Equal(t, []string{"name:Heater", "id:d1", "sensor_id:s2", "sensor_name:Probe B"}, got[2].Tags)
}

func TestWalkSkipsMalformedAndContinues(t *testing.T) {
	snap := &model.Snapshot{Entities: []*model.Entity{
		nil,
		{Name: "no id", Kind: "device", States: []model.State{{Name: "A", Value: model.Numeric(1)}}},
		{
			ID:   "ok",
			Kind: "device",
			States: []model.State{
				{Name: ":", Value: model.Numeric(1)},
				{Name: "Flag", Value: model.ValueOf(true)},
				{Name: "Good", Value: model.Numeric(2)},
			},
		},
	}}

	rec := NewRecorder()
	stats := NewWalker(discardLogger(), "p", testLayouts).Walk(snap, rec)

	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "p.good", rec.Observations()[0].Name)
	assert.Equal(t, Stats{Entities: 1, Emitted: 1, Dropped: 1, Skipped: 3}, stats)
}

func TestWalkDefaultLayout(t *testing.T) {
	layouts := map[string]Layout{"": {Inherit: []string{"id"}}}
	rec := NewRecorder()
	NewWalker(discardLogger(), "", layouts).Walk(&model.Snapshot{Entities: []*model.Entity{
		{ID: "x", Kind: "unknown", States: []model.State{{Name: "V", Value: model.Numeric(1)}}},
	}}, rec)

	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "v", rec.Observations()[0].Name)
	assert.Equal(t, []string{"id:x"}, rec.Observations()[0].Tags)
}

func TestWalkNilSnapshot(t *testing.T) {
	rec := NewRecorder()
	assert.Equal(t, Stats{}, NewWalker(discardLogger(), "p", nil).Walk(nil, rec))
	assert.Zero(t, rec.Len())
}

func TestWalkVendorNamespace(t *testing.T) {
	snap := &model.Snapshot{Entities: []*model.Entity{{
		ID:   "gw",
		Kind: "gateway",
		States: []model.State{
			{Name: "core:SomeValue", Value: model.Numeric(1)},
			{Name: "gateway.is_on", Value: model.Numeric(1)},
		},
	}}}

	rec := NewRecorder()
	NewWalker(discardLogger(), "cozytouch", nil).Walk(snap, rec)
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "cozytouch.some_value", rec.Observations()[0].Name)
	assert.Equal(t, "cozytouch.gateway.is_on", rec.Observations()[1].Name)

	rec = NewRecorder()
	NewWalker(discardLogger(), "", nil).Walk(snap, rec)
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "core.some_value", rec.Observations()[0].Name)
}

func TestWalkKeepsSpecificNamespaces(t *testing.T) {
	snap := &model.Snapshot{Entities: []*model.Entity{{
		ID:   "io://1#1",
		Name: "Heater",
		Kind: "device",
		States: []model.State{
			{Name: "core:TargetTemperatureState", Value: model.Numeric(19)},
			{Name: "io:TargetTemperatureState", Value: model.Numeric(21)},
			{Name: "io:DHWModeState", Value: model.Text("eco")},
			{Name: "modbuslink:DHWModeState", Value: model.Text("manual")},
		},
	}}}

	rec := NewRecorder()
	NewWalker(discardLogger(), "cozytouch", testLayouts).Walk(snap, rec)

	var names []string
	for _, o := range rec.Observations() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{
		"cozytouch.target_temperature_state",
		"cozytouch.io.target_temperature_state",
		"cozytouch.io.dhw_mode_state.by_value",
		"cozytouch.modbuslink.dhw_mode_state.by_value",
	}, names)
}
