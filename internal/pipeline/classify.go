package pipeline

import "github.com/speedwagon-io/homechecks/internal/model"

const (
	byValueSuffix = ".by_value"
	valueTagKey   = "value"
)

// Classify maps one state onto zero or one observation.
//
//	numeric      -> observation under name
//	text         -> gauge name.by_value = 1 with an extra value:<text> tag
//	unsupported  -> nothing
//
// Numeric counters become monotonic counts. tags is never modified.
func Classify(name string, state model.State, tags []string) (model.Observation, bool) {
	switch state.Value.Kind() {
	case model.KindNumeric:
		v, _ := state.Value.AsFloat()
		typ := model.MetricGauge
		if state.Counter {
			typ = model.MetricMonotonicCount
		}
		return model.Observation{
			Name:  name,
			Value: v,
			Type:  typ,
			Tags:  cloneTags(tags),
		}, true

	case model.KindText:
		s, _ := state.Value.AsText()
		t := make([]string, 0, len(tags)+1)
		t = append(t, tags...)
		t = append(t, Tag(valueTagKey, s))
		return model.Observation{
			Name:  name + byValueSuffix,
			Value: 1,
			Type:  model.MetricGauge,
			Tags:  t,
		}, true

	default:
		return model.Observation{}, false
	}
}
