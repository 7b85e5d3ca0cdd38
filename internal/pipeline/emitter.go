package pipeline

import "github.com/speedwagon-io/homechecks/internal/model"

// Emitter receives observations. It reports nothing back to the walker.
type Emitter interface {
	Emit(obs model.Observation)
}

type EmitterFunc func(obs model.Observation)

func (f EmitterFunc) Emit(obs model.Observation) {
	f(obs)
}

// Recorder keeps the observations of one cycle in memory so they can be
// shipped together once the walk is over.
type Recorder struct {
	observations []model.Observation
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(obs model.Observation) {
	r.observations = append(r.observations, obs)
}

func (r *Recorder) Observations() []model.Observation {
	return r.observations
}

func (r *Recorder) Len() int {
	return len(r.observations)
}
