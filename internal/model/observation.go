package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MetricType string

const (
	MetricGauge          MetricType = "gauge"
	MetricMonotonicCount MetricType = "monotonic_count"
)

type Observation struct {
	Name  string     `json:"name"`
	Value float64    `json:"value"`
	Type  MetricType `json:"type"`
	Tags  []string   `json:"tags"`
}

// Batch holds every observation of a single check cycle.
type Batch struct {
	ID           string        `json:"id"`
	Check        string        `json:"check"`
	Timestamp    time.Time     `json:"timestamp"`
	Observations []Observation `json:"observations"`
}

func NewBatch(check string, observations []Observation) *Batch {
	return &Batch{
		ID:           uuid.New().String(),
		Check:        check,
		Timestamp:    time.Now().UTC(),
		Observations: observations,
	}
}

func (b *Batch) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

func BatchFromJSON(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
