package collector

import (
	"context"
	"errors"
	"time"

	"github.com/speedwagon-io/homechecks/internal/model"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
)

// ErrFetch wraps every data source failure. A cycle that fails to fetch
// sends nothing.
var ErrFetch = errors.New("fetch failed")

// Check is a data source adapter. Fetch returns either a complete snapshot
// or an error, never both.
type Check interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
	Name() string
	Close() error
}

type Job struct {
	Check    Check
	Walker   *pipeline.Walker
	Interval time.Duration
}

type CycleStatus struct {
	LastRun      time.Time
	LastSuccess  time.Time
	LastError    error
	Observations int
	Interval     time.Duration
}
