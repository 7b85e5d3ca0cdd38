package health

import (
	"context"
	"time"

	"github.com/speedwagon-io/homechecks/internal/collector"
)

// staleFactor is how many intervals a check may go without a successful
// cycle before it is reported degraded.
const staleFactor = 3

// CycleReporter reports the latest poll cycles of one check.
type CycleReporter struct {
	check  string
	status func(name string) (collector.CycleStatus, bool)
	now    func() time.Time
}

func NewCycleReporter(check string, status func(name string) (collector.CycleStatus, bool)) *CycleReporter {
	return &CycleReporter{check: check, status: status, now: time.Now}
}

func (c *CycleReporter) Report(ctx context.Context) Report {
	rep := Report{Name: c.check, Status: StatusHealthy}

	st, ok := c.status(c.check)
	if !ok {
		rep.Status = StatusUnhealthy
		rep.Message = "check is not scheduled"
		return rep
	}

	rep.Details = map[string]any{
		"interval":     st.Interval.String(),
		"observations": st.Observations,
	}
	if !st.LastRun.IsZero() {
		rep.Details["last_run"] = st.LastRun.UTC()
	}
	if !st.LastSuccess.IsZero() {
		rep.Details["last_success"] = st.LastSuccess.UTC()
	}

	switch {
	case st.LastError != nil:
		rep.Status = StatusUnhealthy
		rep.Message = "last cycle failed: " + st.LastError.Error()
	case st.LastSuccess.IsZero():
		rep.Status = StatusDegraded
		rep.Message = "no successful cycle yet"
	case st.Interval > 0 && c.now().Sub(st.LastSuccess) > staleFactor*st.Interval:
		rep.Status = StatusDegraded
		rep.Message = "no successful cycle for " + c.now().Sub(st.LastSuccess).Round(time.Second).String()
	}

	return rep
}

// SenderReporter reports whether the metrics backend accepts data. A
// failing sender only degrades the service since batches are buffered.
type SenderReporter struct {
	kind   string
	health func(ctx context.Context) error
}

func NewSenderReporter(kind string, health func(ctx context.Context) error) *SenderReporter {
	return &SenderReporter{kind: kind, health: health}
}

func (s *SenderReporter) Report(ctx context.Context) Report {
	rep := Report{
		Name:    "sender",
		Status:  StatusHealthy,
		Details: map[string]any{"type": s.kind},
	}
	if err := s.health(ctx); err != nil {
		rep.Status = StatusDegraded
		rep.Message = err.Error()
	}
	return rep
}

// BufferReporter reports the number of batches waiting for redelivery.
type BufferReporter struct {
	pending  func(ctx context.Context) (int64, error)
	maxQueue int64
}

func NewBufferReporter(pending func(ctx context.Context) (int64, error), maxQueue int64) *BufferReporter {
	return &BufferReporter{pending: pending, maxQueue: maxQueue}
}

func (b *BufferReporter) Report(ctx context.Context) Report {
	rep := Report{Name: "buffer", Status: StatusHealthy}

	n, err := b.pending(ctx)
	if err != nil {
		rep.Status = StatusUnhealthy
		rep.Message = err.Error()
		return rep
	}

	rep.Details = map[string]any{"pending_batches": n}
	if b.maxQueue > 0 && n > b.maxQueue {
		rep.Status = StatusDegraded
		rep.Message = "batches are piling up"
	}
	return rep
}
