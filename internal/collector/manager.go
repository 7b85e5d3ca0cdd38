package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/speedwagon-io/homechecks/internal/buffer"
	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
	"github.com/speedwagon-io/homechecks/internal/sender"
)

const (
	retryInterval  = 30 * time.Second
	retryBatchSize = 100
)

type Manager struct {
	log     *slog.Logger
	jobs    []Job
	sender  sender.Sender
	buffer  buffer.Buffer
	timeout time.Duration
	maxAge  time.Duration

	statusMu sync.RWMutex
	status   map[string]CycleStatus

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager wires jobs to a sender. buf may be nil to disable buffering.
func NewManager(
	log *slog.Logger,
	jobs []Job,
	sender sender.Sender,
	buf buffer.Buffer,
	timeout time.Duration,
	maxAge time.Duration,
) *Manager {
	status := make(map[string]CycleStatus, len(jobs))
	for _, j := range jobs {
		status[j.Check.Name()] = CycleStatus{Interval: j.Interval}
	}

	return &Manager{
		log:     log,
		jobs:    jobs,
		sender:  sender,
		buffer:  buf,
		timeout: timeout,
		maxAge:  maxAge,
		status:  status,
		stopCh:  make(chan struct{}),
	}
}

// Start runs every job on its own ticker and blocks until ctx is cancelled
// or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.log.Info("starting check manager", slog.Int("checks", len(m.jobs)))

	for _, job := range m.jobs {
		m.wg.Add(1)
		go m.runJob(ctx, job)
	}

	m.wg.Add(1)
	go m.retryBufferedData(ctx)

	select {
	case <-ctx.Done():
		m.log.Info("context cancelled, stopping manager")
	case <-m.stopCh:
		m.log.Info("stop signal received, stopping manager")
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	for _, job := range m.jobs {
		if err := job.Check.Close(); err != nil {
			m.log.Error("failed to close check",
				slog.String("check", job.Check.Name()),
				sl.Err(err),
			)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, job Job) {
	defer m.wg.Done()

	log := m.log.With(slog.String("check", job.Check.Name()))
	log.Info("scheduling check", slog.Duration("interval", job.Interval))

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	m.runAndLog(ctx, log, job)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runAndLog(ctx, log, job)
		}
	}
}

func (m *Manager) runAndLog(ctx context.Context, log *slog.Logger, job Job) {
	if err := m.RunCycle(ctx, job); err != nil {
		log.Error("check cycle failed", sl.Err(err))
	}
}

// RunCycle fetches one snapshot, walks it and sends the resulting batch.
// Nothing is sent when the fetch fails.
func (m *Manager) RunCycle(ctx context.Context, job Job) error {
	name := job.Check.Name()
	started := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	snapshot, err := job.Check.Fetch(fetchCtx)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFetch, name, err)
		m.recordCycle(name, started, err, 0)
		return err
	}

	rec := pipeline.NewRecorder()
	stats := job.Walker.Walk(snapshot, rec)

	m.log.Debug("snapshot walked",
		slog.String("check", name),
		slog.Int("entities", stats.Entities),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
		slog.Int("skipped", stats.Skipped),
	)

	m.recordCycle(name, started, nil, stats.Emitted)

	if rec.Len() == 0 {
		m.log.Debug("skipping empty batch", slog.String("check", name))
		return nil
	}

	batch := model.NewBatch(name, rec.Observations())
	if err := m.sender.Send(ctx, batch); err != nil {
		m.log.Error("failed to send batch",
			slog.String("check", name),
			slog.String("batch_id", batch.ID),
			sl.Err(err),
		)
		m.bufferBatch(ctx, batch)
		return nil
	}

	m.log.Debug("batch sent",
		slog.String("check", name),
		slog.Int("observations", len(batch.Observations)),
	)
	return nil
}

func (m *Manager) bufferBatch(ctx context.Context, batch *model.Batch) {
	if m.buffer == nil {
		return
	}
	if err := m.buffer.Store(ctx, batch); err != nil {
		m.log.Error("failed to buffer batch",
			slog.String("batch_id", batch.ID),
			sl.Err(err),
		)
		return
	}
	m.log.Info("batch buffered for later retry",
		slog.String("check", batch.Check),
		slog.String("batch_id", batch.ID),
	)
}

func (m *Manager) recordCycle(name string, started time.Time, err error, observations int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	st := m.status[name]
	st.LastRun = started
	st.LastError = err
	if err == nil {
		st.LastSuccess = started
		st.Observations = observations
	}
	m.status[name] = st
}

func (m *Manager) Status(name string) (CycleStatus, bool) {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	st, ok := m.status[name]
	return st, ok
}

// Ready reports whether every check has completed at least one cycle.
func (m *Manager) Ready() bool {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	for _, st := range m.status {
		if st.LastRun.IsZero() {
			return false
		}
	}
	return true
}

func (m *Manager) retryBufferedData(ctx context.Context) {
	defer m.wg.Done()

	if m.buffer == nil {
		return
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.ProcessBufferedData(ctx)
		}
	}
}

// ProcessBufferedData resends pending batches oldest first and stops at the
// first failure.
func (m *Manager) ProcessBufferedData(ctx context.Context) {
	if m.buffer == nil {
		return
	}

	pending, err := m.buffer.GetPending(ctx, retryBatchSize)
	if err != nil {
		m.log.Error("failed to get pending batches from buffer", sl.Err(err))
		return
	}

	if len(pending) > 0 {
		m.log.Info("processing buffered batches", slog.Int("count", len(pending)))
	}

	var sentIDs []string
	for _, batch := range pending {
		if err := m.sender.Send(ctx, batch); err != nil {
			m.log.Debug("failed to send buffered batch",
				slog.String("batch_id", batch.ID),
				sl.Err(err),
			)
			break
		}
		sentIDs = append(sentIDs, batch.ID)
	}

	if len(sentIDs) > 0 {
		if err := m.buffer.MarkSent(ctx, sentIDs); err != nil {
			m.log.Error("failed to mark buffered batches as sent", sl.Err(err))
		} else {
			m.log.Info("buffered batches sent", slog.Int("count", len(sentIDs)))
		}
	}

	if err := m.buffer.Cleanup(ctx, m.maxAge); err != nil {
		m.log.Error("failed to cleanup old buffer data", sl.Err(err))
	}
}
