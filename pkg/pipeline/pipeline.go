package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"media-transcriber/pkg/config"
	"media-transcriber/pkg/models"
)

// jobRetention is how long finished jobs stay queryable.
const jobRetention = time.Hour

// Manager accepts asynchronous processing jobs and runs them on a worker
// pool. Each job is one Orchestrator.Process call.
type Manager struct {
	orch    *Orchestrator
	jobs    *JobStore
	pool    *WorkerPool
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(orch *Orchestrator, cfg config.JobsConfig, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		orch:    orch,
		jobs:    NewJobStore(),
		timeout: timeout,
		logger:  logger.With("component", "jobs"),
	}
	m.pool = NewWorkerPool(cfg.Workers, cfg.QueueSize, m.runJob)
	return m
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started = true

	m.logger.Info("starting worker pool", "workers", m.pool.workers)
	m.pool.Start(m.ctx)

	m.wg.Add(1)
	go m.runPruner()
	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// queued are left unprocessed.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.logger.Info("stopping")
	m.cancel()
	m.pool.Stop()
	m.wg.Wait()
	m.logger.Info("stopped")
}

func (m *Manager) Submit(req Request) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		return nil, ErrShuttingDown
	}

	job := models.NewJob(req.URL)
	// snapshot before a worker can start updating the job
	c := *job
	m.jobs.Add(job)
	if !m.pool.TrySubmit(&task{job: job, req: req}) {
		m.jobs.Remove(job.ID)
		m.logger.Warn("queue full, rejecting job", "url", job.URL)
		return nil, ErrQueueFull
	}
	m.logger.Info("job submitted", "job", c.ID, "url", c.URL)
	return &c, nil
}

func (m *Manager) Job(id string) (*models.Job, error) {
	return m.jobs.Get(id)
}

func (m *Manager) runJob(ctx context.Context, t *task) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	res, err := m.orch.Process(ctx, t.req, func(ev Event) {
		// completion is recorded by finish, together with the result flags
		if ev.Status != models.StatusCompleted {
			m.jobs.Apply(t.job.ID, ev)
		}
	})
	if err != nil {
		m.logger.Warn("job failed", "job", t.job.ID, "error", err)
		return
	}
	m.jobs.finish(t.job.ID, res)
	m.logger.Info("job completed", "job", t.job.ID, "cached", res.Cached)
}

func (m *Manager) runPruner() {
	defer m.wg.Done()
	ticker := time.NewTicker(jobRetention / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.jobs.Prune(time.Now().Add(-jobRetention)); n > 0 {
				m.logger.Debug("pruned finished jobs", "count", n)
			}
		case <-m.ctx.Done():
			return
		}
	}
}
