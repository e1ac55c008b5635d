package pipeline

import (
	"sync"
	"time"

	"media-transcriber/pkg/models"
)

// JobStore is the in-memory registry of asynchronous jobs.
type JobStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.Job)}
}

func (s *JobStore) Add(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	c := *job
	return &c, nil
}

func (s *JobStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// Apply records an orchestrator event against a job.
func (s *JobStore) Apply(id string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = ev.Status
	if ev.Fingerprint != "" {
		job.Fingerprint = ev.Fingerprint
	}
	if ev.SegmentCount > 0 {
		job.SegmentCount = ev.SegmentCount
	}
	if ev.Status == models.StatusTranscribing {
		job.SegmentIndex = ev.SegmentIndex
	}
	if ev.Err != nil {
		job.Error = ev.Err.Error()
	}
	job.UpdatedAt = time.Now()
}

func (s *JobStore) finish(id string, res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || res == nil {
		return
	}
	job.Status = models.StatusCompleted
	job.Cached = res.Cached
	job.Persisted = res.Persisted
	job.SegmentCount = res.Record.SegmentCount
	if res.PersistError != nil {
		job.Error = res.PersistError.Error()
	}
	job.UpdatedAt = time.Now()
}

// Prune drops terminal jobs last updated before cutoff.
func (s *JobStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
