package storage

import (
	"log/slog"
	"sync"
	"time"

	"media-transcriber/pkg/models"
)

// MemoryStore is a process-local Store. Records are copied on the way in
// and out so callers cannot mutate cached state.
type MemoryStore struct {
	records map[string]*models.TranscriptionRecord
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.TranscriptionRecord),
		logger:  loggerOr(logger),
	}
}

var _ Store = (*MemoryStore)(nil)

func clone(rec *models.TranscriptionRecord) *models.TranscriptionRecord {
	c := *rec
	if rec.Words != nil {
		c.Words = append([]models.WordToken(nil), rec.Words...)
	}
	return &c
}

func (s *MemoryStore) Exists(fp string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[fp]
	return ok
}

func (s *MemoryStore) Get(fp string) (*models.TranscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[fp]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) Put(rec *models.TranscriptionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Fingerprint] = clone(rec)
	return nil
}

func (s *MemoryStore) List() []*models.TranscriptionRecord {
	s.mu.RLock()
	records := make([]*models.TranscriptionRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, clone(rec))
	}
	s.mu.RUnlock()
	sortNewestFirst(records)
	return records
}

func (s *MemoryStore) Delete(fp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[fp]; !ok {
		return false, nil
	}
	delete(s.records, fp)
	return true, nil
}

func (s *MemoryStore) EvictOlderThan(maxAge time.Duration) (int, error) {
	return evictFrom(s, maxAge, s.logger)
}

func (s *MemoryStore) Close() error { return nil }
