package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"media-transcriber/pkg/fingerprint"
	"media-transcriber/pkg/models"
)

var (
	ErrNotFound           = errors.New("transcription not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidRecord      = errors.New("invalid transcription record")
)

// Store is the fingerprint-keyed transcription cache.
//
// Exists, Get and List never surface I/O failures: unreadable entries
// read as absent. Put and Delete report them as ErrStorageUnavailable.
type Store interface {
	Exists(fingerprint string) bool
	Get(fingerprint string) (*models.TranscriptionRecord, error)
	Put(record *models.TranscriptionRecord) error
	List() []*models.TranscriptionRecord
	Delete(fingerprint string) (bool, error)
	EvictOlderThan(maxAge time.Duration) (int, error)
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

func validateRecord(rec *models.TranscriptionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if !fingerprint.Valid(rec.Fingerprint) {
		return fmt.Errorf("%w: fingerprint %q", ErrInvalidRecord, rec.Fingerprint)
	}
	return nil
}

// decodeRecord parses a stored value and checks that it belongs to key.
// Foreign JSON that happens to parse is rejected instead of read back as
// an empty record.
func decodeRecord(data []byte, key string) (*models.TranscriptionRecord, error) {
	var rec models.TranscriptionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Fingerprint != key {
		return nil, fmt.Errorf("%w: entry %s holds fingerprint %q", ErrInvalidRecord, key, rec.Fingerprint)
	}
	return &rec, nil
}

func sortNewestFirst(records []*models.TranscriptionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
}

// evictFrom deletes every listed record processed before now-maxAge.
// List only yields records stored under their own fingerprint, so each
// record's Fingerprint is its entry key. Records that vanish between List
// and Delete are not counted.
func evictFrom(s Store, maxAge time.Duration, logger *slog.Logger) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	var firstErr error
	for _, rec := range s.List() {
		if !rec.ProcessedAt.Before(cutoff) {
			continue
		}
		ok, err := s.Delete(rec.Fingerprint)
		if err != nil {
			logger.Warn("evict failed", "fingerprint", rec.Fingerprint, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			deleted++
		}
	}
	logger.Info("evicted old transcriptions", "count", deleted, "max_age", maxAge.String())
	return deleted, firstErr
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "storage")
}

// Open constructs the Store named by backend: "file", "badger" or "memory".
func Open(backend, dir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir, logger)
	case "badger":
		return NewBadgerStore(dir, logger)
	case "memory":
		return NewMemoryStore(logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
