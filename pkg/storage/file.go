package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-transcriber/pkg/fingerprint"
	"media-transcriber/pkg/models"
)

// FileStore keeps one JSON document per fingerprint in a directory.
// Writes go to a temp file in the same directory and are renamed into
// place, so readers see either the old record or the new one.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir, logger: loggerOr(logger)}, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) path(fp string) string {
	return filepath.Join(s.dir, fp+".json")
}

func (s *FileStore) Exists(fp string) bool {
	if !fingerprint.Valid(fp) {
		return false
	}
	_, err := readRecord(s.path(fp), fp)
	return err == nil
}

func (s *FileStore) Get(fp string) (*models.TranscriptionRecord, error) {
	if !fingerprint.Valid(fp) {
		return nil, ErrNotFound
	}
	rec, err := readRecord(s.path(fp), fp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("unreadable cache entry", "fingerprint", fp, "error", err)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

func readRecord(path, fp string) (*models.TranscriptionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeRecord(data, fp)
}

func (s *FileStore) Put(rec *models.TranscriptionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return unavailable("put", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return unavailable("put", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return unavailable("put", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return unavailable("put", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return unavailable("put", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return unavailable("put", err)
	}
	if err := os.Rename(tmpPath, s.path(rec.Fingerprint)); err != nil {
		_ = os.Remove(tmpPath)
		return unavailable("put", err)
	}
	if err := syncDir(s.dir); err != nil {
		return unavailable("put", err)
	}
	s.logger.Debug("transcription cached", "fingerprint", rec.Fingerprint, "path", s.path(rec.Fingerprint))
	return nil
}

// syncDir flushes the directory entry so a completed rename survives a crash.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func (s *FileStore) List() []*models.TranscriptionRecord {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to list cache directory", "dir", s.dir, "error", err)
		return nil
	}
	records := make([]*models.TranscriptionRecord, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		fp, ok := strings.CutSuffix(name, ".json")
		if e.IsDir() || !ok || !fingerprint.Valid(fp) {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, name), fp)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("skipping unreadable cache entry", "file", name, "error", err)
			}
			continue
		}
		records = append(records, rec)
	}
	sortNewestFirst(records)
	return records
}

func (s *FileStore) Delete(fp string) (bool, error) {
	if !fingerprint.Valid(fp) {
		return false, nil
	}
	err := os.Remove(s.path(fp))
	if err == nil {
		s.logger.Info("deleted cached transcription", "fingerprint", fp)
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, unavailable("delete", err)
}

func (s *FileStore) EvictOlderThan(maxAge time.Duration) (int, error) {
	return evictFrom(s, maxAge, s.logger)
}

func (s *FileStore) Close() error { return nil }
