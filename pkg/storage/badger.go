package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"

	"media-transcriber/pkg/models"
)

var recordPrefix = []byte("transcript/")

// BadgerStore keeps records in an embedded badger database. Each Put is a
// single transaction, which gives the same all-or-nothing visibility as
// the file store's rename.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, logger: loggerOr(logger)}, nil
}

var _ Store = (*BadgerStore)(nil)

func recordKey(fp string) []byte {
	return append(append([]byte{}, recordPrefix...), fp...)
}

func (s *BadgerStore) read(fp string) (*models.TranscriptionRecord, error) {
	var rec *models.TranscriptionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val, fp)
			return err
		})
	})
	return rec, err
}

func (s *BadgerStore) Exists(fp string) bool {
	_, err := s.read(fp)
	return err == nil
}

func (s *BadgerStore) Get(fp string) (*models.TranscriptionRecord, error) {
	rec, err := s.read(fp)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("unreadable cache entry", "fingerprint", fp, "error", err)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *BadgerStore) Put(rec *models.TranscriptionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Fingerprint), data)
	})
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *BadgerStore) List() []*models.TranscriptionRecord {
	var records []*models.TranscriptionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
			item := it.Item()
			fp := string(item.Key()[len(recordPrefix):])
			var rec *models.TranscriptionRecord
			err := item.Value(func(val []byte) error {
				var err error
				rec, err = decodeRecord(val, fp)
				return err
			})
			if err != nil {
				s.logger.Warn("skipping unreadable cache entry", "key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to list cache", "error", err)
	}
	sortNewestFirst(records)
	return records
}

func (s *BadgerStore) Delete(fp string) (bool, error) {
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(fp)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, unavailable("delete", err)
	}
	if existed {
		s.logger.Info("deleted cached transcription", "fingerprint", fp)
	}
	return existed, nil
}

func (s *BadgerStore) EvictOlderThan(maxAge time.Duration) (int, error) {
	return evictFrom(s, maxAge, s.logger)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
