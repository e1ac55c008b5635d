package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"

	"media-transcriber/pkg/fingerprint"
	"media-transcriber/pkg/models"
)

func testRecord(locator string, processedAt time.Time) *models.TranscriptionRecord {
	return &models.TranscriptionRecord{
		Fingerprint:           fingerprint.Generate(locator),
		URL:                   locator,
		Title:                 "Episode " + locator,
		Author:                "Someone",
		Duration:              1203.5,
		ProcessedAt:           processedAt,
		TranscriptClean:       "hello there. general kenobi",
		TranscriptTimestamped: "[0:00] hello there.\n\n[0:41] general kenobi",
		Words: []models.WordToken{
			{Text: "hello", Start: 0.08, End: 0.4, Confidence: 0.99},
			{Text: "there.", Start: 0.4, End: 0.91, Confidence: 0.87},
			{Text: "general", Start: 41.2, End: 41.7, Confidence: 0.5},
			{Text: "kenobi", Start: 541.3, End: 541.9, Confidence: 1},
		},
		SegmentCount:     3,
		Language:         "en",
		DetectedLanguage: "en",
		BackendDuration:  1203.41,
	}
}

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir(), nil)
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore(t.TempDir(), nil)
			if err != nil {
				t.Fatalf("NewBadgerStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(nil)
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		rec := testRecord("https://example.com/watch?v=1", time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC))
		if s.Exists(rec.Fingerprint) {
			t.Fatal("record exists before put")
		}
		if err := s.Put(rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if !s.Exists(rec.Fingerprint) {
			t.Fatal("record missing after put")
		}
		got, err := s.Get(rec.Fingerprint)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !reflect.DeepEqual(got, rec) {
			t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, rec)
		}
	})
}

func TestStoreGetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		if _, err := s.Get(fingerprint.Generate("nope")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get missing: %v", err)
		}
		if s.Exists(fingerprint.Generate("nope")) {
			t.Fatal("Exists missing = true")
		}
	})
}

func TestStorePutOverwrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		rec := testRecord("https://example.com/a", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		if err := s.Put(rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
		replacement := testRecord("https://example.com/a", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		replacement.TranscriptClean = "replaced"
		replacement.Words = nil
		if err := s.Put(replacement); err != nil {
			t.Fatalf("Put replacement: %v", err)
		}
		got, err := s.Get(rec.Fingerprint)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.TranscriptClean != "replaced" || len(got.Words) != 0 {
			t.Fatalf("overwrite not applied: %+v", got)
		}
		if n := len(s.List()); n != 1 {
			t.Fatalf("List has %d records after overwrite", n)
		}
	})
}

func TestStoreListNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		for i, loc := range []string{"a", "b", "c", "d"} {
			// insert out of order
			offset := time.Duration((i*3)%4) * time.Hour
			if err := s.Put(testRecord(loc, base.Add(offset))); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		list := s.List()
		if len(list) != 4 {
			t.Fatalf("List returned %d records", len(list))
		}
		for i := 1; i < len(list); i++ {
			if list[i].ProcessedAt.After(list[i-1].ProcessedAt) {
				t.Fatalf("List not newest first at %d: %v after %v", i, list[i].ProcessedAt, list[i-1].ProcessedAt)
			}
		}
	})
}

func TestStoreDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		rec := testRecord("https://example.com/del", time.Now().UTC())
		if err := s.Put(rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
		ok, err := s.Delete(rec.Fingerprint)
		if err != nil || !ok {
			t.Fatalf("Delete existing = %v, %v", ok, err)
		}
		ok, err = s.Delete(rec.Fingerprint)
		if err != nil || ok {
			t.Fatalf("Delete again = %v, %v", ok, err)
		}
		if _, err := s.Get(rec.Fingerprint); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get after delete: %v", err)
		}
	})
}

func TestStoreEvictionBoundary(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		now := time.Now().UTC()
		old := testRecord("old", now.Add(-169*time.Hour))
		fresh := testRecord("fresh", now.Add(-167*time.Hour))
		for _, r := range []*models.TranscriptionRecord{old, fresh} {
			if err := s.Put(r); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		n, err := s.EvictOlderThan(168 * time.Hour)
		if err != nil {
			t.Fatalf("EvictOlderThan: %v", err)
		}
		if n != 1 {
			t.Fatalf("evicted %d, want 1", n)
		}
		if s.Exists(old.Fingerprint) {
			t.Fatal("169h record survived eviction")
		}
		if !s.Exists(fresh.Fingerprint) {
			t.Fatal("167h record was evicted")
		}
	})
}

func TestStoreConcurrentPuts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		var wg sync.WaitGroup
		locs := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
		for _, loc := range locs {
			wg.Add(1)
			go func(loc string) {
				defer wg.Done()
				if err := s.Put(testRecord(loc, time.Now().UTC())); err != nil {
					t.Errorf("Put %s: %v", loc, err)
				}
				_ = s.Exists(fingerprint.Generate(loc))
			}(loc)
		}
		wg.Wait()
		if n := len(s.List()); n != len(locs) {
			t.Fatalf("List has %d records, want %d", n, len(locs))
		}
	})
}

func TestFileStoreSkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	good := testRecord("good", time.Now().UTC())
	if err := s.Put(good); err != nil {
		t.Fatalf("Put: %v", err)
	}
	bad := fingerprint.Generate("bad")
	if err := os.WriteFile(filepath.Join(dir, bad+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	// leftovers from an interrupted write are ignored
	if err := os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 1 || list[0].Fingerprint != good.Fingerprint {
		t.Fatalf("List = %+v", list)
	}
	if _, err := s.Get(bad); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get corrupt: %v", err)
	}
	if s.Exists(bad) {
		t.Fatal("Exists corrupt = true")
	}
}

func TestFileStoreIgnoresForeignRecords(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	fp := fingerprint.Generate("https://www.youtube.com/watch?v=legacy")
	legacy := `{
  "videoId": "` + fp + `",
  "url": "https://www.youtube.com/watch?v=legacy",
  "processedAt": "2024-01-01T00:00:00.000Z",
  "transcriptClean": "hello",
  "words": [{"word": "hello", "start": 0, "end": 1, "confidence": 0.9}]
}`
	if err := os.WriteFile(filepath.Join(dir, fp+".json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	// a valid record stored under another entry's name
	other := testRecord("other", time.Now().UTC())
	misplaced := fingerprint.Generate("misplaced")
	data, err := json.Marshal(other)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, misplaced+".json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{fp, misplaced} {
		if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%s) = %v, want ErrNotFound", key, err)
		}
		if s.Exists(key) {
			t.Fatalf("Exists(%s) = true", key)
		}
	}
	if list := s.List(); len(list) != 0 {
		t.Fatalf("List = %+v", list)
	}
}

func TestStorePutRejectsInvalidRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		bad := []*models.TranscriptionRecord{
			nil,
			{Fingerprint: ""},
			{Fingerprint: "not-a-fingerprint"},
			{Fingerprint: "ABCDEF0123456789"},
		}
		for _, rec := range bad {
			if err := s.Put(rec); !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("Put(%+v) = %v, want ErrInvalidRecord", rec, err)
			}
		}
		if list := s.List(); len(list) != 0 {
			t.Fatalf("List = %d records after rejected puts", len(list))
		}
	})
}

func TestFileStoreRejectsPathLikeFingerprints(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if s.Exists("../../etc/passwd") {
		t.Fatal("Exists accepted a path")
	}
	if ok, err := s.Delete("../secret"); ok || err != nil {
		t.Fatalf("Delete path = %v, %v", ok, err)
	}
}

func TestFileStoreUnavailable(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cache")
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	// replace the cache directory with a plain file
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = s.Put(testRecord("x", time.Now().UTC()))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Put on broken dir: %v", err)
	}
	if s.Exists(fingerprint.Generate("x")) {
		t.Fatal("Exists on broken dir = true")
	}
	if list := s.List(); len(list) != 0 {
		t.Fatalf("List on broken dir = %d records", len(list))
	}
}

func TestBadgerStoreSkipsCorruptEntries(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	defer s.Close()

	good := testRecord("good", time.Now().UTC())
	if err := s.Put(good); err != nil {
		t.Fatalf("Put: %v", err)
	}
	bad := fingerprint.Generate("bad")
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(bad), []byte("\x00garbage"))
	})
	if err != nil {
		t.Fatal(err)
	}

	misplaced := fingerprint.Generate("misplaced")
	data, err := json.Marshal(good)
	if err != nil {
		t.Fatal(err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(misplaced), data)
	})
	if err != nil {
		t.Fatal(err)
	}

	if list := s.List(); len(list) != 1 {
		t.Fatalf("List returned %d records, want 1", len(list))
	}
	for _, key := range []string{bad, misplaced} {
		if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if s.Exists(key) {
			t.Fatalf("Exists(%s) = true", key)
		}
	}
}

func TestOpen(t *testing.T) {
	for _, backend := range []string{"file", "memory", "badger"} {
		s, err := Open(backend, t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Open(%s): %v", backend, err)
		}
		s.Close()
	}
	if _, err := Open("redis", t.TempDir(), nil); err == nil {
		t.Fatal("Open(redis) should fail")
	}
}
