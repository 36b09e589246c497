package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/bastionproject/bastion/internal/errors"
)

// Repository is the metadata store contract. The flat-file Store is the
// only implementation today; the interface exists so a future backend can
// be substituted without touching producer, verification or retention code.
type Repository interface {
	Get(id string) (*Record, error)
	List() ([]*Record, error)
	Put(record *Record) error
	Delete(id string) error
}

// Store persists one pretty-printed JSON file per record under the layout's
// metadata directories, with an in-memory cache in front. Writes publish
// atomically (write-to-temp-then-rename) so a partially written record is
// never observable by concurrent readers.
type Store struct {
	layout Layout

	mu    sync.RWMutex
	cache map[string]*Record
}

// NewStore opens the metadata store, loading any existing records.
func NewStore(layout Layout) (*Store, error) {
	s := &Store{
		layout: layout,
		cache:  make(map[string]*Record),
	}
	for _, dir := range []string{layout.DatabaseMetadataDir(), layout.DocumentsMetadataDir()} {
		if err := s.loadDir(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read metadata dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read metadata file %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parse metadata file %s: %w", entry.Name(), err)
		}
		s.cache[rec.ID] = &rec
	}
	return nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cache[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrBackupNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

// List returns copies of all records, newest first.
func (s *Store) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.cache))
	for _, rec := range s.cache {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// Put persists a record, enforcing the forward-only status machine and the
// monotonicity of the verified flag against the stored state.
func (s *Store) Put(record *Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.cache[record.ID]; ok {
		if !prev.Status.CanTransition(record.Status) {
			return fmt.Errorf("illegal status transition %s -> %s for %s",
				prev.Status, record.Status, record.ID)
		}
		if prev.Verified && !record.Verified {
			return fmt.Errorf("verified flag cannot be cleared for %s", record.ID)
		}
	}

	if err := s.write(record); err != nil {
		return err
	}

	cp := *record
	s.cache[record.ID] = &cp
	return nil
}

// write publishes the record file atomically.
func (s *Store) write(record *Record) error {
	dir := s.layout.MetadataDirFor(record.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	final := filepath.Join(dir, record.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", record.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish record %s: %w", record.ID, err)
	}
	return nil
}

// Delete removes the record and its metadata file.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache[id]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrBackupNotFound, id)
	}

	path := filepath.Join(s.layout.MetadataDirFor(id), id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata for %s: %w", id, err)
	}
	delete(s.cache, id)
	return nil
}

var _ Repository = (*Store)(nil)
