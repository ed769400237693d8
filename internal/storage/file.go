package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/yourname/babysleep/internal"
)

// FileStorage keeps every entry in memory and mirrors it to a single JSON
// file. Each write is flushed synchronously; if the flush fails the in-memory
// change is rolled back so callers can retry.
type FileStorage struct {
	entries   map[string]*internal.SleepEntry   // id -> entry
	babyIndex map[string][]*internal.SleepEntry // babyID -> entries (sorted ascending by StartTime)
	mu        sync.RWMutex
	file      string
	logger    internal.Logger
}

func NewFileStorage(file string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		entries:   make(map[string]*internal.SleepEntry),
		babyIndex: make(map[string][]*internal.SleepEntry),
		file:      file,
		logger:    logger,
	}

	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
	}
	if err := s.load(); err != nil {
		logger.Errorf("storage: failed to load sleep entries: %v", err)
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) load() error {
	file, err := os.Open(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var entries []*internal.SleepEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	for _, e := range entries {
		s.reindexLocked(e.BabyID)
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) persistLocked() error {
	entries := make([]*internal.SleepEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return atomicWriteFileJSON(s.file, entries)
}

func (s *FileStorage) reindexLocked(babyID string) {
	var list []*internal.SleepEntry
	for _, e := range s.entries {
		if e.BabyID == babyID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartTime.Before(list[j].StartTime)
	})
	if len(list) == 0 {
		delete(s.babyIndex, babyID)
		return
	}
	s.babyIndex[babyID] = list
}

func (s *FileStorage) openEntryLocked(babyID string) *internal.SleepEntry {
	for _, e := range s.babyIndex[babyID] {
		if e.IsActive() {
			return e
		}
	}
	return nil
}

func (s *FileStorage) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

// --- EntryStore ---
func (s *FileStorage) Create(ctx context.Context, entry internal.SleepEntry) (internal.SleepEntry, error) {
	if err := ctx.Err(); err != nil {
		return internal.SleepEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, exists := s.entries[entry.ID]; exists {
		return internal.SleepEntry{}, fmt.Errorf("storage: entry %s already exists", entry.ID)
	}
	if entry.IsActive() && s.openEntryLocked(entry.BabyID) != nil {
		return internal.SleepEntry{}, ErrActiveSleepExists
	}
	entry.Date = internal.DateOf(entry.StartTime)

	stored := entry.Clone()
	s.entries[stored.ID] = &stored
	s.reindexLocked(stored.BabyID)
	if err := s.persistLocked(); err != nil {
		delete(s.entries, stored.ID)
		s.reindexLocked(stored.BabyID)
		s.logger.Errorf("storage: failed to save entry %s: %v", stored.ID, err)
		return internal.SleepEntry{}, err
	}
	return stored.Clone(), nil
}

func (s *FileStorage) Update(ctx context.Context, id string, patch internal.EntryPatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	previous := e.Clone()
	e.Apply(patch)
	s.reindexLocked(e.BabyID)
	if err := s.persistLocked(); err != nil {
		*e = previous
		s.reindexLocked(e.BabyID)
		s.logger.Errorf("storage: failed to update entry %s: %v", id, err)
		return false, err
	}
	return true, nil
}

func (s *FileStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	delete(s.entries, id)
	s.reindexLocked(e.BabyID)
	if err := s.persistLocked(); err != nil {
		s.entries[id] = e
		s.reindexLocked(e.BabyID)
		s.logger.Errorf("storage: failed to delete entry %s: %v", id, err)
		return err
	}
	return nil
}

func (s *FileStorage) Get(ctx context.Context, id string) (internal.SleepEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return internal.SleepEntry{}, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *FileStorage) ListForBaby(ctx context.Context, babyID string) ([]internal.SleepEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.babyIndex[babyID]
	entries := make([]internal.SleepEntry, len(list))
	for i, e := range list {
		entries[i] = e.Clone()
	}
	return entries, nil
}

func (s *FileStorage) ListForDate(ctx context.Context, babyID, date string) ([]internal.SleepEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []internal.SleepEntry{}
	for _, e := range s.babyIndex[babyID] {
		if e.Date == date {
			entries = append(entries, e.Clone())
		}
	}
	return entries, nil
}

// --- Compile-time assertions ---
var _ EntryStore = (*FileStorage)(nil)
