package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pagecraft/api/internal/model"
)

// MemoryStore is the fallback when redis is unconfigured (dev, tests).
// Records round-trip through JSON so callers never share memory with the
// store, matching the redis implementation's semantics.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string][]byte
	sections  map[string]map[string][]byte // jobID -> key -> blob
	changeLog map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string][]byte),
		sections:  make(map[string]map[string][]byte),
		changeLog: make(map[string][]byte),
	}
}

func (s *MemoryStore) UpsertJob(ctx context.Context, job *model.GenerationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	s.mu.RLock()
	data, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var job model.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *MemoryStore) UpsertSection(ctx context.Context, sec *model.Section) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.sections[sec.JobID] == nil {
		s.sections[sec.JobID] = make(map[string][]byte)
	}
	s.sections[sec.JobID][sec.Key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSection(ctx context.Context, jobID, key string) (*model.Section, error) {
	s.mu.RLock()
	data, ok := s.sections[jobID][key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var sec model.Section
	if err := json.Unmarshal(data, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (s *MemoryStore) ListSections(ctx context.Context, jobID string) ([]*model.Section, error) {
	s.mu.RLock()
	blobs := make([][]byte, 0, len(s.sections[jobID]))
	for _, b := range s.sections[jobID] {
		blobs = append(blobs, b)
	}
	s.mu.RUnlock()

	out := make([]*model.Section, 0, len(blobs))
	for _, b := range blobs {
		var sec model.Section
		if err := json.Unmarshal(b, &sec); err != nil {
			return nil, err
		}
		out = append(out, &sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemoryStore) AppendChangeLog(ctx context.Context, jobID string, entries []model.ChangeLogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.changeLog[jobID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetChangeLog(ctx context.Context, jobID string) ([]model.ChangeLogEntry, error) {
	s.mu.RLock()
	data, ok := s.changeLog[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var entries []model.ChangeLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
