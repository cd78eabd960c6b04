package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// MemoryTracker keeps report history in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	records []ReportRecord
}

// NewMemoryTracker creates an in-memory history tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

// Save appends a record.
func (t *MemoryTracker) Save(ctx context.Context, record ReportRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		return "", NewError(KindValidation, "record ID is required", nil)
	}
	t.mu.Lock()
	t.records = append(t.records, record)
	t.mu.Unlock()
	return record.ID, nil
}

// Get returns a record by ID.
func (t *MemoryTracker) Get(ctx context.Context, id string) (ReportRecord, error) {
	_ = ctx
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, record := range t.records {
		if record.ID == id {
			return record, nil
		}
	}
	return ReportRecord{}, NewError(KindNotFound, fmt.Sprintf("report %q not found", id), nil)
}

// List returns records matching a filter, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter HistoryFilter) ([]ReportRecord, error) {
	_ = ctx
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ReportRecord, 0, len(t.records))
	for _, record := range t.records {
		if filter.PatientLastName != "" && record.PatientLastName != filter.PatientLastName {
			continue
		}
		if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && record.CreatedAt.After(filter.Until) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
