package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryWriter keeps records in memory. Used by tests and dry runs.
type MemoryWriter struct {
	mu   sync.RWMutex
	docs map[string]*PersistedRecord
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{
		docs: make(map[string]*PersistedRecord),
	}
}

func (w *MemoryWriter) Write(ctx context.Context, path string, record *PersistedRecord) error {
	copied := *record
	copied.Keywords = append([]string(nil), record.Keywords...)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[path] = &copied
	return nil
}

func (w *MemoryWriter) List(ctx context.Context, namespace, userID string) ([]*PersistedRecord, error) {
	prefix := DocumentPath(namespace, userID, 0)
	prefix = prefix[:strings.LastIndex(prefix, "/")+1]

	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.docs))
	for path := range w.docs {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	records := make([]*PersistedRecord, 0, len(paths))
	for _, path := range paths {
		records = append(records, w.docs[path])
	}
	return records, nil
}

// Get returns the record at path, if any.
func (w *MemoryWriter) Get(path string) (*PersistedRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, exists := w.docs[path]
	return record, exists
}

// Paths returns every written document path in sorted order.
func (w *MemoryWriter) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.docs))
	for path := range w.docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of persisted records.
func (w *MemoryWriter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.docs)
}
