package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keyworder/keyworder/internal/generation"
	"github.com/keyworder/keyworder/internal/identity"
	"github.com/keyworder/keyworder/internal/ingest"
)

// PersistedRecord is one append-only generation result. Records are only ever
// created, never updated or deleted.
type PersistedRecord struct {
	Timestamp     time.Time `firestore:"timestamp" json:"timestamp"`
	ImageMimeType string    `firestore:"imageMimeType" json:"imageMimeType"`
	Title         string    `firestore:"title" json:"title"`
	Keywords      []string  `firestore:"keywords" json:"keywords"`
	UserID        string    `firestore:"userId" json:"userId"`
}

// DocWriter is the persistence collaborator: a document write keyed by path.
type DocWriter interface {
	Write(ctx context.Context, path string, record *PersistedRecord) error
}

// Lister reads back records under one owner, used by the export flow only.
type Lister interface {
	List(ctx context.Context, namespace, userID string) ([]*PersistedRecord, error)
}

// StorageError is a failed persistence write.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to persist record at %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DocumentPath returns the document location for one record.
func DocumentPath(namespace, userID string, millis int64) string {
	return fmt.Sprintf("artifacts/%s/users/%s/generated_data/data_%d", namespace, userID, millis)
}

// Store persists generation results under an application namespace and the
// owner's identity, keyed by timestamp.
type Store struct {
	writer    DocWriter
	namespace string

	mu         sync.Mutex
	lastMillis int64
}

func New(writer DocWriter, namespace string) *Store {
	return &Store{writer: writer, namespace: namespace}
}

// Persist writes one new record. Timestamp keys are kept strictly increasing
// so records created in the same millisecond never collide.
func (s *Store) Persist(ctx context.Context, id *identity.Identity, image *ingest.EncodedImage, result *generation.Result) (*PersistedRecord, error) {
	now := time.Now()

	s.mu.Lock()
	millis := now.UnixMilli()
	if millis <= s.lastMillis {
		millis = s.lastMillis + 1
	}
	s.lastMillis = millis
	s.mu.Unlock()

	record := &PersistedRecord{
		Timestamp:     time.UnixMilli(millis),
		ImageMimeType: image.MimeType,
		Title:         result.Title,
		Keywords:      result.Keywords,
		UserID:        id.ID,
	}

	path := DocumentPath(s.namespace, id.ID, millis)
	if err := s.writer.Write(ctx, path, record); err != nil {
		return nil, &StorageError{Path: path, Err: err}
	}

	slog.Info("Record persisted", "path", path, "keywords", len(record.Keywords))
	return record, nil
}

// Records returns all records persisted for the given owner, when the
// underlying writer supports reading back.
func (s *Store) Records(ctx context.Context, userID string) ([]*PersistedRecord, error) {
	lister, ok := s.writer.(Lister)
	if !ok {
		return nil, fmt.Errorf("record store does not support listing")
	}
	return lister.List(ctx, s.namespace, userID)
}
