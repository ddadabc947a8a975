// Package repo provides score document storage for the layout engine.
//
// The engine consumes a read snapshot of a document and reports
// mutations back through change notifications; the repository supplies
// those snapshots and persists edits. Cached layout is never part of
// the persisted format: a stored document plus a fresh layout pass
// fully reconstructs the visual result.
//
// Two backends are provided: an in-memory store for tests and
// single-session CLI use, and a MongoDB-backed store for shared band
// libraries.
package repo

import (
	"context"
	"sync"

	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/score"
)

// ChangeNotification pairs a document id with the change set reported
// by the editing layer.
type ChangeNotification struct {
	DocumentID string
	Change     layout.ChangeSet
}

// Store is the score repository contract.
type Store interface {
	// LoadDocument retrieves a document by id.
	// Returns a DOCUMENT_NOT_FOUND error when the id is unknown.
	LoadDocument(ctx context.Context, id string) (*score.Document, error)

	// SaveDocument persists a document, replacing any previous version.
	SaveDocument(ctx context.Context, doc *score.Document) error

	// DeleteDocument removes a document. Deleting an absent id is not
	// an error.
	DeleteDocument(ctx context.Context, id string) error

	// Changes returns the stream of change notifications reported via
	// NotifyChange. The channel is closed by Close.
	Changes() <-chan ChangeNotification

	// NotifyChange publishes a change notification to subscribers.
	NotifyChange(ctx context.Context, n ChangeNotification) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// changeBuffer is the notification channel capacity. Edits beyond the
// buffer block the writer, which matches the single-writer discipline
// upstream of the coordinator.
const changeBuffer = 64

// MemoryStore is an in-memory Store for tests and single-session use.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]*score.Document
	changes chan ChangeNotification
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*score.Document),
		changes: make(chan ChangeNotification, changeBuffer),
	}
}

// LoadDocument retrieves a document by id.
func (s *MemoryStore) LoadDocument(ctx context.Context, id string) (*score.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.NewEntity(errors.ErrCodeDocumentNotFound, id, "document not found")
	}
	return doc, nil
}

// SaveDocument stores a document after validating it.
func (s *MemoryStore) SaveDocument(ctx context.Context, doc *score.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// DeleteDocument removes a document.
func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Changes returns the notification stream.
func (s *MemoryStore) Changes() <-chan ChangeNotification { return s.changes }

// NotifyChange publishes a change notification.
func (s *MemoryStore) NotifyChange(ctx context.Context, n ChangeNotification) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errors.New(errors.ErrCodeInternal, "store closed")
	}
	select {
	case s.changes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the notification stream.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.changes)
	}
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
