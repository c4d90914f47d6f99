package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
)

var _ ledgerapp.DocumentStore = (*MemoryDocumentStore)(nil)

// StoredDocument is one object held by MemoryDocumentStore
type StoredDocument struct {
	Data        []byte
	ContentType string
	StoredAt    time.Time
}

// MemoryDocumentStore keeps document content in process memory. It backs the
// memory storage type used in development and tests.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	objects map[string]StoredDocument
	// BaseURL prefixes presigned URLs; defaults to memory://documents
	BaseURL string
}

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		objects: make(map[string]StoredDocument),
		BaseURL: "memory://documents",
	}
}

// Upload stores a copy of data under storageKey
func (m *MemoryDocumentStore) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[storageKey] = StoredDocument{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		StoredAt:    time.Now(),
	}
	return nil
}

// DeleteObject removes storageKey; deleting a missing key succeeds
func (m *MemoryDocumentStore) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, storageKey)
	return nil
}

// ObjectExists reports whether storageKey is stored
func (m *MemoryDocumentStore) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[storageKey]
	return ok, nil
}

// PresignDownload returns a pseudo URL with an expiry for a stored object
func (m *MemoryDocumentStore) PresignDownload(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	exists, err := m.ObjectExists(ctx, storageKey)
	if err != nil {
		return "", time.Time{}, err
	}
	if !exists {
		return "", time.Time{}, fmt.Errorf("object %s not found", storageKey)
	}
	if expiresIn <= 0 {
		expiresIn = 15 * time.Minute
	}
	expiresAt := time.Now().Add(expiresIn)
	u := m.BaseURL + "/" + url.PathEscape(storageKey) + "?expires=" + url.QueryEscape(expiresAt.UTC().Format(time.RFC3339))
	return u, expiresAt, nil
}

// Get returns the stored object
func (m *MemoryDocumentStore) Get(storageKey string) (StoredDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.objects[storageKey]
	return doc, ok
}

// Len returns the number of stored objects
func (m *MemoryDocumentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
