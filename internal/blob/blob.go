// Package blob stores opaque uploaded files and hands back URLs.
//
// Dispute attachments (photos of damaged goods, delivery slips) are the
// only current use. The store is content-addressed so re-uploading the
// same file is idempotent.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// MaxBlobSize caps a single upload at 8 MiB.
const MaxBlobSize = 8 << 20

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobTooLarge = errors.New("blob exceeds maximum size")
)

// Blob is a stored file.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store persists uploaded blobs.
type Store interface {
	Put(ctx context.Context, contentType string, data []byte) (url string, err error)
	Get(ctx context.Context, key string) (*Blob, error)
}

// MemoryStore keeps blobs in process memory. Suitable for demo mode and
// tests; a production deployment would mount object storage behind the
// same interface.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]*Blob
	baseURL string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory blob store. baseURL prefixes the
// returned URLs, e.g. "/v1/blobs".
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[string]*Blob),
		baseURL: baseURL,
	}
}

func (m *MemoryStore) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	if len(data) > MaxBlobSize {
		return "", ErrBlobTooLarge
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:16])

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		m.blobs[key] = &Blob{Key: key, ContentType: contentType, Data: data}
	}
	return fmt.Sprintf("%s/%s", m.baseURL, key), nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return b, nil
}
