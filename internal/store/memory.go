package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
)

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore keeps sessions in process. A zero ttl never expires.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.lookup(id)
	return session, ok, nil
}

func (s *MemorySessionStore) Update(_ context.Context, id string, fn UpdateFunc) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lookup(id)
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	next, err := fn(current)
	if err != nil {
		return domain.Session{}, err
	}
	next.ID = current.ID
	next.UpdatedAt = s.now().UTC()
	s.sessions[id] = next
	return next, nil
}

func (s *MemorySessionStore) lookup(id string) (domain.Session, bool) {
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	if s.ttl > 0 && s.now().Sub(session.UpdatedAt) > s.ttl {
		delete(s.sessions, id)
		return domain.Session{}, false
	}
	return session, true
}

type MemoryExportStore struct {
	mu      sync.RWMutex
	records []domain.ExportRecord
}

func NewMemoryExportStore() *MemoryExportStore {
	return &MemoryExportStore{}
}

// CreateExportRecord keeps the first record written for an id.
func (s *MemoryExportStore) CreateExportRecord(_ context.Context, record domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID != "" {
		for _, existing := range s.records {
			if existing.ID == record.ID {
				return nil
			}
		}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryExportStore) Records() []domain.ExportRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExportRecord, len(s.records))
	copy(out, s.records)
	return out
}

type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) ReadObject(_ context.Context, objectKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[objectKey]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", objectKey, ErrBlobNotFound)
	}
	return data, nil
}

func (s *MemoryBlobStore) WriteObject(_ context.Context, objectKey string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[objectKey] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryBlobStore) ObjectExists(_ context.Context, objectKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[objectKey]
	return ok, nil
}

func (s *MemoryBlobStore) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, objectKey)
	return nil
}
