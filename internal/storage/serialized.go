package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

// KeyedMutex hands out one mutex per key and forgets keys nobody holds.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// SerializedStore allows one in-flight write per post id, so a retried
// pipeline and a late status update cannot interleave on the same row.
type SerializedStore struct {
	Storage
	locks *KeyedMutex
}

func NewSerializedStore(inner Storage) *SerializedStore {
	return &SerializedStore{Storage: inner, locks: NewKeyedMutex()}
}

func (s *SerializedStore) Save(ctx context.Context, p *models.GeneratedPost) error {
	if err := validatePost(p); err != nil {
		return err
	}
	defer s.locks.Lock(p.ID)()
	return s.Storage.Save(ctx, p)
}

func (s *SerializedStore) UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error {
	defer s.locks.Lock(id)()
	return s.Storage.UpdateStatus(ctx, id, status, at)
}

func (s *SerializedStore) Delete(ctx context.Context, id string) error {
	defer s.locks.Lock(id)()
	return s.Storage.Delete(ctx, id)
}

func (s *SerializedStore) AppendEngagement(ctx context.Context, rec models.EngagementRecord) error {
	defer s.locks.Lock(rec.PostID)()
	return s.Storage.AppendEngagement(ctx, rec)
}
