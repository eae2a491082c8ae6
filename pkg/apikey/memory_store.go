package apikey

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps keys in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	keys   map[uuid.UUID]Key
	byHash map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[uuid.UUID]Key),
		byHash: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, k *Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[k.Hash]; ok {
		return ErrDuplicateHash
	}
	s.keys[k.ID] = cloneKey(*k)
	s.byHash[k.Hash] = k.ID
	return nil
}

func (s *MemoryStore) FindByHash(ctx context.Context, hash string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	k := cloneKey(s.keys[id])
	return &k, nil
}

func (s *MemoryStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Key
	for _, k := range s.keys {
		if k.PrincipalID == principalID {
			out = append(out, cloneKey(k))
		}
	}
	slices.SortFunc(out, func(a, b Key) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, principalID, keyID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok || k.PrincipalID != principalID {
		return ErrKeyNotFound
	}
	if !k.Active {
		return nil
	}
	at = at.UTC()
	k.Active = false
	k.RevokedAt = &at
	s.keys[keyID] = k
	return nil
}

func (s *MemoryStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	at = at.UTC()
	k.LastUsedAt = &at
	s.keys[keyID] = k
	return nil
}

func cloneKey(k Key) Key {
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		k.LastUsedAt = &t
	}
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		k.RevokedAt = &t
	}
	return k
}
