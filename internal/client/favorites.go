// Package client holds client-side state helpers for API consumers.
package client

import (
	"context"
	"sync"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/utils"
)

// FavoriteFunc performs the server-side half of a favorite mutation.
type FavoriteFunc func(ctx context.Context, itemID utils.SixID) error

// FavoriteSet mirrors one user's favorite set and applies mutations
// optimistically: the local set changes first, then the server call confirms
// it. A rejected call rolls the local change back exactly — a failed add
// removes the entry again, a failed remove restores it.
type FavoriteSet struct {
	mu     sync.Mutex
	items  map[utils.SixID]struct{}
	add    FavoriteFunc
	remove FavoriteFunc
}

// NewFavoriteSet builds a set seeded with the server's current state.
func NewFavoriteSet(initial []utils.SixID, add, remove FavoriteFunc) *FavoriteSet {
	items := make(map[utils.SixID]struct{}, len(initial))
	for _, id := range initial {
		items[id] = struct{}{}
	}
	return &FavoriteSet{items: items, add: add, remove: remove}
}

// Contains reports local membership, including not-yet-confirmed mutations.
func (s *FavoriteSet) Contains(itemID utils.SixID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[itemID]
	return ok
}

// Len returns the local set size.
func (s *FavoriteSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add favorites an item. Adding a present item is a no-op. The server
// reporting the item as already favorited counts as success: local and
// server state agree, which is all the caller needs.
func (s *FavoriteSet) Add(ctx context.Context, itemID utils.SixID) error {
	s.mu.Lock()
	if _, ok := s.items[itemID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.items[itemID] = struct{}{}
	s.mu.Unlock()

	err := s.add(ctx, itemID)
	if err == nil || apperr.KindOf(err) == apperr.KindConflict {
		return nil
	}
	s.mu.Lock()
	delete(s.items, itemID)
	s.mu.Unlock()
	return err
}

// Remove unfavorites an item. Removing an absent item is a no-op, and the
// server not knowing the entry counts as success.
func (s *FavoriteSet) Remove(ctx context.Context, itemID utils.SixID) error {
	s.mu.Lock()
	if _, ok := s.items[itemID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.items, itemID)
	s.mu.Unlock()

	err := s.remove(ctx, itemID)
	if err == nil || apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	s.mu.Lock()
	s.items[itemID] = struct{}{}
	s.mu.Unlock()
	return err
}
