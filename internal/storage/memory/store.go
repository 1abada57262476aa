// Package memory provides an in-memory snapshot store for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/internradar/crawler/internal/scrape"
)

// Store keeps the snapshot in memory with copy semantics on both sides.
type Store struct {
	mu       sync.RWMutex
	listings []scrape.Listing
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Load returns a copy of the current snapshot.
func (s *Store) Load(_ context.Context) ([]scrape.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scrape.Listing, len(s.listings))
	copy(out, s.listings)
	return out, nil
}

// Save replaces the snapshot with a copy of listings.
func (s *Store) Save(_ context.Context, listings []scrape.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = make([]scrape.Listing, len(listings))
	copy(s.listings, listings)
	return nil
}
