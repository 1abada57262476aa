package scrape

import (
	"context"
	"time"
)

// Fetcher issues a single HTTP GET and returns the body plus status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Store persists the listing snapshot.
type Store interface {
	Load(ctx context.Context) ([]Listing, error)
	Save(ctx context.Context, listings []Listing) error
}

// Reconciler merges a crawl's output with the persisted snapshot and writes
// the result, returning the new snapshot.
type Reconciler interface {
	Reconcile(ctx context.Context, newListings []Listing) ([]Listing, error)
}

// Publisher pushes crawl-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
