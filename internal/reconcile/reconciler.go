// Package reconcile merges a crawl's output with the persisted snapshot.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/metrics"
	"github.com/internradar/crawler/internal/scrape"
)

// Strategy selects how a crawl's output is combined with the prior snapshot.
// The strategy is explicit configuration for the whole run, never mixed and
// never auto-detected.
type Strategy string

const (
	// StrategyReplaceFreshOnly discards the prior snapshot and keeps only
	// the new listings whose deadline has not passed.
	StrategyReplaceFreshOnly Strategy = "replace-fresh-only"
	// StrategyAppendDedup keeps the prior snapshot and appends new listings
	// whose details URL is not already present.
	StrategyAppendDedup Strategy = "append-dedup"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyReplaceFreshOnly, StrategyAppendDedup:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown reconcile strategy %q", s)
	}
}

// Reconciler implements scrape.Reconciler against a snapshot store.
type Reconciler struct {
	store    scrape.Store
	clock    scrape.Clock
	strategy Strategy
	logger   *zap.Logger
}

// New builds a Reconciler.
func New(store scrape.Store, clock scrape.Clock, strategy Strategy, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		clock:    clock,
		strategy: strategy,
		logger:   logger,
	}
}

// Reconcile combines newListings with the persisted snapshot per the
// configured strategy and writes the result. The write is atomic from the
// caller's perspective: on error the prior snapshot is untouched.
func (r *Reconciler) Reconcile(ctx context.Context, newListings []scrape.Listing) ([]scrape.Listing, error) {
	var snapshot []scrape.Listing

	switch r.strategy {
	case StrategyAppendDedup:
		prior, err := r.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load prior snapshot: %w", err)
		}
		snapshot = AppendDedup(prior, newListings)
	default:
		snapshot = dedupByURL(FilterFresh(newListings, r.clock.Now()))
	}

	if err := r.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	metrics.SetSnapshotSize(len(snapshot))
	r.logger.Info("snapshot reconciled",
		zap.String("strategy", string(r.strategy)),
		zap.Int("incoming", len(newListings)),
		zap.Int("kept", len(snapshot)),
	)
	return snapshot, nil
}

// FilterFresh keeps the listings whose apply-by deadline is today or later.
// Listings with a missing or unparsable deadline are kept: a parse miss must
// never silently drop a record.
func FilterFresh(listings []scrape.Listing, now time.Time) []scrape.Listing {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	kept := make([]scrape.Listing, 0, len(listings))
	for _, l := range listings {
		deadline, ok := ParseApplyBy(l.ApplyBy)
		if ok && deadline.Before(today) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// dedupByURL keeps the first occurrence of each details URL, preserving
// order. The snapshot is unique by details URL regardless of strategy.
func dedupByURL(listings []scrape.Listing) []scrape.Listing {
	seen := make(map[string]struct{}, len(listings))
	kept := make([]scrape.Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.DetailsURL]; ok {
			continue
		}
		seen[l.DetailsURL] = struct{}{}
		kept = append(kept, l)
	}
	return kept
}

// AppendDedup keeps prior in full and appends the members of newListings
// whose details URL is not already present. Order is preserved on both
// sides.
func AppendDedup(prior, newListings []scrape.Listing) []scrape.Listing {
	seen := make(map[string]struct{}, len(prior))
	merged := make([]scrape.Listing, 0, len(prior)+len(newListings))
	for _, l := range prior {
		seen[l.DetailsURL] = struct{}{}
		merged = append(merged, l)
	}
	for _, l := range newListings {
		if _, ok := seen[l.DetailsURL]; ok {
			continue
		}
		seen[l.DetailsURL] = struct{}{}
		merged = append(merged, l)
	}
	return merged
}
