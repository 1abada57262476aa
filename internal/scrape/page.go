package scrape

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/metrics"
)

// PageScraperConfig bounds the per-page enrichment fan-out. MaxConcurrentDetails
// caps the number of detail fetches in flight at once; DetailDelay is the
// fixed pause between launching consecutive detail fetches, spreading the
// burst without affecting the concurrency bound.
type PageScraperConfig struct {
	MaxConcurrentDetails int
	DetailDelay          time.Duration
}

// PageScraper turns one search-results page into fully enriched listings.
type PageScraper struct {
	fetcher  Fetcher
	listings *ListingExtractor
	details  *DetailExtractor
	cfg      PageScraperConfig
	logger   *zap.Logger
}

// NewPageScraper composes the listing and detail extractors into a page-level
// scraper. fetcher should already carry the retry policy.
func NewPageScraper(
	fetcher Fetcher,
	listings *ListingExtractor,
	details *DetailExtractor,
	cfg PageScraperConfig,
	logger *zap.Logger,
) *PageScraper {
	if cfg.MaxConcurrentDetails <= 0 {
		cfg.MaxConcurrentDetails = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageScraper{
		fetcher:  fetcher,
		listings: listings,
		details:  details,
		cfg:      cfg,
		logger:   logger,
	}
}

// ScrapePage fetches pageURL, extracts its listings, and enriches each one
// from its detail page. A page that cannot be fetched or parsed contributes
// zero listings and is logged; it never aborts a multi-page crawl. Detail
// failures merge default enrichment and keep the listing.
func (s *PageScraper) ScrapePage(ctx context.Context, pageURL string) []Listing {
	s.logger.Info("scraping page", zap.String("url", pageURL))

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Error("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		metrics.IncPagesScraped("failed")
		return nil
	}

	basics, err := s.listings.Extract(resp.Body)
	if err != nil {
		s.logger.Error("listing extraction failed", zap.String("url", pageURL), zap.Error(err))
		metrics.IncPagesScraped("failed")
		return nil
	}
	s.logger.Info("extracted listings", zap.String("url", pageURL), zap.Int("count", len(basics)))

	enriched := make([]Listing, len(basics))
	sem := make(chan struct{}, s.cfg.MaxConcurrentDetails)
	var wg sync.WaitGroup

	for i, basic := range basics {
		if i > 0 {
			if err := sleepContext(ctx, s.cfg.DetailDelay); err != nil {
				s.logger.Warn("enrichment launch interrupted", zap.String("url", pageURL), zap.Error(err))
			}
		}
		wg.Add(1)
		go func(i int, listing Listing) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			enriched[i] = s.enrich(ctx, listing)
		}(i, basic)
	}
	wg.Wait()

	metrics.IncPagesScraped("ok")
	return enriched
}

// enrich merges the detail-page fields onto the basic listing. The merge is
// keyed by the listing's position in its batch, so completion order of the
// concurrent fetches does not matter.
func (s *PageScraper) enrich(ctx context.Context, listing Listing) Listing {
	enrichment, err := s.details.Extract(ctx, listing.DetailsURL)
	if err != nil {
		s.logger.Warn("detail enrichment failed",
			zap.String("url", listing.DetailsURL),
			zap.Error(err),
		)
		metrics.IncDetailFailures()
	}
	listing.Description = enrichment.Description
	listing.Skills = enrichment.Skills
	listing.ApplyBy = enrichment.ApplyBy
	return listing
}
