package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrchestratorConfig controls crawl-run behavior.
type OrchestratorConfig struct {
	// SiteOrigin is the scheme+host the page-range and keyword URLs are
	// built against, e.g. "https://internshala.com".
	SiteOrigin string
	// PageStagger is the fixed delay between launching consecutive page
	// scrapes inside a batch.
	PageStagger time.Duration
	// ValidatePageCrawls drops listings whose title or description is the
	// N/A sentinel from page-range results.
	ValidatePageCrawls bool
	// ValidateKeywordCrawls applies the same filter to keyword results.
	// Historically keyword crawls skip validation; the asymmetry is kept as
	// the default but is a knob, not a rule.
	ValidateKeywordCrawls bool
	// Topic, when set together with a Publisher, receives a completion
	// event after each reconciled run.
	Topic string
}

// Orchestrator drives multi-page and keyword crawls: bounded page fan-out,
// validation, and a single reconciliation at the end of each run.
type Orchestrator struct {
	pages      *PageScraper
	reconciler Reconciler
	publisher  Publisher
	clock      Clock
	cfg        OrchestratorConfig
	logger     *zap.Logger
}

// NewOrchestrator wires the page scraper to the reconciler. publisher may be
// nil when completion events are not configured.
func NewOrchestrator(
	pages *PageScraper,
	reconciler Reconciler,
	publisher Publisher,
	clock Clock,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		pages:      pages,
		reconciler: reconciler,
		publisher:  publisher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Crawl scrapes pages 1..pageCount in consecutive batches of
// maxConcurrentPages, reconciles the accumulated result once at the end, and
// returns the validated listings scraped this run. Failed pages contribute
// zero listings; only reconciliation failures are fatal.
func (o *Orchestrator) Crawl(ctx context.Context, pageCount, maxConcurrentPages int) ([]Listing, error) {
	if pageCount <= 0 {
		return nil, errors.New("page count must be positive")
	}
	if maxConcurrentPages <= 0 {
		maxConcurrentPages = 1
	}

	runID := uuid.NewString()
	o.logger.Info("starting page-range crawl",
		zap.String("run_id", runID),
		zap.Int("pages", pageCount),
		zap.Int("max_concurrent_pages", maxConcurrentPages),
	)

	// Explicit fold: each batch yields an immutable slice that is combined
	// into the running total, and the next batch starts only after the
	// previous one fully completed.
	var accumulated []Listing
	for start := 1; start <= pageCount; start += maxConcurrentPages {
		end := start + maxConcurrentPages - 1
		if end > pageCount {
			end = pageCount
		}
		batch := o.scrapeBatch(ctx, start, end)
		if o.cfg.ValidatePageCrawls {
			batch = filterValidated(batch)
		}
		accumulated = append(accumulated, batch...)
		o.logger.Info("batch complete",
			zap.String("run_id", runID),
			zap.Int("pages_done", end),
			zap.Int("pages_total", pageCount),
			zap.Int("listings", len(accumulated)),
		)
	}

	if err := o.finishRun(ctx, runID, "page-range", accumulated); err != nil {
		return nil, err
	}
	return accumulated, nil
}

// CrawlKeyword runs a single-page keyword search and reconciles its result
// as its own run.
func (o *Orchestrator) CrawlKeyword(ctx context.Context, keyword string) ([]Listing, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("keyword must not be empty")
	}

	runID := uuid.NewString()
	searchURL := o.keywordURL(keyword)
	o.logger.Info("starting keyword crawl",
		zap.String("run_id", runID),
		zap.String("keyword", keyword),
		zap.String("url", searchURL),
	)

	listings := o.pages.ScrapePage(ctx, searchURL)
	if o.cfg.ValidateKeywordCrawls {
		listings = filterValidated(listings)
	}

	if err := o.finishRun(ctx, runID, "keyword", listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// scrapeBatch launches one page scrape per page in [start, end], staggering
// launches by PageStagger, and waits for the whole batch (including the
// per-listing detail fetches) to finish.
func (o *Orchestrator) scrapeBatch(ctx context.Context, start, end int) []Listing {
	n := end - start + 1
	results := make([][]Listing, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := sleepContext(ctx, o.cfg.PageStagger); err != nil {
				o.logger.Warn("batch launch interrupted", zap.Error(err))
			}
		}
		wg.Add(1)
		go func(i, page int) {
			defer wg.Done()
			results[i] = o.pages.ScrapePage(ctx, o.pageURL(page))
		}(i, start+i)
	}
	wg.Wait()

	var merged []Listing
	for _, pageListings := range results {
		merged = append(merged, pageListings...)
	}
	return merged
}

func (o *Orchestrator) finishRun(ctx context.Context, runID, mode string, listings []Listing) error {
	snapshot, err := o.reconciler.Reconcile(ctx, listings)
	if err != nil {
		o.logger.Error("reconciliation failed",
			zap.String("run_id", runID),
			zap.String("mode", mode),
			zap.Error(err),
		)
		return fmt.Errorf("reconcile crawl results: %w", err)
	}

	o.logger.Info("crawl run finished",
		zap.String("run_id", runID),
		zap.String("mode", mode),
		zap.Int("scraped", len(listings)),
		zap.Int("snapshot", len(snapshot)),
	)
	o.publishCompletion(ctx, runID, mode, len(listings), len(snapshot))
	return nil
}

func (o *Orchestrator) publishCompletion(ctx context.Context, runID, mode string, scraped, snapshot int) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":      runID,
		"mode":        mode,
		"scraped":     scraped,
		"snapshot":    snapshot,
		"finished_at": o.now().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("completion publish failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) pageURL(page int) string {
	return fmt.Sprintf("%s/internships/page-%d/", strings.TrimRight(o.cfg.SiteOrigin, "/"), page)
}

func (o *Orchestrator) keywordURL(keyword string) string {
	encoded := url.PathEscape(strings.ToLower(keyword))
	return fmt.Sprintf("%s/internships/keywords-%s", strings.TrimRight(o.cfg.SiteOrigin, "/"), encoded)
}

// filterValidated keeps listings whose title and description both carry real
// content rather than the N/A sentinel.
func filterValidated(listings []Listing) []Listing {
	kept := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if l.JobTitle == NA || l.Description == NA {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}
