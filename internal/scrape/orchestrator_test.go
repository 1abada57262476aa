package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type passthroughReconciler struct {
	mu    sync.Mutex
	calls [][]Listing
	err   error
}

func (r *passthroughReconciler) Reconcile(_ context.Context, newListings []Listing) ([]Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.calls = append(r.calls, newListings)
	return newListings, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	bodies []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.bodies = append(p.bodies, payload)
	return "msg-1", nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	urls  []string
}

func (f *recordingFetcher) Fetch(_ context.Context, url string) (FetchResponse, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return FetchResponse{}, &StatusError{URL: url, Code: 404}
	}
	return FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *recordingFetcher) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}

func listingHTML(name string) string {
	return `<div class="individual_internship">
		<a class="job-title-href" href="/internship/detail/` + name + `">Intern ` + name + `</a>
	</div>`
}

func newTestOrchestrator(fetcher Fetcher, reconciler Reconciler, publisher Publisher, cfg OrchestratorConfig) *Orchestrator {
	return NewOrchestrator(
		newTestPageScraper(fetcher, PageScraperConfig{MaxConcurrentDetails: 4}),
		reconciler,
		publisher,
		fixedClock{t: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)},
		cfg,
		zap.NewNop(),
	)
}

func TestCrawlAccumulatesAcrossBatches(t *testing.T) {
	t.Parallel()

	fetcher := &recordingFetcher{pages: map[string]string{
		"https://internshala.com/internships/page-1/": listingHTML("a"),
		"https://internshala.com/internships/page-2/": listingHTML("b"),
		"https://internshala.com/internships/page-3/": listingHTML("c"),
		"https://internshala.com/internship/detail/a": detailOneHTML,
		"https://internshala.com/internship/detail/b": detailOneHTML,
		"https://internshala.com/internship/detail/c": detailOneHTML,
	}}
	reconciler := &passthroughReconciler{}
	orchestrator := newTestOrchestrator(fetcher, reconciler, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	listings, err := orchestrator.Crawl(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	titles := []string{listings[0].JobTitle, listings[1].JobTitle, listings[2].JobTitle}
	assert.ElementsMatch(t, []string{"Intern a", "Intern b", "Intern c"}, titles)

	// One reconciliation per run, fed the full accumulation.
	require.Len(t, reconciler.calls, 1)
	assert.Len(t, reconciler.calls[0], 3)
}

func TestCrawlSkipsFailedPages(t *testing.T) {
	t.Parallel()

	fetcher := &recordingFetcher{pages: map[string]string{
		"https://internshala.com/internships/page-1/": listingHTML("a"),
		"https://internshala.com/internship/detail/a": detailOneHTML,
	}}
	reconciler := &passthroughReconciler{}
	orchestrator := newTestOrchestrator(fetcher, reconciler, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	listings, err := orchestrator.Crawl(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestCrawlValidationDropsUnenrichedListings(t *testing.T) {
	t.Parallel()

	// Listing "b" has no detail page, so its description stays N/A.
	fetcher := &recordingFetcher{pages: map[string]string{
		"https://internshala.com/internships/page-1/": listingHTML("a") + listingHTML("b"),
		"https://internshala.com/internship/detail/a": detailOneHTML,
	}}
	reconciler := &passthroughReconciler{}
	orchestrator := newTestOrchestrator(fetcher, reconciler, nil, OrchestratorConfig{
		SiteOrigin:         "https://internshala.com",
		ValidatePageCrawls: true,
	})

	listings, err := orchestrator.Crawl(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Intern a", listings[0].JobTitle)
}

func TestCrawlReconcileFailureIsFatal(t *testing.T) {
	t.Parallel()

	fetcher := &recordingFetcher{pages: map[string]string{}}
	reconciler := &passthroughReconciler{err: errors.New("store unavailable")}
	orchestrator := newTestOrchestrator(fetcher, reconciler, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	_, err := orchestrator.Crawl(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestCrawlRejectsNonPositivePageCount(t *testing.T) {
	t.Parallel()

	orchestrator := newTestOrchestrator(&recordingFetcher{}, &passthroughReconciler{}, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	_, err := orchestrator.Crawl(context.Background(), 0, 2)
	require.Error(t, err)
}

func TestCrawlKeywordBuildsSearchURL(t *testing.T) {
	t.Parallel()

	fetcher := &recordingFetcher{pages: map[string]string{
		"https://internshala.com/internships/keywords-data%20science": listingHTML("ds"),
		"https://internshala.com/internship/detail/ds":                detailOneHTML,
	}}
	reconciler := &passthroughReconciler{}
	orchestrator := newTestOrchestrator(fetcher, reconciler, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	listings, err := orchestrator.CrawlKeyword(context.Background(), "  Data Science ")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Contains(t, fetcher.URLs(), "https://internshala.com/internships/keywords-data%20science")

	// Keyword results skip validation by default.
	require.Len(t, reconciler.calls, 1)
}

func TestCrawlKeywordRejectsBlankKeyword(t *testing.T) {
	t.Parallel()

	orchestrator := newTestOrchestrator(&recordingFetcher{}, &passthroughReconciler{}, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	_, err := orchestrator.CrawlKeyword(context.Background(), "   ")
	require.Error(t, err)
}

type pacedFetcher struct {
	mu       sync.Mutex
	events   []string
	inFlight int
	peak     int
}

func (f *pacedFetcher) Fetch(_ context.Context, url string) (FetchResponse, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.events = append(f.events, "start "+url)
	f.mu.Unlock()

	// Holds the fetch open long enough for batch mates to overlap.
	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.events = append(f.events, "end "+url)
	f.mu.Unlock()

	return FetchResponse{URL: url, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

func (f *pacedFetcher) eventIndex(t *testing.T, event string) int {
	t.Helper()
	for i, e := range f.events {
		if e == event {
			return i
		}
	}
	t.Fatalf("event %q not recorded in %v", event, f.events)
	return -1
}

func TestCrawlBoundsPageConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := &pacedFetcher{}
	orchestrator := newTestOrchestrator(fetcher, &passthroughReconciler{}, nil, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
	})

	_, err := orchestrator.Crawl(context.Background(), 5, 2)
	require.NoError(t, err)

	assert.LessOrEqual(t, fetcher.peak, 2)
	require.Len(t, fetcher.events, 10)

	pageURL := func(n int) string {
		return fmt.Sprintf("https://internshala.com/internships/page-%d/", n)
	}

	// Batches of 2, 2, and 1 run back to back: a page's scrape starts only
	// after every page of the previous batch has finished.
	for _, prev := range []int{1, 2} {
		for _, next := range []int{3, 4} {
			assert.Greater(t,
				fetcher.eventIndex(t, "start "+pageURL(next)),
				fetcher.eventIndex(t, "end "+pageURL(prev)),
			)
		}
	}
	for _, prev := range []int{3, 4} {
		assert.Greater(t,
			fetcher.eventIndex(t, "start "+pageURL(5)),
			fetcher.eventIndex(t, "end "+pageURL(prev)),
		)
	}
}

func TestCrawlPublishesCompletionEvent(t *testing.T) {
	t.Parallel()

	fetcher := &recordingFetcher{pages: map[string]string{
		"https://internshala.com/internships/page-1/": listingHTML("a"),
		"https://internshala.com/internship/detail/a": detailOneHTML,
	}}
	publisher := &recordingPublisher{}
	orchestrator := newTestOrchestrator(fetcher, &passthroughReconciler{}, publisher, OrchestratorConfig{
		SiteOrigin: "https://internshala.com",
		Topic:      "crawl-finished",
	})

	_, err := orchestrator.Crawl(context.Background(), 1, 1)
	require.NoError(t, err)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, "crawl-finished", publisher.topics[0])

	payload, ok := publisher.bodies[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "page-range", payload["mode"])
	assert.Equal(t, 1, payload["scraped"])
	assert.Equal(t, "2025-06-10T12:00:00Z", payload["finished_at"])
}
