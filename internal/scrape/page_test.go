package scrape

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pageOneHTML = `
<div class="individual_internship" internshipid="1">
  <a class="job-title-href" href="/internship/detail/one">First Intern</a>
</div>
<div class="individual_internship" internshipid="2">
  <a class="job-title-href" href="/internship/detail/two">Second Intern</a>
</div>`

const detailOneHTML = `
<div class="internship_details"><div class="text-container">Build things.</div></div>
<div class="round_tabs_container"><span class="round_tabs">Go</span></div>
<div class="other_detail_item">
  <div class="item_heading"><span>APPLY BY</span></div>
  <div class="item_body">20 Jul' 25</div>
</div>`

func newTestPageScraper(fetcher Fetcher, cfg PageScraperConfig) *PageScraper {
	logger := zap.NewNop()
	return NewPageScraper(
		fetcher,
		NewListingExtractor("https://internshala.com", logger),
		NewDetailExtractor(fetcher, logger),
		cfg,
		logger,
	)
}

func TestScrapePageEnrichesListings(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{
		"https://internshala.com/internships/page-1/":   pageOneHTML,
		"https://internshala.com/internship/detail/one": detailOneHTML,
	}}
	scraper := newTestPageScraper(fetcher, PageScraperConfig{MaxConcurrentDetails: 4})

	listings := scraper.ScrapePage(context.Background(), "https://internshala.com/internships/page-1/")
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "First Intern", first.JobTitle)
	assert.Equal(t, "Build things.", first.Description)
	assert.Equal(t, []string{"Go"}, first.Skills)
	assert.Equal(t, "20 Jul' 25", first.ApplyBy)

	// The second detail page 404s; the listing survives with defaults.
	second := listings[1]
	assert.Equal(t, "Second Intern", second.JobTitle)
	assert.Equal(t, NA, second.Description)
	assert.Empty(t, second.Skills)
	assert.Equal(t, NA, second.ApplyBy)
}

func TestScrapePageFetchFailureYieldsNoListings(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{}}
	scraper := newTestPageScraper(fetcher, PageScraperConfig{MaxConcurrentDetails: 2})

	listings := scraper.ScrapePage(context.Background(), "https://internshala.com/internships/page-9/")
	assert.Empty(t, listings)
}

type gaugingFetcher struct {
	pages    map[string]string
	mu       sync.Mutex
	inFlight int32
	peak     int32
	block    chan struct{}
}

func (f *gaugingFetcher) Fetch(_ context.Context, url string) (FetchResponse, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if current > f.peak {
		f.peak = current
	}
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	body, ok := f.pages[url]
	if !ok {
		return FetchResponse{}, &StatusError{URL: url, Code: 404}
	}
	return FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *gaugingFetcher) Peak() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func TestScrapePageBoundsDetailConcurrency(t *testing.T) {
	t.Parallel()

	var pageBuilder string
	pages := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		pageBuilder += `<div class="individual_internship">
			<a class="job-title-href" href="/internship/detail/` + name + `">Intern ` + name + `</a>
		</div>`
		pages["https://internshala.com/internship/detail/"+name] = detailOneHTML
	}
	pages["https://internshala.com/internships/page-1/"] = pageBuilder

	fetcher := &gaugingFetcher{pages: pages}
	scraper := newTestPageScraper(fetcher, PageScraperConfig{MaxConcurrentDetails: 2})

	listings := scraper.ScrapePage(context.Background(), "https://internshala.com/internships/page-1/")
	require.Len(t, listings, 6)
	assert.LessOrEqual(t, fetcher.Peak(), int32(2))
}
