package scrape

// NA is the sentinel used for string fields the source did not provide.
const NA = "N/A"

// Listing is one internship posting. Summary fields come from the search
// results page; Description, Skills, and ApplyBy are filled in from the
// detail page. DetailsURL is the dedup identity: the source-assigned
// InternshipID is unreliable and may be absent.
type Listing struct {
	InternshipID   string   `json:"internshipId"`
	JobTitle       string   `json:"jobTitle"`
	CompanyName    string   `json:"companyName"`
	Location       string   `json:"location"`
	Duration       string   `json:"duration"`
	Stipend        string   `json:"stipend"`
	PostedTime     string   `json:"postedTime"`
	ActivelyHiring bool     `json:"activelyHiring"`
	DetailsURL     string   `json:"detailsUrl"`
	Description    string   `json:"description"`
	Skills         []string `json:"skills"`
	ApplyBy        string   `json:"applyBy"`
}

// Enrichment carries the detail-page fields merged onto a basic listing.
type Enrichment struct {
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	ApplyBy     string   `json:"applyBy"`
}

// DefaultEnrichment is the shape merged in when a detail fetch or parse
// fails. Enrichment is best-effort and never drops a listing.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		Description: NA,
		Skills:      []string{},
		ApplyBy:     NA,
	}
}

// CrawlRequest describes one crawl run: either a page range or a keyword
// search. It is ephemeral and never persisted.
type CrawlRequest struct {
	PageCount          int    `json:"pageCount"`
	MaxConcurrentPages int    `json:"maxConcurrentPages"`
	Keyword            string `json:"keyword"`
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
}
