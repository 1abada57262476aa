package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/metrics"
)

// ListingExtractor parses a search-results page into basic listings.
type ListingExtractor struct {
	origin string
	logger *zap.Logger
}

// NewListingExtractor builds an extractor that absolutizes detail URLs
// against origin (scheme plus host, no trailing slash).
func NewListingExtractor(origin string, logger *zap.Logger) *ListingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingExtractor{
		origin: strings.TrimRight(origin, "/"),
		logger: logger,
	}
}

// Extract returns the basic listings found on the page. Containers missing a
// detail URL or a title are skipped and logged; a malformed container never
// aborts extraction of its siblings. Enrichment fields are left at their
// defaults.
func (e *ListingExtractor) Extract(pageHTML []byte) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var listings []Listing
	doc.Find(".individual_internship").Each(func(_ int, sel *goquery.Selection) {
		titleLink := sel.Find(".job-title-href").First()

		href := strings.TrimSpace(titleLink.AttrOr("href", ""))
		if href == "" {
			e.logger.Warn("skipping listing with no details url")
			return
		}
		title := strings.TrimSpace(titleLink.Text())
		if title == "" {
			e.logger.Warn("skipping listing with no job title", zap.String("href", href))
			return
		}

		var locations []string
		sel.Find(".locations a").Each(func(_ int, loc *goquery.Selection) {
			if text := strings.TrimSpace(loc.Text()); text != "" {
				locations = append(locations, text)
			}
		})

		listings = append(listings, Listing{
			InternshipID:   attrOrNA(sel, "internshipid"),
			JobTitle:       title,
			CompanyName:    textOrNA(sel.Find(".company-name")),
			Location:       joinOrNA(locations),
			Duration:       textOrNA(sel.Find(".row-1-item:nth-child(2) span")),
			Stipend:        textOrNA(sel.Find(".stipend")),
			PostedTime:     textOrNA(sel.Find(".status-inactive span, .status-success span")),
			ActivelyHiring: sel.Find(".actively-hiring-badge").Length() > 0,
			DetailsURL:     e.absoluteURL(href),
			Description:    NA,
			Skills:         []string{},
			ApplyBy:        NA,
		})
	})

	metrics.AddListingsExtracted(len(listings))
	return listings, nil
}

func (e *ListingExtractor) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.origin + href
}

func attrOrNA(sel *goquery.Selection, name string) string {
	if v := strings.TrimSpace(sel.AttrOr(name, "")); v != "" {
		return v
	}
	return NA
}

func textOrNA(sel *goquery.Selection) string {
	if v := strings.TrimSpace(sel.First().Text()); v != "" {
		return v
	}
	return NA
}

func joinOrNA(parts []string) string {
	if len(parts) == 0 {
		return NA
	}
	return strings.Join(parts, ", ")
}
