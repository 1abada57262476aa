package scrape

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const applyByHeading = "APPLY BY"

var (
	brTag        = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	horizontalWS = regexp.MustCompile(`[ \t\r\f\x{00a0}]+`)
)

// DetailExtractor fetches a listing's detail page and extracts the
// enrichment fields. Extraction is best-effort: any fetch or parse failure
// returns DefaultEnrichment alongside the causal error, and the caller
// merges the defaults rather than dropping the listing.
type DetailExtractor struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewDetailExtractor builds a DetailExtractor on top of fetcher.
func NewDetailExtractor(fetcher Fetcher, logger *zap.Logger) *DetailExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailExtractor{fetcher: fetcher, logger: logger}
}

// Extract returns the enrichment fields for the listing at detailURL.
func (e *DetailExtractor) Extract(ctx context.Context, detailURL string) (Enrichment, error) {
	resp, err := e.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return DefaultEnrichment(), fmt.Errorf("fetch detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return DefaultEnrichment(), fmt.Errorf("parse detail page: %w", err)
	}

	enrichment := DefaultEnrichment()

	if inner, err := doc.Find(".internship_details .text-container").Html(); err == nil {
		if text := cleanDescription(inner); text != "" {
			enrichment.Description = text
		}
	}

	seen := make(map[string]struct{})
	doc.Find(".round_tabs_container .round_tabs, .skill-container .round_tabs").Each(func(_ int, sel *goquery.Selection) {
		skill := strings.TrimSpace(sel.Text())
		if skill == "" {
			return
		}
		if _, ok := seen[skill]; ok {
			return
		}
		seen[skill] = struct{}{}
		enrichment.Skills = append(enrichment.Skills, skill)
	})

	doc.Find(".other_detail_item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Find(".item_heading span").Text()) != applyByHeading {
			return true
		}
		if body := strings.TrimSpace(sel.Find(".item_body").Text()); body != "" {
			enrichment.ApplyBy = body
		}
		return false
	})

	return enrichment, nil
}

// cleanDescription converts the content region's inner HTML to plain text:
// <br> becomes a newline, all other tags are stripped, entities are decoded,
// and whitespace is collapsed. Only <br> produces a line break; newlines in
// the HTML source are ordinary whitespace.
func cleanDescription(inner string) string {
	text := strings.NewReplacer("\r", " ", "\n", " ").Replace(inner)
	text = brTag.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(horizontalWS.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}
