// Package scrape implements the crawl-and-enrich pipeline: retrying fetches,
// listing-page and detail-page extraction, per-page enrichment fan-out, and
// the orchestrator that drives page-range and keyword crawls.
package scrape
