package crawler

import "errors"

// Error kinds surfaced by the crawl engine. Call sites wrap these together with
// the underlying cause, so callers match with errors.Is and still see details.
var (
	// ErrInvalidInput reports a root URL without a host.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyScraped reports a domain that already has a record (or a crawl in flight).
	ErrAlreadyScraped = errors.New("already scraped")
	// ErrFetch reports a transport failure while fetching any URL of a crawl.
	ErrFetch = errors.New("fetch failed")
	// ErrStore reports a persistence failure.
	ErrStore = errors.New("store failed")
	// ErrExtraction reports an anchor selector that does not compile.
	ErrExtraction = errors.New("extraction misconfigured")
)
