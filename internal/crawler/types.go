package crawler

import (
	"net/url"
	"sort"
	"time"
)

// BatchSize bounds how many fetches run concurrently in one frontier round.
const BatchSize = 128

// Target is the immutable description of one crawl.
type Target struct {
	RootURL *url.URL
	Domain  string
}

// DomainRecord marks a domain whose crawl completed.
type DomainRecord struct {
	URL string `json:"url"`
}

// LinkRecord is one discovered URL belonging to a domain.
type LinkRecord struct {
	URL       string `json:"url"`
	DomainURL string `json:"domain_url"`
}

// Response is what a Fetcher hands back for a single GET. Body is only
// populated for HTML responses.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// CrawlEvent is published once a crawl has been persisted.
type CrawlEvent struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	RootURL     string    `json:"root_url"`
	Links       int       `json:"links"`
	CompletedAt time.Time `json:"completed_at"`

	// Set when the manifest was archived.
	ManifestURI    string `json:"manifest_uri,omitempty"`
	ManifestSHA256 string `json:"manifest_sha256,omitempty"`
}

// Manifest is the archived snapshot of a completed crawl.
type Manifest struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	RootURL     string    `json:"root_url"`
	CompletedAt time.Time `json:"completed_at"`
	Links       []string  `json:"links"`
}

// URLSet is a set of absolute URL strings.
type URLSet map[string]struct{}

// NewURLSet returns a set holding the given URLs.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts u.
func (s URLSet) Add(u string) {
	s[u] = struct{}{}
}

// Has reports whether u is a member.
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Take removes up to n arbitrary members and returns them.
func (s URLSet) Take(n int) []string {
	out := make([]string, 0, min(n, len(s)))
	for u := range s {
		if len(out) == n {
			break
		}
		out = append(out, u)
		delete(s, u)
	}
	return out
}

// Sorted returns the members in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
