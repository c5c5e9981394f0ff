// Package memory keeps crawl results and blobs in process memory, for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// LinkStore is an in-memory crawler.Store. Links are kept per domain in
// insertion order and returned sorted.
type LinkStore struct {
	mu      sync.RWMutex
	domains map[string]crawler.DomainRecord
	links   map[string][]crawler.LinkRecord
}

// NewLinkStore constructs an empty LinkStore.
func NewLinkStore() *LinkStore {
	return &LinkStore{
		domains: make(map[string]crawler.DomainRecord),
		links:   make(map[string][]crawler.LinkRecord),
	}
}

// DomainExists reports whether name has a DomainRecord.
func (s *LinkStore) DomainExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.domains[name]
	return ok, nil
}

// InsertDomain records name as scraped. Like the SQL stores' primary key, a
// second insert of the same domain fails.
func (s *LinkStore) InsertDomain(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.domains[name]; exists {
		return fmt.Errorf("domain %s already exists", name)
	}
	s.domains[name] = crawler.DomainRecord{URL: name}
	return nil
}

// InsertLink appends a LinkRecord for domainName.
func (s *LinkStore) InsertLink(_ context.Context, rawURL, domainName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[domainName] = append(s.links[domainName], crawler.LinkRecord{URL: rawURL, DomainURL: domainName})
	return nil
}

// LinksForDomain returns the stored URLs for name in lexical order.
func (s *LinkStore) LinksForDomain(_ context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.links[name]
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.URL)
	}
	sort.Strings(out)
	return out, nil
}

// CountLinksForDomain returns how many URLs are stored for name.
func (s *LinkStore) CountLinksForDomain(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links[name]), nil
}
