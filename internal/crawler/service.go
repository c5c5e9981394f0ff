package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crowley/internal/clock/system"
	"github.com/JakeFAU/crowley/internal/hash/sha256"
	"github.com/JakeFAU/crowley/internal/id/uuid"
	"github.com/JakeFAU/crowley/internal/metrics"
)

// Sinks are optional destinations told about a crawl after it has been saved.
type Sinks struct {
	Publisher     Publisher
	Topic         string
	Archive       BlobStore
	ArchivePrefix string
	// Hasher digests archived manifests. Defaults to SHA-256.
	Hasher Hasher
}

// Service exposes the scrape, count and list operations. It owns the
// once-per-domain guard and the persistence of crawl results.
type Service struct {
	store  Store
	engine *Engine
	sinks  Sinks
	ids    IDGenerator
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService wires a Service. Nil ids and clock fall back to UUIDv7 and the
// system clock.
func NewService(
	store Store,
	engine *Engine,
	sinks Sinks,
	ids IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Service {
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sinks.Hasher == nil {
		sinks.Hasher = sha256.New()
	}
	return &Service{
		store:    store,
		engine:   engine,
		sinks:    sinks,
		ids:      ids,
		clock:    clock,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Scrape crawls the domain of rootURL and persists every discovered URL. It
// fails with ErrAlreadyScraped, without fetching anything, when the domain has
// a record already.
func (s *Service) Scrape(ctx context.Context, rootURL string) error {
	target, err := ParseTarget(rootURL)
	if err != nil {
		return err
	}
	release, err := s.claim(target.Domain)
	if err != nil {
		return err
	}
	defer release()

	if err := s.ensureNotScraped(ctx, target.Domain); err != nil {
		return err
	}

	logger := s.logger.With(zap.String("domain", target.Domain))
	logger.Info("scraping", zap.String("url", target.RootURL.String()))
	start := s.clock.Now()

	links, err := s.engine.Crawl(ctx, target)
	if err != nil {
		metrics.ObserveCrawl(metrics.CrawlFailed, s.clock.Now().Sub(start))
		logger.Error("scrape failed", zap.Error(err))
		return err
	}
	logger.Info("done scraping", zap.Int("links", len(links)))

	if err := s.save(ctx, target.Domain, links); err != nil {
		metrics.ObserveCrawl(metrics.CrawlFailed, s.clock.Now().Sub(start))
		logger.Error("save failed", zap.Error(err))
		return err
	}
	metrics.ObserveCrawl(metrics.CrawlSucceeded, s.clock.Now().Sub(start))
	logger.Info("saved scraped data")

	s.notify(ctx, target, links)
	return nil
}

// Count returns how many URLs are stored for rawURL's domain.
func (s *Service) Count(ctx context.Context, rawURL string) (int, error) {
	domain, err := DomainName(rawURL)
	if err != nil {
		return 0, err
	}
	n, err := s.store.CountLinksForDomain(ctx, domain)
	if err != nil {
		return 0, fmt.Errorf("%w: count links for %s: %w", ErrStore, domain, err)
	}
	return n, nil
}

// List returns the URLs stored for rawURL's domain.
func (s *Service) List(ctx context.Context, rawURL string) ([]string, error) {
	domain, err := DomainName(rawURL)
	if err != nil {
		return nil, err
	}
	links, err := s.store.LinksForDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("%w: list links for %s: %w", ErrStore, domain, err)
	}
	if links == nil {
		links = []string{}
	}
	return links, nil
}

func (s *Service) claim(domain string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[domain]; busy {
		return nil, fmt.Errorf("%w: a crawl of %s is already in progress", ErrAlreadyScraped, domain)
	}
	s.inflight[domain] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, domain)
		s.mu.Unlock()
	}, nil
}

func (s *Service) ensureNotScraped(ctx context.Context, domain string) error {
	exists, err := s.store.DomainExists(ctx, domain)
	if err != nil {
		return fmt.Errorf("%w: look up domain %s: %w", ErrStore, domain, err)
	}
	if exists {
		return fmt.Errorf("%w: cannot scrape %s, it has already been scraped", ErrAlreadyScraped, domain)
	}
	return nil
}

func (s *Service) save(ctx context.Context, domain string, links URLSet) error {
	write := func(st Store) error {
		if err := st.InsertDomain(ctx, domain); err != nil {
			return fmt.Errorf("insert domain: %w", err)
		}
		for _, link := range links.Sorted() {
			if err := st.InsertLink(ctx, link, domain); err != nil {
				return fmt.Errorf("insert link %s: %w", link, err)
			}
		}
		return nil
	}

	var err error
	if tx, ok := s.store.(TxStore); ok {
		err = tx.InTx(ctx, write)
	} else {
		err = write(s.store)
	}
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStore, domain, err)
	}
	return nil
}

// notify runs the optional sinks. The crawl is already committed, so failures
// here are only logged.
func (s *Service) notify(ctx context.Context, target Target, links URLSet) {
	if s.sinks.Archive == nil && (s.sinks.Publisher == nil || s.sinks.Topic == "") {
		return
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("generate crawl id failed", zap.Error(err))
		return
	}
	completedAt := s.clock.Now().UTC()
	event := CrawlEvent{
		ID:          id,
		Domain:      target.Domain,
		RootURL:     target.RootURL.String(),
		Links:       len(links),
		CompletedAt: completedAt,
	}

	if s.sinks.Archive != nil {
		uri, digest, err := s.archive(ctx, id, target, links, completedAt)
		if err != nil {
			s.logger.Warn("archive manifest failed", zap.String("domain", target.Domain), zap.Error(err))
		} else {
			s.logger.Info("manifest archived",
				zap.String("domain", target.Domain),
				zap.String("uri", uri),
				zap.String("sha256", digest),
			)
			event.ManifestURI = uri
			event.ManifestSHA256 = digest
		}
	}

	if s.sinks.Publisher != nil && s.sinks.Topic != "" {
		if _, err := s.sinks.Publisher.Publish(ctx, s.sinks.Topic, event); err != nil {
			s.logger.Warn("publish crawl event failed", zap.String("domain", target.Domain), zap.Error(err))
		}
	}
}

func (s *Service) archive(
	ctx context.Context,
	id string,
	target Target,
	links URLSet,
	completedAt time.Time,
) (uri, digest string, err error) {
	manifest := Manifest{
		ID:          id,
		Domain:      target.Domain,
		RootURL:     target.RootURL.String(),
		CompletedAt: completedAt,
		Links:       links.Sorted(),
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", "", fmt.Errorf("marshal manifest: %w", err)
	}
	digest, err = s.sinks.Hasher.Hash(data)
	if err != nil {
		return "", "", fmt.Errorf("hash manifest: %w", err)
	}
	objectPath := manifestPath(s.sinks.ArchivePrefix, target.Domain, id)
	uri, err = s.sinks.Archive.PutObject(ctx, objectPath, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("put manifest: %w", err)
	}
	return uri, digest, nil
}

func manifestPath(prefix, domain, id string) string {
	prefix = strings.Trim(prefix, "/")
	name := id + ".json"
	if prefix == "" {
		return path.Join(domain, name)
	}
	return path.Join(prefix, domain, name)
}
