package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	domains    map[string]bool
	links      map[string][]string
	existsErr  error
	insertErr  error
	listErr    error
	insertions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{domains: make(map[string]bool), links: make(map[string][]string)}
}

func (s *fakeStore) DomainExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.domains[name], nil
}

func (s *fakeStore) InsertDomain(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.domains[name] = true
	return nil
}

func (s *fakeStore) InsertLink(_ context.Context, rawURL, domainName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertions++
	s.links[domainName] = append(s.links[domainName], rawURL)
	return nil
}

func (s *fakeStore) LinksForDomain(_ context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := append([]string(nil), s.links[name]...)
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) CountLinksForDomain(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return 0, s.listErr
	}
	return len(s.links[name]), nil
}

// txFakeStore records whether saves went through InTx.
type txFakeStore struct {
	*fakeStore
	txCalls int
}

func (s *txFakeStore) InTx(_ context.Context, fn func(Store) error) error {
	s.txCalls++
	return fn(s.fakeStore)
}

type fakePublisher struct {
	topic   string
	payload any
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.topic = topic
	p.payload = payload
	return "msg-1", p.err
}

type fakeBlobStore struct {
	path        string
	contentType string
	data        []byte
	err         error
}

func (b *fakeBlobStore) PutObject(_ context.Context, path, contentType string, data io.Reader) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	b.path, b.contentType, b.data = path, contentType, raw
	return "mem://" + path, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, fetcher Fetcher, sinks Sinks) *Service {
	t.Helper()
	return NewService(store, newTestEngine(t, fetcher, 0), sinks, fixedIDs{id: "crawl-1"}, fixedClock{t: testTime}, nil)
}

func smallSite() *graphFetcher {
	f := newGraphFetcher()
	f.html("http://site.test/", `<a href="/a">a</a><a href="/b">b</a>`)
	f.html("http://site.test/a", `<a href="http://site.test/">home</a>`)
	return f
}

func TestServiceScrapePersistsLinks(t *testing.T) {
	t.Parallel()

	store := &txFakeStore{fakeStore: newFakeStore()}
	svc := newTestService(t, store, smallSite(), Sinks{})

	require.NoError(t, svc.Scrape(context.Background(), "http://site.test/"))
	require.Equal(t, 1, store.txCalls)

	count, err := svc.Count(context.Background(), "http://site.test/anything")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	links, err := svc.List(context.Background(), "http://site.test/")
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/", "http://site.test/a", "http://site.test/b"}, links)
}

func TestServiceScrapeRejectsScrapedDomainWithoutFetching(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.domains["site.test"] = true
	f := smallSite()
	svc := newTestService(t, store, f, Sinks{})

	err := svc.Scrape(context.Background(), "http://site.test/other/root")
	require.ErrorIs(t, err, ErrAlreadyScraped)
	require.Zero(t, f.fetchCount())
	require.Zero(t, store.insertions)
}

func TestServiceScrapeTwice(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	f := smallSite()
	svc := newTestService(t, store, f, Sinks{})

	require.NoError(t, svc.Scrape(context.Background(), "http://site.test/"))
	fetched := f.fetchCount()

	require.ErrorIs(t, svc.Scrape(context.Background(), "http://site.test/"), ErrAlreadyScraped)
	require.Equal(t, fetched, f.fetchCount())
}

func TestServiceScrapeInvalidInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), smallSite(), Sinks{})
	require.ErrorIs(t, svc.Scrape(context.Background(), "no-host"), ErrInvalidInput)

	_, err := svc.Count(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.List(context.Background(), "/just/a/path")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceScrapeStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")

	store := newFakeStore()
	store.existsErr = boom
	f := smallSite()
	err := newTestService(t, store, f, Sinks{}).Scrape(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, boom)
	require.Zero(t, f.fetchCount())

	store = newFakeStore()
	store.insertErr = boom
	err = newTestService(t, store, smallSite(), Sinks{}).Scrape(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, ErrStore)
	require.Zero(t, store.insertions)
}

func TestServiceScrapeFetchErrorPersistsNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	f := smallSite()
	f.fail["http://site.test/b"] = errors.New("reset by peer")

	err := newTestService(t, store, f, Sinks{}).Scrape(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, ErrFetch)
	require.False(t, store.domains["site.test"])
	require.Zero(t, store.insertions)
}

func TestServiceCountAndListErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = errors.New("closed")
	svc := newTestService(t, store, smallSite(), Sinks{})

	_, err := svc.Count(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, ErrStore)
	_, err = svc.List(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, ErrStore)
}

func TestServiceListUnknownDomainIsEmpty(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), smallSite(), Sinks{})
	links, err := svc.List(context.Background(), "http://nothing.test/")
	require.NoError(t, err)
	require.NotNil(t, links)
	require.Empty(t, links)
}

func TestServiceScrapeRejectsConcurrentCrawlOfSameDomain(t *testing.T) {
	t.Parallel()

	f := smallSite()
	f.delay = 50 * time.Millisecond
	svc := newTestService(t, newFakeStore(), f, Sinks{})

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- svc.Scrape(context.Background(), "http://site.test/") }()
	}
	first, second := <-errs, <-errs

	var okCount, rejected int
	for _, err := range []error{first, second} {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrAlreadyScraped):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, okCount)
	require.Equal(t, 1, rejected)
}

func TestServiceScrapeNotifiesSinks(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	blob := &fakeBlobStore{}
	svc := newTestService(t, newFakeStore(), smallSite(), Sinks{
		Publisher:     pub,
		Topic:         "crawls",
		Archive:       blob,
		ArchivePrefix: "/manifests/",
	})

	require.NoError(t, svc.Scrape(context.Background(), "http://site.test/"))

	sum := sha256.Sum256(blob.data)
	require.Equal(t, "crawls", pub.topic)
	require.Equal(t, CrawlEvent{
		ID:             "crawl-1",
		Domain:         "site.test",
		RootURL:        "http://site.test/",
		Links:          3,
		CompletedAt:    testTime,
		ManifestURI:    "mem://manifests/site.test/crawl-1.json",
		ManifestSHA256: hex.EncodeToString(sum[:]),
	}, pub.payload)

	require.Equal(t, "manifests/site.test/crawl-1.json", blob.path)
	require.Equal(t, "application/json", blob.contentType)
	var manifest Manifest
	require.NoError(t, json.NewDecoder(bytes.NewReader(blob.data)).Decode(&manifest))
	require.Equal(t, "crawl-1", manifest.ID)
	require.Equal(t, []string{"http://site.test/", "http://site.test/a", "http://site.test/b"}, manifest.Links)
}

func TestServiceScrapeSinkFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), smallSite(), Sinks{
		Publisher: &fakePublisher{err: errors.New("topic gone")},
		Topic:     "crawls",
		Archive:   &fakeBlobStore{err: errors.New("bucket gone")},
	})
	require.NoError(t, svc.Scrape(context.Background(), "http://site.test/"))
}

func TestServiceScrapeEventOmitsManifestWhenArchiveFails(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	svc := newTestService(t, newFakeStore(), smallSite(), Sinks{
		Publisher: pub,
		Topic:     "crawls",
		Archive:   &fakeBlobStore{err: errors.New("bucket gone")},
	})
	require.NoError(t, svc.Scrape(context.Background(), "http://site.test/"))

	event, ok := pub.payload.(CrawlEvent)
	require.True(t, ok)
	require.Empty(t, event.ManifestURI)
	require.Empty(t, event.ManifestSHA256)
	require.Equal(t, 3, event.Links)
}

func TestManifestPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com/id.json", manifestPath("", "example.com", "id"))
	require.Equal(t, "a/b/example.com/id.json", manifestPath("/a/b/", "example.com", "id"))
}
