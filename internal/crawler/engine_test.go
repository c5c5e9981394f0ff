package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// graphFetcher serves canned HTML pages keyed by absolute URL.
type graphFetcher struct {
	pages map[string]Response
	fail  map[string]error
	delay time.Duration

	mu      sync.Mutex
	fetched []string

	active    atomic.Int32
	maxActive atomic.Int32
}

func newGraphFetcher() *graphFetcher {
	return &graphFetcher{
		pages: make(map[string]Response),
		fail:  make(map[string]error),
	}
}

func (f *graphFetcher) html(rawURL, body string) {
	f.pages[rawURL] = Response{URL: rawURL, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func (f *graphFetcher) Fetch(ctx context.Context, rawURL string) (Response, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxActive.Load()
		if n <= prev || f.maxActive.CompareAndSwap(prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if err, ok := f.fail[rawURL]; ok {
		return Response{}, err
	}
	if resp, ok := f.pages[rawURL]; ok {
		return resp, nil
	}
	return Response{URL: rawURL, StatusCode: 404, ContentType: "text/html", Body: []byte("<p>not found</p>")}, nil
}

func (f *graphFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func newTestEngine(t *testing.T, fetcher Fetcher, batchSize int) *Engine {
	t.Helper()
	extractor, err := NewExtractor("")
	require.NoError(t, err)
	return NewEngine(fetcher, extractor, batchSize, nil)
}

func mustTarget(t *testing.T, raw string) Target {
	t.Helper()
	target, err := ParseTarget(raw)
	require.NoError(t, err)
	return target
}

func TestEngineCrawlVisitsReachableSet(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.html("http://site.test/", `
		<a href="/a">a</a>
		<a href="/b">b</a>
		<a href="http://other.test/x">external</a>`)
	f.html("http://site.test/a", `<a href="http://site.test/">home</a><a href="/c">c</a>`)
	f.html("http://site.test/b", `<a href="http://site.test/a">a</a>`)
	f.html("http://site.test/a/c", `<a href="http://site.test/b">b</a>`)

	engine := newTestEngine(t, f, 2)
	visited, err := engine.Crawl(context.Background(), mustTarget(t, "http://site.test"))
	require.NoError(t, err)
	require.Equal(t, []string{
		"http://site.test/",
		"http://site.test/a",
		"http://site.test/a/c",
		"http://site.test/b",
	}, visited.Sorted())
	require.Equal(t, 4, f.fetchCount(), "each URL is fetched exactly once")
}

func TestEngineCrawlFetchesEachPageOnceWhateverItsSpelling(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.html("http://site.test/", `
		<a href="http://site.test">logo</a>
		<a href="http://site.test/a/../b">b</a>
		<a href="http://site.test:80/b">b again</a>`)
	f.html("http://site.test/b", `<a href="http://site.test:80">home</a>`)

	visited, err := newTestEngine(t, f, 0).Crawl(context.Background(), mustTarget(t, "http://site.test/"))
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/", "http://site.test/b"}, visited.Sorted())
	require.Equal(t, 2, f.fetchCount())
}

func TestEngineCrawlKeepsDeadLinks(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.html("http://site.test/", `<a href="/missing">missing</a>`)

	visited, err := newTestEngine(t, f, 0).Crawl(context.Background(), mustTarget(t, "http://site.test/"))
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/", "http://site.test/missing"}, visited.Sorted())
}

func TestEngineCrawlSkipsNonHTML(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.html("http://site.test/", `<a href="/feed.json">feed</a>`)
	f.pages["http://site.test/feed.json"] = Response{
		URL:         "http://site.test/feed.json",
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"href": "/never-followed"}`),
	}

	visited, err := newTestEngine(t, f, 0).Crawl(context.Background(), mustTarget(t, "http://site.test/"))
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/", "http://site.test/feed.json"}, visited.Sorted())
}

func TestEngineCrawlAbortsOnFetchError(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.html("http://site.test/", `<a href="/ok">ok</a><a href="/broken">broken</a>`)
	f.html("http://site.test/ok", `<a href="/next">next</a>`)
	f.fail["http://site.test/broken"] = errors.New("connection refused")

	_, err := newTestEngine(t, f, 0).Crawl(context.Background(), mustTarget(t, "http://site.test/"))
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorContains(t, err, "connection refused")
	require.NotContains(t, f.fetched, "http://site.test/next", "no round starts after a failed one")
}

func TestEngineCrawlBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const pages = 20
	f := newGraphFetcher()
	f.delay = 5 * time.Millisecond
	index := ""
	for i := range pages {
		index += fmt.Sprintf(`<a href="/p%d">p</a>`, i)
	}
	f.html("http://site.test/", index)

	visited, err := newTestEngine(t, f, 4).Crawl(context.Background(), mustTarget(t, "http://site.test/"))
	require.NoError(t, err)
	require.Len(t, visited, pages+1)
	require.LessOrEqual(t, f.maxActive.Load(), int32(4))
	require.Greater(t, f.maxActive.Load(), int32(1), "fetches within a batch overlap")
}

func TestEngineCrawlHonorsCancellation(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher()
	f.delay = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, f, 0).Crawl(ctx, mustTarget(t, "http://site.test/"))
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, context.Canceled)
}
