package crawler

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/crowley/internal/metrics"
)

// Engine runs the breadth-first, batched traversal of one domain.
type Engine struct {
	fetcher   Fetcher
	extractor *Extractor
	batchSize int
	logger    *zap.Logger
}

// NewEngine constructs an Engine. A non-positive batchSize means BatchSize.
func NewEngine(fetcher Fetcher, extractor *Extractor, batchSize int, logger *zap.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher:   fetcher,
		extractor: extractor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Crawl visits every URL reachable from target.RootURL inside target.Domain
// and returns the visited set. Rounds run one after another; within a round
// every fetch runs concurrently, and the first failure aborts the crawl.
func (e *Engine) Crawl(ctx context.Context, target Target) (URLSet, error) {
	remaining := NewURLSet(target.RootURL.String())
	visited := make(URLSet)

	for round := 1; ; round++ {
		batch := remaining.Take(e.batchSize)
		if len(batch) == 0 {
			break
		}
		// Marked before fetching so siblings in this batch cannot re-enqueue them.
		for _, u := range batch {
			visited.Add(u)
		}
		e.logger.Debug("running batch",
			zap.String("domain", target.Domain),
			zap.Int("round", round),
			zap.Int("size", len(batch)),
			zap.Int("remaining", len(remaining)),
		)

		discovered, err := e.runBatch(ctx, batch, target.Domain)
		if err != nil {
			return nil, err
		}
		for u := range discovered {
			if !visited.Has(u) {
				remaining.Add(u)
			}
		}
	}
	return visited, nil
}

func (e *Engine) runBatch(ctx context.Context, batch []string, domain string) (URLSet, error) {
	metrics.ObserveBatch(len(batch))

	results := make([]URLSet, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, rawURL := range batch {
		g.Go(func() error {
			links, err := e.fetchLinks(gctx, rawURL, domain)
			if err != nil {
				return err
			}
			results[i] = links
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped by fetchLinks
	}

	discovered := make(URLSet)
	for _, links := range results {
		for u := range links {
			discovered.Add(u)
		}
	}
	return discovered, nil
}

// fetchLinks is the fetch unit: GET rawURL and, for HTML, extract its links.
func (e *Engine) fetchLinks(ctx context.Context, rawURL string, domain string) (URLSet, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %w", ErrFetch, rawURL, err)
	}
	resp, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ObserveFetch(metrics.FetchError)
		return nil, fmt.Errorf("%w: get %s: %w", ErrFetch, rawURL, err)
	}
	if !IsHTML(resp.ContentType) {
		metrics.ObserveFetch(metrics.FetchSkipped)
		e.logger.Debug("skipping non-html response",
			zap.String("url", rawURL),
			zap.String("content_type", resp.ContentType),
		)
		return nil, nil
	}
	metrics.ObserveFetch(metrics.FetchHTML)
	return e.extractor.Extract(base, resp.Body, domain)
}
