// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector. Every Fetch
// runs on a clone of one base collector, so clones share the transport's
// connection pool.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		// Every status is a completed fetch; only transport failures are errors.
		colly.ParseHTTPErrorResponse(),
		// The frontier decides what to visit, not the collector.
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(0),
	)
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET using Colly. Non-HTML responses are cut
// off once their headers arrive, so their bodies are never read.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Response, error) {
	v := &visit{}
	collector := f.baseCollector.Clone()
	configureCollectorHooks(collector, v)

	if err := runCollector(ctx, collector, rawURL, v); err != nil {
		return crawler.Response{}, err
	}
	return v.result, nil
}

// visit is the state one Fetch shares with its collector callbacks.
type visit struct {
	result crawler.Response
	err    error
	// skipped marks a transfer aborted after the headers of a non-HTML response.
	skipped bool
}

func configureCollectorHooks(hooks collectorHooks, v *visit) {
	hooks.OnResponseHeaders(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = *r.Headers
		}
		contentType, err := crawler.ContentType(headers)
		if err != nil {
			v.err = err
			r.Request.Abort()
			return
		}
		v.result = crawler.Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
		}
		if !crawler.IsHTML(contentType) {
			v.skipped = true
			r.Request.Abort()
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		v.result.URL = r.Request.URL.String()
		v.result.StatusCode = r.StatusCode
		v.result.Body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		if v.skipped && errors.Is(err, colly.ErrAbortedAfterHeaders) {
			return
		}
		if v.err == nil {
			v.err = err
		}
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, v *visit) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if v.err != nil {
			return fmt.Errorf("colly response failed: %w", v.err)
		}
		if err != nil && !(v.skipped && errors.Is(err, colly.ErrAbortedAfterHeaders)) {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   crawler.BatchSize,
		IdleConnTimeout:       90 * time.Second,
	}
}
