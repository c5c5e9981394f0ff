// Package httpfetch implements crawler.Fetcher on a plain net/http client.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// Config controls client behavior.
type Config struct {
	UserAgent string
	// Timeout bounds a whole request. Zero leaves requests unbounded apart from
	// the caller's context.
	Timeout time.Duration
}

// Fetcher performs one GET per call and reads the body only for HTML.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New builds a Fetcher with a pooled transport.
func New(cfg Config) *Fetcher {
	return NewWithClient(cfg, &http.Client{
		Transport: newHTTPTransport(),
		Timeout:   cfg.Timeout,
	})
}

// NewWithClient builds a Fetcher around an existing client.
func NewWithClient(cfg Config, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{cfg: cfg, client: client}
}

// Fetch issues a GET for rawURL. Any status is a successful fetch; only
// transport failures, a malformed Content-Type or a failed body read are
// errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return crawler.Response{}, fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return crawler.Response{}, fmt.Errorf("http get: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body already consumed or discarded
	}()

	contentType, err := crawler.ContentType(resp.Header)
	if err != nil {
		return crawler.Response{}, err //nolint:wrapcheck // message names the header
	}
	result := crawler.Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}
	if !crawler.IsHTML(contentType) {
		return result, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return crawler.Response{}, fmt.Errorf("read body: %w", err)
	}
	result.Body = body
	return result, nil
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
