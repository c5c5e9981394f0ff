package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// DefaultSelector matches every anchor that carries an href.
const DefaultSelector = "a[href]"

// Extractor pulls in-scope links out of HTML documents.
type Extractor struct {
	selector cascadia.Selector
}

// NewExtractor compiles selector once. An empty selector means DefaultSelector.
func NewExtractor(selector string) (*Extractor, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: compile selector %q: %w", ErrExtraction, selector, err)
	}
	return &Extractor{selector: sel}, nil
}

// Extract returns the set of absolute, in-scope URLs referenced by the
// document's anchors. Hrefs starting with "/" are resolved against base's path
// with ResolvePath; everything else must parse as an absolute URL or it is
// dropped. Every result is normalized, so spellings of one page collapse.
func (e *Extractor) Extract(base *url.URL, body []byte, domain string) (URLSet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse document %s: %w", ErrFetch, base, err)
	}
	links := make(URLSet)
	doc.FindMatcher(e.selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link, ok := resolveHref(base, href)
		if !ok || !InScope(link, domain) {
			return
		}
		links.Add(link.String())
	})
	return links, nil
}

func resolveHref(base *url.URL, href string) (*url.URL, bool) {
	if !strings.HasPrefix(href, "/") {
		u, err := url.Parse(href)
		if err != nil || !u.IsAbs() {
			return nil, false
		}
		return Normalize(u), true
	}

	rawPath, query := href, ""
	if i := strings.IndexByte(rawPath, '#'); i >= 0 {
		rawPath = rawPath[:i]
	}
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath, query = rawPath[:i], rawPath[i+1:]
	}
	rel, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, false
	}

	p := ResolvePath(base.Path, rel)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	resolved := *base
	resolved.Path = p
	resolved.RawPath = ""
	resolved.RawQuery = query
	return Normalize(&resolved), true
}
