package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseTarget parses a root URL and derives the crawl's domain from its host.
// The root URL is normalized with Normalize.
func ParseTarget(rawURL string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Target{}, fmt.Errorf("%w: parse %q: %w", ErrInvalidInput, rawURL, err)
	}
	domain := u.Hostname()
	if domain == "" {
		return Target{}, fmt.Errorf("%w: missing domain in url %q", ErrInvalidInput, rawURL)
	}
	return Target{RootURL: Normalize(u), Domain: domain}, nil
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize returns the canonical spelling of an absolute URL so that every
// way of writing one page maps to one frontier entry: dot segments are
// removed, an empty path becomes "/", and the scheme's default port and the
// fragment are dropped. Host case is left alone.
func Normalize(u *url.URL) *url.URL {
	n := u.ResolveReference(&url.URL{})
	if n.Host != "" && n.Path == "" {
		n.Path, n.RawPath = "/", ""
	}
	if port := n.Port(); port != "" && port == defaultPorts[n.Scheme] {
		n.Host = strings.TrimSuffix(n.Host, ":"+port)
	}
	n.Fragment, n.RawFragment = "", ""
	return n
}

// DomainName returns the host component of rawURL.
func DomainName(rawURL string) (string, error) {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return "", err
	}
	return target.Domain, nil
}
