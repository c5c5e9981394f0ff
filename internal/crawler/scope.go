package crawler

import "net/url"

// InScope reports whether u belongs to domain. The comparison is an exact
// match on the host: no subdomains, no case folding, and the scheme and port
// are ignored. A URL without a host is never in scope.
func InScope(u *url.URL, domain string) bool {
	if u == nil {
		return false
	}
	host := u.Hostname()
	return host != "" && host == domain
}
