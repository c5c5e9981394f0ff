package crawler

import (
	"fmt"
	"net/http"
	"strings"
)

// IsHTML reports whether a Content-Type header value announces an HTML body.
func IsHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html")
}

// ContentType returns the Content-Type header of h. A header holding bytes
// outside visible ASCII is an error; a missing header is "".
func ContentType(h http.Header) (string, error) {
	v := h.Get("Content-Type")
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\t' && (c < ' ' || c > '~') {
			return "", fmt.Errorf("content-type header has non-ascii byte 0x%02x", c)
		}
	}
	return v, nil
}
