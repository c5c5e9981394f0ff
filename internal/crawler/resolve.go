package crawler

import "strings"

// ResolvePath resolves rel against the absolute path base. Both are bare
// paths. Empty segments are dropped, ".." pops the last base segment (and
// stays at the root when there is nothing left to pop), and anything else is
// appended. A rel without segments returns base unchanged.
func ResolvePath(base, rel string) string {
	relSegments := segments(rel)
	if len(relSegments) == 0 {
		return base
	}
	out := segments(base)
	for _, seg := range relSegments {
		if seg == ".." {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, "/")
}

func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
