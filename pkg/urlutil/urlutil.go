package urlutil

import (
	"net/url"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Query parameters are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Remove query parameters
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// CanonicalizeString parses rawURL and returns its canonical string form.
func CanonicalizeString(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	canonical := Canonicalize(*parsed)
	return canonical.String(), nil
}

// Host returns the network-location component (host:port, if any) of rawURL,
// lowercased.
func Host(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return lowerASCII(parsed.Host), nil
}

// Resolve interprets ref as a reference relative to base (scheme+host) and
// returns the resulting absolute URL, mirroring the browser's URL-resolution
// algorithm as wrapped by net/url's ResolveReference.
func Resolve(base url.URL, ref string) (url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, err
	}
	resolved := base.ResolveReference(refURL)
	return *resolved, nil
}

// FilterByHost keeps only the URLs in urls whose host matches host exactly
// (case-insensitive). Malformed entries in urls are dropped.
func FilterByHost(host string, urls []string) []string {
	want := lowerASCII(host)
	var kept []string
	for _, raw := range urls {
		h, err := Host(raw)
		if err != nil {
			continue
		}
		if h == want {
			kept = append(kept, raw)
		}
	}
	return kept
}

// ContainsToken reports whether host contains the literal substring token,
// case-insensitively. Used for the gov.si scope filter (host-as-substring,
// not host-as-suffix, per the source's own matching rule).
func ContainsToken(host, token string) bool {
	return strings.Contains(lowerASCII(host), lowerASCII(token))
}
