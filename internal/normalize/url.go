package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// Tracking parameters stripped before a URL is used as a grouping key.
var trackingQueryKeys = map[string]struct{}{
	"ref":     {},
	"source":  {},
	"fbclid":  {},
	"gclid":   {},
	"msclkid": {},
	"_ga":     {},
}

var (
	arxivIDPattern    = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d+\.\d+)`)
	githubRepoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)
)

// URL canonicalizes a source URL into a deterministic grouping key. Parse
// failures degrade to the lowercased raw string; the result is never
// persisted as a record's own source URL.
func URL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.ToLower(raw)
	}

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			query.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.Scheme = "https"

	normalized := parsed.String()
	normalized = strings.TrimSuffix(normalized, "/")
	normalized = strings.ToLower(normalized)

	host := strings.ToLower(parsed.Hostname())

	if strings.Contains(host, "arxiv.org") {
		if match := arxivIDPattern.FindStringSubmatch(normalized); match != nil {
			return "https://arxiv.org/abs/" + match[1]
		}
		return normalized
	}

	if strings.Contains(host, "github.com") && !strings.Contains(normalized, "/blob/") {
		if match := githubRepoPattern.FindStringSubmatch(normalized); match != nil {
			return "https://github.com/" + match[1] + "/" + match[2]
		}
	}

	return normalized
}

// LastPathSegment returns the final path segment of a normalized URL,
// used as a containment fragment when matching resources by URL.
func LastPathSegment(normalized string) string {
	trimmed := strings.TrimSuffix(normalized, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
