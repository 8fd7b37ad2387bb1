package repair

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tidepool.dev/curator/internal/db"
)

// resourceInfo is the typed extraction of one raw payload, shaped the same
// regardless of source so the repair loop stays source-agnostic.
type resourceInfo struct {
	Title       string
	Abstract    *string
	SourceURL   string
	Authors     []string
	PublishedAt *time.Time
}

var sourceTypes = map[string]db.ResourceType{
	"arxiv":            db.ResourceTypePaper,
	"semantic_scholar": db.ResourceTypePaper,
	"ieee":             db.ResourceTypePaper,
	"acm":              db.ResourceTypePaper,
	"openreview":       db.ResourceTypePaper,
	"github":           db.ResourceTypeProject,
	"gitlab":           db.ResourceTypeProject,
	"hackernews":       db.ResourceTypeNews,
	"techcrunch":       db.ResourceTypeNews,
	"venturebeat":      db.ResourceTypeNews,
	"youtube":          db.ResourceTypeVideo,
	"medium":           db.ResourceTypeBlog,
	"devto":            db.ResourceTypeBlog,
	"substack":         db.ResourceTypeBlog,
	"rss":              db.ResourceTypeRSS,
	"blog":             db.ResourceTypeBlog,
}

func inferResourceType(source string) db.ResourceType {
	if t, ok := sourceTypes[strings.ToLower(source)]; ok {
		return t
	}
	return db.ResourceTypeBlog
}

// extractResourceInfo maps a raw payload to canonical resource fields using
// per-source field layouts, with a generic fallback for unknown sources.
// Fields absent from the payload stay unset; a missing URL falls back to a
// source-specific form built from the external id when one is present.
func extractResourceInfo(record db.RawData) (resourceInfo, error) {
	var data map[string]any
	if len(record.Data) > 0 {
		if err := json.Unmarshal(record.Data, &data); err != nil {
			return resourceInfo{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if data == nil {
		data = map[string]any{}
	}

	externalID := ""
	if record.ExternalID != nil {
		externalID = *record.ExternalID
	}

	switch strings.ToLower(record.Source) {
	case "arxiv":
		return resourceInfo{
			Title:       stringField(data, "title", "Untitled Paper"),
			Abstract:    optionalField(data, "summary", "abstract"),
			SourceURL:   urlOrDefault(data, []string{"link"}, externalID, "https://arxiv.org/abs/%s"),
			Authors:     authorNames(data["authors"]),
			PublishedAt: timeField(data, "published"),
		}, nil
	case "github":
		var authors []string
		if owner, ok := data["owner"].(map[string]any); ok {
			if login, ok := owner["login"].(string); ok && login != "" {
				authors = []string{login}
			}
		}
		return resourceInfo{
			Title:       stringField(data, "full_name", stringField(data, "name", "Untitled Project")),
			Abstract:    optionalField(data, "description"),
			SourceURL:   urlOrDefault(data, []string{"html_url"}, externalID, "https://github.com/%s"),
			Authors:     authors,
			PublishedAt: timeField(data, "created_at"),
		}, nil
	case "hackernews", "hn":
		return resourceInfo{
			Title:       stringField(data, "title", "Untitled"),
			Abstract:    optionalField(data, "text"),
			SourceURL:   urlOrDefault(data, []string{"url"}, externalID, "https://news.ycombinator.com/item?id=%s"),
			Authors:     singleAuthor(data, "by"),
			PublishedAt: unixTimeField(data, "time"),
		}, nil
	case "youtube":
		snippet, _ := data["snippet"].(map[string]any)
		title := stringField(data, "title", "")
		if title == "" && snippet != nil {
			title = stringField(snippet, "title", "")
		}
		if title == "" {
			title = "Untitled Video"
		}
		abstract := optionalField(data, "description")
		if abstract == nil && snippet != nil {
			abstract = optionalField(snippet, "description")
		}
		published := timeField(data, "publishedAt")
		if published == nil && snippet != nil {
			published = timeField(snippet, "publishedAt")
		}
		return resourceInfo{
			Title:       title,
			Abstract:    abstract,
			SourceURL:   urlOrDefault(data, []string{"url"}, externalID, "https://www.youtube.com/watch?v=%s"),
			Authors:     singleAuthor(data, "channelTitle"),
			PublishedAt: published,
		}, nil
	case "rss", "blog", "medium", "devto":
		abstract := optionalField(data, "summary", "description")
		if abstract == nil {
			if content, ok := data["content"].(string); ok && content != "" {
				clipped := clipRunes(content, 500)
				abstract = &clipped
			}
		}
		authors := singleAuthor(data, "author")
		if authors == nil {
			authors = authorNames(data["authors"])
		}
		published := timeField(data, "pubDate")
		if published == nil {
			published = timeField(data, "published")
		}
		return resourceInfo{
			Title:       stringField(data, "title", "Untitled"),
			Abstract:    abstract,
			SourceURL:   firstString(data, "link", "url"),
			Authors:     authors,
			PublishedAt: published,
		}, nil
	}

	// Unknown source: best-effort over the common field names.
	authors := authorNames(data["authors"])
	if authors == nil {
		authors = singleAuthor(data, "author")
	}
	published := timeField(data, "publishedAt")
	if published == nil {
		published = timeField(data, "published")
	}
	if published == nil {
		published = timeField(data, "createdAt")
	}
	return resourceInfo{
		Title:       stringField(data, "title", stringField(data, "name", "Untitled")),
		Abstract:    optionalField(data, "abstract", "summary", "description"),
		SourceURL:   firstString(data, "url", "link", "sourceUrl"),
		Authors:     authors,
		PublishedAt: published,
	}, nil
}

func stringField(data map[string]any, key, fallback string) string {
	if value, ok := data[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := data[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func optionalField(data map[string]any, keys ...string) *string {
	if value := firstString(data, keys...); value != "" {
		return &value
	}
	return nil
}

func urlOrDefault(data map[string]any, keys []string, externalID, format string) string {
	if value := firstString(data, keys...); value != "" {
		return value
	}
	if externalID == "" {
		return ""
	}
	return fmt.Sprintf(format, externalID)
}

func singleAuthor(data map[string]any, key string) []string {
	if value, ok := data[key].(string); ok && value != "" {
		return []string{value}
	}
	return nil
}

// authorNames accepts either a list of strings or a list of objects with a
// "name" field, the two shapes seen across source payloads.
func authorNames(value any) []string {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			if v != "" {
				names = append(names, v)
			}
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timeField(data map[string]any, key string) *time.Time {
	raw, ok := data[key].(string)
	if !ok || raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func unixTimeField(data map[string]any, key string) *time.Time {
	seconds, ok := data[key].(float64)
	if !ok || seconds <= 0 {
		return nil
	}
	parsed := time.Unix(int64(seconds), 0).UTC()
	return &parsed
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
