package repair

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
)

func strPtr(s string) *string { return &s }

func rawRecord(source, externalID, payload string) db.RawData {
	record := db.RawData{
		ID:     "raw-" + source,
		Source: source,
		Data:   datatypes.JSON(payload),
	}
	if externalID != "" {
		record.ExternalID = &externalID
	}
	return record
}

func TestInferResourceType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		source string
		want   db.ResourceType
	}{
		{"arxiv", db.ResourceTypePaper},
		{"GitHub", db.ResourceTypeProject},
		{"hackernews", db.ResourceTypeNews},
		{"youtube", db.ResourceTypeVideo},
		{"rss", db.ResourceTypeRSS},
		{"medium", db.ResourceTypeBlog},
		{"something_new", db.ResourceTypeBlog},
	}
	for _, tc := range cases {
		if got := inferResourceType(tc.source); got != tc.want {
			t.Errorf("inferResourceType(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestExtractArxivPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"title": "Scaling Laws Revisited",
		"summary": "we revisit scaling laws",
		"authors": [{"name": "Ada"}, {"name": "Grace"}],
		"published": "2026-01-15T00:00:00Z"
	}`
	info, err := extractResourceInfo(rawRecord("arxiv", "2601.00001", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.Title != "Scaling Laws Revisited" {
		t.Fatalf("unexpected title %q", info.Title)
	}
	if info.Abstract == nil || *info.Abstract != "we revisit scaling laws" {
		t.Fatalf("summary should map to abstract, got %v", info.Abstract)
	}
	if info.SourceURL != "https://arxiv.org/abs/2601.00001" {
		t.Fatalf("missing link should fall back to abs URL, got %q", info.SourceURL)
	}
	if len(info.Authors) != 2 || info.Authors[0] != "Ada" {
		t.Fatalf("author objects should yield names, got %v", info.Authors)
	}
	if info.PublishedAt == nil || !info.PublishedAt.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time %v", info.PublishedAt)
	}
}

func TestExtractGithubPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"full_name": "octocat/widgets",
		"description": "a widget library",
		"html_url": "https://github.com/octocat/widgets",
		"owner": {"login": "octocat"},
		"created_at": "2025-06-01T10:30:00Z"
	}`
	info, err := extractResourceInfo(rawRecord("github", "octocat/widgets", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.Title != "octocat/widgets" {
		t.Fatalf("unexpected title %q", info.Title)
	}
	if info.SourceURL != "https://github.com/octocat/widgets" {
		t.Fatalf("unexpected url %q", info.SourceURL)
	}
	if len(info.Authors) != 1 || info.Authors[0] != "octocat" {
		t.Fatalf("owner login should become the author, got %v", info.Authors)
	}
}

func TestExtractHackerNewsUnixTime(t *testing.T) {
	t.Parallel()

	payload := `{"title": "Show HN: Curator", "by": "pg", "time": 1767225600}`
	info, err := extractResourceInfo(rawRecord("hn", "12345", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.SourceURL != "https://news.ycombinator.com/item?id=12345" {
		t.Fatalf("missing url should fall back to the item page, got %q", info.SourceURL)
	}
	if info.PublishedAt == nil || info.PublishedAt.Unix() != 1767225600 {
		t.Fatalf("unix seconds should parse, got %v", info.PublishedAt)
	}
	if len(info.Authors) != 1 || info.Authors[0] != "pg" {
		t.Fatalf("unexpected authors %v", info.Authors)
	}
}

func TestExtractYouTubeSnippetFallback(t *testing.T) {
	t.Parallel()

	payload := `{"snippet": {"title": "Talk: Go Generics", "description": "conference talk", "publishedAt": "2025-11-02T08:00:00Z"}}`
	info, err := extractResourceInfo(rawRecord("youtube", "abc123", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.Title != "Talk: Go Generics" {
		t.Fatalf("snippet title should apply, got %q", info.Title)
	}
	if info.Abstract == nil || *info.Abstract != "conference talk" {
		t.Fatalf("snippet description should apply, got %v", info.Abstract)
	}
	if info.SourceURL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected url %q", info.SourceURL)
	}
	if info.PublishedAt == nil {
		t.Fatalf("snippet publishedAt should parse")
	}
}

func TestExtractRSSClipsLongContent(t *testing.T) {
	t.Parallel()

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	payload := `{"title": "Weekly Digest", "link": "https://blog.example.com/digest", "content": "` + string(long) + `"}`
	info, err := extractResourceInfo(rawRecord("rss", "", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.Abstract == nil || len(*info.Abstract) != 500 {
		t.Fatalf("content fallback should clip to 500 runes, got %d", len(*info.Abstract))
	}
}

func TestExtractUnknownSourceFallback(t *testing.T) {
	t.Parallel()

	payload := `{"name": "Mystery Entry", "description": "from nowhere", "url": "https://example.org/mystery", "author": "kay"}`
	info, err := extractResourceInfo(rawRecord("newsletter", "", payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.Title != "Mystery Entry" {
		t.Fatalf("unexpected title %q", info.Title)
	}
	if info.SourceURL != "https://example.org/mystery" {
		t.Fatalf("unexpected url %q", info.SourceURL)
	}
	if len(info.Authors) != 1 || info.Authors[0] != "kay" {
		t.Fatalf("unexpected authors %v", info.Authors)
	}
}

func TestExtractEmptyPayloadNoExternalID(t *testing.T) {
	t.Parallel()

	info, err := extractResourceInfo(rawRecord("arxiv", "", `{}`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.SourceURL != "" {
		t.Fatalf("no link and no external id should yield no URL, got %q", info.SourceURL)
	}
}
