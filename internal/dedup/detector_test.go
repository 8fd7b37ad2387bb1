package dedup

import (
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func resourceWithURL(id, url, source string) db.Resource {
	return db.Resource{ID: id, SourceURL: strPtr(url), Source: source}
}

func TestURLPassPicksHighestQualityCanonical(t *testing.T) {
	t.Parallel()

	// Same normalized URL; quality order arxiv(95) > ieee+nothing(90) > hackernews(70).
	resources := []db.Resource{
		resourceWithURL("r-hn", "https://arxiv.org/abs/2401.12345", "hackernews"),
		resourceWithURL("r-arxiv", "https://arxiv.org/pdf/2401.12345", "arxiv"),
		resourceWithURL("r-ieee", "https://arxiv.org/abs/2401.12345?utm_source=x", "ieee"),
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if group.Reason != ReasonURLMatch {
		t.Fatalf("unexpected reason %q", group.Reason)
	}
	if group.Similarity != 1.0 {
		t.Fatalf("url groups carry similarity 1.0, got %v", group.Similarity)
	}
	if group.CanonicalID != "r-arxiv" {
		t.Fatalf("expected highest-quality record as canonical, got %s", group.CanonicalID)
	}
	if len(group.DuplicateIDs) != 2 {
		t.Fatalf("expected 2 duplicates, got %v", group.DuplicateIDs)
	}
}

func TestURLPassStableTieBreak(t *testing.T) {
	t.Parallel()

	// Identical quality; the earlier record in snapshot order wins.
	resources := []db.Resource{
		resourceWithURL("first", "https://example.com/a", "ieee"),
		resourceWithURL("second", "https://example.com/a", "acm"),
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].CanonicalID != "first" {
		t.Fatalf("tie should resolve to earliest record, got %s", groups[0].CanonicalID)
	}
}

func TestURLPassSkipsRecordsWithoutURL(t *testing.T) {
	t.Parallel()

	resources := []db.Resource{
		{ID: "a", Source: "arxiv"},
		{ID: "b", Source: "arxiv"},
	}
	if groups := FindDuplicates(resources, testNow); len(groups) != 0 {
		t.Fatalf("records without URLs cannot form url groups, got %v", groups)
	}
}

func TestTitlePassGroupsNearIdenticalTitles(t *testing.T) {
	t.Parallel()

	resources := []db.Resource{
		{ID: "t1", Title: strPtr("Attention Is All You Need")},
		{ID: "t2", Title: strPtr("attention is all you need!!")},
		{ID: "t3", Title: strPtr("A Completely Different Survey")},
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if group.Reason != ReasonTitleSimilarity {
		t.Fatalf("unexpected reason %q", group.Reason)
	}
	if group.CanonicalID != "t1" || len(group.DuplicateIDs) != 1 || group.DuplicateIDs[0] != "t2" {
		t.Fatalf("unexpected grouping: %+v", group)
	}
	if group.Similarity < titleSimilarityThreshold {
		t.Fatalf("similarity %v below threshold", group.Similarity)
	}
}

func TestTitlePassIgnoresShortTitles(t *testing.T) {
	t.Parallel()

	resources := []db.Resource{
		{ID: "s1", Title: strPtr("short")},
		{ID: "s2", Title: strPtr("short")},
	}
	if groups := FindDuplicates(resources, testNow); len(groups) != 0 {
		t.Fatalf("titles under 10 chars must not group, got %v", groups)
	}
}

func TestFingerprintPassGroupsReorderedContent(t *testing.T) {
	t.Parallel()

	contentA := "transformers rely entirely on attention mechanisms for sequence modeling tasks today"
	contentB := "attention mechanisms for sequence modeling tasks today rely entirely on transformers"

	resources := []db.Resource{
		{ID: "c1", Content: strPtr(contentA), Source: "arxiv"},
		{ID: "c2", Content: strPtr(contentB), Source: "hackernews"},
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if group.Reason != ReasonContentFingerprint {
		t.Fatalf("unexpected reason %q", group.Reason)
	}
	if group.Similarity != fingerprintSimilarity {
		t.Fatalf("fingerprint groups carry fixed similarity %v, got %v", fingerprintSimilarity, group.Similarity)
	}
	if group.CanonicalID != "c1" {
		t.Fatalf("expected arxiv record as canonical, got %s", group.CanonicalID)
	}
}

func TestFingerprintPassFallsBackToAbstract(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("stream processing engines checkpoint operator state for recovery ", 2)
	resources := []db.Resource{
		{ID: "f1", Abstract: strPtr(body)},
		{ID: "f2", Abstract: strPtr(body)},
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 || groups[0].Reason != ReasonContentFingerprint {
		t.Fatalf("abstract fallback should group, got %v", groups)
	}
}

func TestEarlierPassesClaimRecords(t *testing.T) {
	t.Parallel()

	// Same URL and same title: the URL pass grabs both, leaving nothing
	// for the title pass.
	title := "Retrieval Augmented Generation Explained"
	resources := []db.Resource{
		{ID: "p1", SourceURL: strPtr("https://example.com/rag"), Title: strPtr(title)},
		{ID: "p2", SourceURL: strPtr("https://example.com/rag"), Title: strPtr(title)},
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Reason != ReasonURLMatch {
		t.Fatalf("url pass should claim the pair, got %q", groups[0].Reason)
	}
}

func TestFindDuplicatesCleanDatasetIsEmpty(t *testing.T) {
	t.Parallel()

	resources := []db.Resource{
		resourceWithURL("u1", "https://example.com/one", "arxiv"),
		resourceWithURL("u2", "https://example.com/two", "arxiv"),
	}
	if groups := FindDuplicates(resources, testNow); len(groups) != 0 {
		t.Fatalf("clean dataset should yield no groups, got %v", groups)
	}
}

func TestQualitySortUsesCitationsAndAuthors(t *testing.T) {
	t.Parallel()

	url := "https://example.com/shared"
	resources := []db.Resource{
		{ID: "plain", SourceURL: strPtr(url), Source: "ieee"},
		{ID: "cited", SourceURL: strPtr(url), Source: "ieee", CitationCount: intPtr(200), Authors: datatypes.JSON(`["ada"]`)},
	}

	groups := FindDuplicates(resources, testNow)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].CanonicalID != "cited" {
		t.Fatalf("citations and authors should outrank, got %s", groups[0].CanonicalID)
	}
}
