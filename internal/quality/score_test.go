package quality

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

func timePtr(t time.Time) *time.Time { return &t }

func TestScoreSourceTrust(t *testing.T) {
	t.Parallel()

	arxiv := Score(db.Resource{Source: "arxiv"}, testNow)
	if arxiv != 95 {
		t.Fatalf("expected arxiv base score 95, got %v", arxiv)
	}
	mixedCase := Score(db.Resource{Source: "ArXiv"}, testNow)
	if mixedCase != arxiv {
		t.Fatalf("source lookup should be case-insensitive: %v != %v", mixedCase, arxiv)
	}
	unknown := Score(db.Resource{Source: "myblog"}, testNow)
	if unknown != 50 {
		t.Fatalf("expected unknown source score 50, got %v", unknown)
	}
	missing := Score(db.Resource{}, testNow)
	if missing != 50 {
		t.Fatalf("expected missing source score 50, got %v", missing)
	}
}

func TestScoreCompleteness(t *testing.T) {
	t.Parallel()

	longAbstract := strings.Repeat("a", 101)
	longContent := strings.Repeat("b", 501)

	base := Score(db.Resource{Source: "github"}, testNow)
	withAbstract := Score(db.Resource{Source: "github", Abstract: strPtr(longAbstract)}, testNow)
	if withAbstract-base != 20 {
		t.Fatalf("long abstract should add 20, added %v", withAbstract-base)
	}

	shortAbstract := Score(db.Resource{Source: "github", Abstract: strPtr("tiny")}, testNow)
	if shortAbstract != base {
		t.Fatalf("short abstract should add nothing, got %v vs %v", shortAbstract, base)
	}

	withContent := Score(db.Resource{Source: "github", Content: strPtr(longContent)}, testNow)
	if withContent-base != 30 {
		t.Fatalf("long content should add 30, added %v", withContent-base)
	}

	withAuthors := Score(db.Resource{Source: "github", Authors: datatypes.JSON(`["ada","grace"]`)}, testNow)
	if withAuthors-base != 10 {
		t.Fatalf("authors should add 10, added %v", withAuthors-base)
	}

	emptyAuthors := Score(db.Resource{Source: "github", Authors: datatypes.JSON(`[]`)}, testNow)
	if emptyAuthors != base {
		t.Fatalf("empty author list should add nothing, got %v vs %v", emptyAuthors, base)
	}
}

func TestScoreRecencyBuckets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		age   time.Duration
		bonus float64
	}{
		{10 * 24 * time.Hour, 20},
		{60 * 24 * time.Hour, 15},
		{200 * 24 * time.Hour, 10},
		{400 * 24 * time.Hour, 0},
	}
	base := Score(db.Resource{Source: "arxiv"}, testNow)
	for _, tc := range cases {
		published := testNow.Add(-tc.age)
		got := Score(db.Resource{Source: "arxiv", PublishedAt: timePtr(published)}, testNow)
		if got-base != tc.bonus {
			t.Fatalf("age %v: expected bonus %v, got %v", tc.age, tc.bonus, got-base)
		}
	}
}

func TestScoreCitationTermSaturates(t *testing.T) {
	t.Parallel()

	base := Score(db.Resource{Source: "arxiv"}, testNow)

	ten := Score(db.Resource{Source: "arxiv", CitationCount: intPtr(10)}, testNow)
	if ten-base != 2 {
		t.Fatalf("10 citations should add 2, added %v", ten-base)
	}

	hundred := Score(db.Resource{Source: "arxiv", CitationCount: intPtr(100)}, testNow)
	thousand := Score(db.Resource{Source: "arxiv", CitationCount: intPtr(1000)}, testNow)
	if hundred-base != 20 {
		t.Fatalf("100 citations should saturate at 20, added %v", hundred-base)
	}
	if thousand != hundred {
		t.Fatalf("citation term must cap: %v != %v", thousand, hundred)
	}

	// Monotonic up to the saturation point.
	prev := base
	for _, count := range []int{1, 5, 25, 50, 99, 100} {
		got := Score(db.Resource{Source: "arxiv", CitationCount: intPtr(count)}, testNow)
		if got < prev {
			t.Fatalf("score decreased at %d citations: %v < %v", count, got, prev)
		}
		prev = got
	}
}
