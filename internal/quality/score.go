package quality

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
)

// Source trust table. Unknown or missing sources score the neutral default.
var sourceScores = map[string]float64{
	"arxiv":            95,
	"ieee":             90,
	"acm":              90,
	"semantic_scholar": 90,
	"github":           85,
	"hackernews":       70,
}

const defaultSourceScore = 50

// Score rates a resource for canonical selection: source trust, content
// completeness, recency against now, and a capped citation term. Pure and
// deterministic given the same inputs and now.
func Score(resource db.Resource, now time.Time) float64 {
	score := sourceScore(resource.Source)

	if resource.Abstract != nil && utf8.RuneCountInString(*resource.Abstract) > 100 {
		score += 20
	}
	if resource.Content != nil && utf8.RuneCountInString(*resource.Content) > 500 {
		score += 30
	}
	if hasAuthors(resource.Authors) {
		score += 10
	}

	if resource.PublishedAt != nil {
		days := now.Sub(*resource.PublishedAt).Hours() / 24
		switch {
		case days <= 30:
			score += 20
		case days <= 90:
			score += 15
		case days <= 365:
			score += 10
		}
	}

	if resource.CitationCount != nil {
		citation := float64(*resource.CitationCount) / 5
		if citation > 20 {
			citation = 20
		}
		score += citation
	}

	return score
}

func sourceScore(source string) float64 {
	if trusted, ok := sourceScores[strings.ToLower(source)]; ok {
		return trusted
	}
	return defaultSourceScore
}

func hasAuthors(raw datatypes.JSON) bool {
	if len(raw) == 0 {
		return false
	}
	var authors []any
	if err := json.Unmarshal([]byte(raw), &authors); err != nil {
		return false
	}
	return len(authors) > 0
}
