package dedup

import (
	"sort"
	"time"
	"unicode/utf8"

	"tidepool.dev/curator/internal/db"
	"tidepool.dev/curator/internal/normalize"
	"tidepool.dev/curator/internal/quality"
	"tidepool.dev/curator/internal/similarity"
)

// Reason tags how a duplicate group was detected.
type Reason string

const (
	ReasonURLMatch           Reason = "url_match"
	ReasonTitleSimilarity    Reason = "title_similarity"
	ReasonContentFingerprint Reason = "content_fingerprint"
)

const (
	titleSimilarityThreshold = 0.85
	minTitleLength           = 10

	// Fingerprint equality is strong evidence but not proof of duplication
	// at the token-bag level, so groups carry a fixed confidence tag.
	fingerprintSimilarity = 0.95
)

// Group is one detected duplicate cluster. The canonical record survives;
// the rest are merged into it and removed.
type Group struct {
	CanonicalID  string
	DuplicateIDs []string
	Reason       Reason
	Similarity   float64
}

// FindDuplicates runs the three detection passes over a read-only snapshot.
// A record claimed by an earlier pass is invisible to later ones: URL
// identity is the strongest, cheapest signal, so it runs first and the
// quadratic title pass only ever sees the residue.
func FindDuplicates(resources []db.Resource, now time.Time) []Group {
	claimed := make(map[string]struct{})

	groups := urlPass(resources, claimed, now)
	groups = append(groups, titlePass(resources, claimed)...)
	groups = append(groups, fingerprintPass(resources, claimed, now)...)
	return groups
}

// urlPass groups records sharing a normalized source URL.
func urlPass(resources []db.Resource, claimed map[string]struct{}, now time.Time) []Group {
	byURL := make(map[string][]db.Resource)
	var order []string
	for _, resource := range resources {
		if resource.SourceURL == nil || *resource.SourceURL == "" {
			continue
		}
		key := normalize.URL(*resource.SourceURL)
		if _, seen := byURL[key]; !seen {
			order = append(order, key)
		}
		byURL[key] = append(byURL[key], resource)
	}

	var groups []Group
	for _, key := range order {
		members := byURL[key]
		if len(members) < 2 {
			continue
		}

		sorted := sortByQuality(members, now)
		canonical := sorted[0]
		duplicateIDs := make([]string, 0, len(sorted)-1)
		for _, member := range sorted[1:] {
			duplicateIDs = append(duplicateIDs, member.ID)
			claimed[member.ID] = struct{}{}
		}
		claimed[canonical.ID] = struct{}{}

		groups = append(groups, Group{
			CanonicalID:  canonical.ID,
			DuplicateIDs: duplicateIDs,
			Reason:       ReasonURLMatch,
			Similarity:   1.0,
		})
	}
	return groups
}

// titlePass pairs unclaimed records whose titles clear the Jaccard
// threshold. Quadratic over the residue left by the URL pass.
func titlePass(resources []db.Resource, claimed map[string]struct{}) []Group {
	var groups []Group
	for i := 0; i < len(resources); i++ {
		resource := resources[i]
		if _, taken := claimed[resource.ID]; taken {
			continue
		}
		if resource.Title == nil || utf8.RuneCountInString(*resource.Title) < minTitleLength {
			continue
		}

		var duplicateIDs []string
		maxSimilarity := 0.0
		for j := i + 1; j < len(resources); j++ {
			other := resources[j]
			if _, taken := claimed[other.ID]; taken {
				continue
			}
			if other.Title == nil {
				continue
			}

			sim := similarity.Jaccard(normalize.CleanText(*resource.Title), normalize.CleanText(*other.Title))
			if sim >= titleSimilarityThreshold {
				duplicateIDs = append(duplicateIDs, other.ID)
				claimed[other.ID] = struct{}{}
				if sim > maxSimilarity {
					maxSimilarity = sim
				}
			}
		}

		if len(duplicateIDs) > 0 {
			claimed[resource.ID] = struct{}{}
			groups = append(groups, Group{
				CanonicalID:  resource.ID,
				DuplicateIDs: duplicateIDs,
				Reason:       ReasonTitleSimilarity,
				Similarity:   maxSimilarity,
			})
		}
	}
	return groups
}

// fingerprintPass groups unclaimed records by content fingerprint, falling
// back to the abstract when content is absent.
func fingerprintPass(resources []db.Resource, claimed map[string]struct{}, now time.Time) []Group {
	byFingerprint := make(map[string][]db.Resource)
	var order []string
	for _, resource := range resources {
		if _, taken := claimed[resource.ID]; taken {
			continue
		}
		body := ""
		if resource.Content != nil && *resource.Content != "" {
			body = *resource.Content
		} else if resource.Abstract != nil {
			body = *resource.Abstract
		}
		fingerprint := normalize.Fingerprint(body)
		if fingerprint == "" {
			continue
		}
		if _, seen := byFingerprint[fingerprint]; !seen {
			order = append(order, fingerprint)
		}
		byFingerprint[fingerprint] = append(byFingerprint[fingerprint], resource)
	}

	var groups []Group
	for _, key := range order {
		members := byFingerprint[key]
		if len(members) < 2 {
			continue
		}

		sorted := sortByQuality(members, now)
		canonical := sorted[0]
		duplicateIDs := make([]string, 0, len(sorted)-1)
		for _, member := range sorted[1:] {
			duplicateIDs = append(duplicateIDs, member.ID)
			claimed[member.ID] = struct{}{}
		}
		claimed[canonical.ID] = struct{}{}

		groups = append(groups, Group{
			CanonicalID:  canonical.ID,
			DuplicateIDs: duplicateIDs,
			Reason:       ReasonContentFingerprint,
			Similarity:   fingerprintSimilarity,
		})
	}
	return groups
}

// sortByQuality orders members by quality score descending. The sort is
// stable so score ties resolve to the earliest record in snapshot order.
func sortByQuality(members []db.Resource, now time.Time) []db.Resource {
	sorted := make([]db.Resource, len(members))
	copy(sorted, members)
	scores := make([]float64, len(sorted))
	for i, member := range sorted {
		scores[i] = quality.Score(member, now)
	}
	indexes := make([]int, len(sorted))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return scores[indexes[a]] > scores[indexes[b]]
	})

	out := make([]db.Resource, len(sorted))
	for rank, idx := range indexes {
		out[rank] = sorted[idx]
	}
	return out
}
