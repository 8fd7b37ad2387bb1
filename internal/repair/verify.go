package repair

import (
	"context"
	"fmt"

	"tidepool.dev/curator/internal/normalize"
)

// LinkInconsistency records one broken bidirectional link: the resource
// points at a raw record whose own pointer goes elsewhere (or nowhere).
type LinkInconsistency struct {
	ResourceID       string  `json:"resource_id"`
	RawDataID        string  `json:"raw_data_id"`
	ActualResourceID *string `json:"actual_resource_id"`
}

// VerificationSummary is the read-only integrity report. Nothing is fixed
// here; inconsistencies are surfaced for a later repair run.
type VerificationSummary struct {
	Inconsistencies      []LinkInconsistency `json:"inconsistencies"`
	TotalRawData         int64               `json:"total_raw_data"`
	LinkedRawData        int64               `json:"linked_raw_data"`
	RawDataCoverage      float64             `json:"raw_data_coverage_pct"`
	TotalResources       int64               `json:"total_resources"`
	ResourcesWithRawData int64               `json:"resources_with_raw_data"`
	ResourceCoverage     float64             `json:"resource_coverage_pct"`
	DuplicateURLGroups   int                 `json:"duplicate_url_groups"`
}

// Verify cross-checks every resource that claims a raw record against that
// record's own pointer, and reports link coverage plus how many normalized
// URLs are still shared by two or more resources.
func (s *Service) Verify(ctx context.Context) (VerificationSummary, error) {
	summary := VerificationSummary{Inconsistencies: []LinkInconsistency{}}

	resources, err := s.store.ListResourcesWithRawData(ctx)
	if err != nil {
		return summary, fmt.Errorf("list resources with raw data: %w", err)
	}
	for _, resource := range resources {
		raw, err := s.store.GetRawData(ctx, *resource.RawDataID)
		if err != nil {
			return summary, fmt.Errorf("load raw data %s: %w", *resource.RawDataID, err)
		}
		if raw == nil || raw.ResourceID == nil || *raw.ResourceID != resource.ID {
			inconsistency := LinkInconsistency{
				ResourceID: resource.ID,
				RawDataID:  *resource.RawDataID,
			}
			if raw != nil {
				inconsistency.ActualResourceID = raw.ResourceID
			}
			summary.Inconsistencies = append(summary.Inconsistencies, inconsistency)
		}
	}

	if summary.TotalRawData, err = s.store.CountRawData(ctx); err != nil {
		return summary, fmt.Errorf("count raw data: %w", err)
	}
	if summary.LinkedRawData, err = s.store.CountLinkedRawData(ctx); err != nil {
		return summary, fmt.Errorf("count linked raw data: %w", err)
	}
	if summary.TotalResources, err = s.store.CountResources(ctx); err != nil {
		return summary, fmt.Errorf("count resources: %w", err)
	}
	if summary.ResourcesWithRawData = int64(len(resources)); summary.TotalResources > 0 {
		summary.ResourceCoverage = percent(summary.ResourcesWithRawData, summary.TotalResources)
	}
	if summary.TotalRawData > 0 {
		summary.RawDataCoverage = percent(summary.LinkedRawData, summary.TotalRawData)
	}

	all, err := s.store.ListResources(ctx)
	if err != nil {
		return summary, fmt.Errorf("list resources: %w", err)
	}
	byURL := make(map[string]int)
	for _, resource := range all {
		if resource.SourceURL == nil || *resource.SourceURL == "" {
			continue
		}
		byURL[normalize.URL(*resource.SourceURL)]++
	}
	for _, count := range byURL {
		if count > 1 {
			summary.DuplicateURLGroups++
		}
	}

	s.logger.Info().
		Int("inconsistencies", len(summary.Inconsistencies)).
		Int64("linked_raw_data", summary.LinkedRawData).
		Int64("total_raw_data", summary.TotalRawData).
		Int("duplicate_url_groups", summary.DuplicateURLGroups).
		Msg("link verification completed")
	return summary, nil
}

func percent(part, whole int64) float64 {
	return float64(part) / float64(whole) * 100
}
