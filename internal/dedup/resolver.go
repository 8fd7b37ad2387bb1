package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
	"tidepool.dev/curator/internal/globaltime"
	"tidepool.dev/curator/internal/store"
)

const processedBy = "curator dedup"

// CleaningReport aggregates one deduplication run. Serialized as the
// externally consumed artifact of the run.
type CleaningReport struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DryRun           bool      `json:"dry_run"`
	TotalResources   int       `json:"total_resources"`
	DuplicateGroups  int       `json:"duplicate_groups"`
	MergedResources  int       `json:"merged_resources"`
	DeletedResources int       `json:"deleted_resources"`
	UpdatedRelations int64     `json:"updated_relations"`
	Errors           []string  `json:"errors"`
}

// Service runs duplicate detection and group merging against a store.
type Service struct {
	store  store.Store
	logger zerolog.Logger
}

func NewService(s store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger,
	}
}

// Run detects duplicate groups and merges each one. The only fatal error is
// failing to fetch the initial snapshot; every per-group failure is captured
// in the report and the run continues.
func (s *Service) Run(ctx context.Context, dryRun bool) (CleaningReport, error) {
	report := CleaningReport{
		StartTime: globaltime.UTC(),
		DryRun:    dryRun,
		Errors:    []string{},
	}

	resources, err := s.store.ListResources(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch resource snapshot: %w", err)
	}
	report.TotalResources = len(resources)

	groups := FindDuplicates(resources, globaltime.UTC())
	report.DuplicateGroups = len(groups)

	s.logger.Info().
		Int("resources", len(resources)).
		Int("duplicate_groups", len(groups)).
		Bool("dry_run", dryRun).
		Msg("duplicate detection completed")

	for _, group := range groups {
		s.mergeGroup(ctx, group, dryRun, &report)
	}

	report.EndTime = globaltime.UTC()
	return report, nil
}

// mergeGroup applies one group's merge. Failures are recorded on the report
// and abandon the group without touching its duplicates further.
func (s *Service) mergeGroup(ctx context.Context, group Group, dryRun bool, report *CleaningReport) {
	logger := s.logger.With().
		Str("canonical_id", group.CanonicalID).
		Str("reason", string(group.Reason)).
		Int("duplicates", len(group.DuplicateIDs)).
		Logger()

	if dryRun {
		logger.Info().Msg("dry-run: would merge duplicate group")
		report.MergedResources += len(group.DuplicateIDs)
		return
	}

	canonical, err := s.store.GetResource(ctx, group.CanonicalID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load canonical %s: %v", group.CanonicalID, err))
		return
	}
	if canonical == nil {
		// Raced with a concurrent deletion. Never delete duplicates when
		// the canonical target is unconfirmed.
		report.Errors = append(report.Errors, fmt.Sprintf("canonical resource not found: %s", group.CanonicalID))
		logger.Warn().Msg("canonical resource missing; skipping group")
		return
	}

	fields := make(map[string]any)
	for _, duplicateID := range group.DuplicateIDs {
		duplicate, err := s.store.GetResource(ctx, duplicateID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("load duplicate %s: %v", duplicateID, err))
			return
		}
		if duplicate == nil {
			continue
		}

		if longer(duplicate.Title, canonical.Title) {
			canonical.Title = duplicate.Title
			fields["title"] = *duplicate.Title
		}
		if longer(duplicate.Abstract, canonical.Abstract) {
			canonical.Abstract = duplicate.Abstract
			fields["abstract"] = *duplicate.Abstract
		}
		if longer(duplicate.Content, canonical.Content) {
			canonical.Content = duplicate.Content
			fields["content"] = *duplicate.Content
		}
		if longer(duplicate.AISummary, canonical.AISummary) {
			canonical.AISummary = duplicate.AISummary
			fields["ai_summary"] = *duplicate.AISummary
		}
	}

	if len(fields) > 0 {
		if err := s.store.UpdateResource(ctx, group.CanonicalID, fields); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("merge into %s: %v", group.CanonicalID, err))
			return
		}
		report.MergedResources++
	}

	updated, err := s.store.RepointRawData(ctx, group.DuplicateIDs, group.CanonicalID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("repoint raw data to %s: %v", group.CanonicalID, err))
		return
	}
	report.UpdatedRelations += updated

	deleted, err := s.store.DeleteResources(ctx, group.DuplicateIDs)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("delete duplicates of %s: %v", group.CanonicalID, err))
		return
	}
	report.DeletedResources += int(deleted)

	if err := s.appendAuditRecord(ctx, group); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("audit record for %s: %v", group.CanonicalID, err))
		return
	}

	logger.Info().
		Int64("relations_updated", updated).
		Int64("resources_deleted", deleted).
		Msg("duplicate group merged")
}

func (s *Service) appendAuditRecord(ctx context.Context, group Group) error {
	original, err := json.Marshal(map[string]any{"mergedIds": group.DuplicateIDs})
	if err != nil {
		return fmt.Errorf("marshal merged ids: %w", err)
	}

	return s.store.InsertDedupRecord(ctx, &db.DeduplicationRecord{
		ResourceID:    group.CanonicalID,
		DuplicateOfID: group.DuplicateIDs[0],
		Method:        string(group.Reason),
		Similarity:    group.Similarity,
		Decision:      "MERGED",
		OriginalData:  datatypes.JSON(original),
		ProcessedBy:   processedBy,
		CreatedAt:     globaltime.UTC(),
	})
}

// longer reports whether candidate is non-empty and strictly longer than
// current, or current is absent. "Most complete wins", per field.
func longer(candidate, current *string) bool {
	if candidate == nil || *candidate == "" {
		return false
	}
	if current == nil || *current == "" {
		return true
	}
	return utf8.RuneCountInString(*candidate) > utf8.RuneCountInString(*current)
}
