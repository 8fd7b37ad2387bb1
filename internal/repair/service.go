package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
	"tidepool.dev/curator/internal/globaltime"
	"tidepool.dev/curator/internal/normalize"
	"tidepool.dev/curator/internal/store"
	payloadschema "tidepool.dev/curator/schema"
)

const skipReasonNoURL = "No valid URL"

// SourceStats breaks linked/created counts down for one source.
type SourceStats struct {
	Linked  int `json:"linked"`
	Created int `json:"created"`
}

// FixStats is the run report of one relation repair pass.
type FixStats struct {
	StartTime   time.Time              `json:"start_time"`
	EndTime     time.Time              `json:"end_time"`
	DryRun      bool                   `json:"dry_run"`
	Total       int                    `json:"total"`
	Linked      int                    `json:"linked"`
	Created     int                    `json:"created"`
	Skipped     int                    `json:"skipped"`
	ErrorCount  int                    `json:"error_count"`
	BySource    map[string]SourceStats `json:"by_source"`
	SkipReasons map[string]int         `json:"skip_reasons"`
	Errors      []string               `json:"errors"`
}

// Service links orphaned raw ingestion records back to catalog resources,
// creating resources for payloads that match nothing.
type Service struct {
	store         store.Store
	logger        zerolog.Logger
	progressEvery int
}

func NewService(s store.Store, logger zerolog.Logger, progressEvery int) *Service {
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &Service{
		store:         s,
		logger:        logger,
		progressEvery: progressEvery,
	}
}

// Run processes every orphaned raw record. The only fatal error is failing
// the orphan query itself; per-record failures are captured in the stats.
func (s *Service) Run(ctx context.Context, dryRun bool) (FixStats, error) {
	stats := FixStats{
		StartTime:   globaltime.UTC(),
		DryRun:      dryRun,
		BySource:    make(map[string]SourceStats),
		SkipReasons: make(map[string]int),
		Errors:      []string{},
	}

	orphans, err := s.store.ListOrphanRawData(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch orphan raw data: %w", err)
	}
	stats.Total = len(orphans)

	s.logger.Info().
		Int("orphans", len(orphans)).
		Bool("dry_run", dryRun).
		Msg("relation repair started")

	for i, record := range orphans {
		if err := s.processRecord(ctx, record, dryRun, &stats); err != nil {
			stats.ErrorCount++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", record.ID, err))
			s.logger.Warn().Err(err).Str("raw_data_id", record.ID).Msg("repair failed for record")
		}
		if (i+1)%s.progressEvery == 0 {
			s.logger.Info().Int("processed", i+1).Int("total", len(orphans)).Msg("repair progress")
		}
	}

	stats.EndTime = globaltime.UTC()
	s.logger.Info().
		Int("linked", stats.Linked).
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("errors", stats.ErrorCount).
		Msg("relation repair completed")
	return stats, nil
}

func (s *Service) processRecord(ctx context.Context, record db.RawData, dryRun bool, stats *FixStats) error {
	// Advisory only: malformed payloads still go through the lenient
	// extraction below, which errors if the JSON itself is unreadable.
	if err := payloadschema.ValidateRawPayload(json.RawMessage(record.Data)); err != nil {
		s.logger.Warn().Err(err).Str("raw_data_id", record.ID).Str("source", record.Source).Msg("payload failed schema validation")
	}

	info, err := extractResourceInfo(record)
	if err != nil {
		return err
	}

	if info.SourceURL == "" {
		stats.Skipped++
		stats.SkipReasons[skipReasonNoURL]++
		return nil
	}

	existing, err := s.findExisting(ctx, record, info)
	if err != nil {
		return err
	}

	if existing != nil {
		if !dryRun {
			if err := s.store.LinkRawData(ctx, record.ID, existing.ID); err != nil {
				return fmt.Errorf("link raw data: %w", err)
			}
			// First writer wins on the resource side: an existing
			// back-pointer is never overwritten.
			if existing.RawDataID == nil {
				if err := s.store.SetResourceRawData(ctx, existing.ID, record.ID); err != nil {
					return fmt.Errorf("set back-pointer: %w", err)
				}
			}
		}
		stats.Linked++
		bumpSource(stats, record.Source, func(c *SourceStats) { c.Linked++ })
		return nil
	}

	if !dryRun {
		resource, err := s.createResource(ctx, record, info)
		if err != nil {
			return fmt.Errorf("create resource: %w", err)
		}
		if err := s.store.LinkRawData(ctx, record.ID, resource.ID); err != nil {
			return fmt.Errorf("link raw data to new resource: %w", err)
		}
	}
	stats.Created++
	bumpSource(stats, record.Source, func(c *SourceStats) { c.Created++ })
	return nil
}

// findExisting tries the external id first, then falls back to matching the
// last path segment of the normalized derived URL. The segment match is a
// containment heuristic and can false-positive on short generic segments.
func (s *Service) findExisting(ctx context.Context, record db.RawData, info resourceInfo) (*db.Resource, error) {
	if record.ExternalID != nil && *record.ExternalID != "" {
		resource, err := s.store.FindResourceByExternalID(ctx, *record.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("match by external id: %w", err)
		}
		if resource != nil {
			return resource, nil
		}
	}

	fragment := normalize.LastPathSegment(normalize.URL(info.SourceURL))
	if fragment == "" {
		return nil, nil
	}
	resource, err := s.store.FindResourceByURLFragment(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("match by url fragment: %w", err)
	}
	return resource, nil
}

func (s *Service) createResource(ctx context.Context, record db.RawData, info resourceInfo) (*db.Resource, error) {
	now := globaltime.UTC()
	resource := &db.Resource{
		ID:          uuid.NewString(),
		Type:        inferResourceType(record.Source),
		Title:       &info.Title,
		Abstract:    info.Abstract,
		SourceURL:   &info.SourceURL,
		Source:      record.Source,
		ExternalID:  record.ExternalID,
		PublishedAt: info.PublishedAt,
		RawDataID:   &record.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(info.Authors) > 0 {
		encoded, err := json.Marshal(info.Authors)
		if err != nil {
			return nil, fmt.Errorf("encode authors: %w", err)
		}
		resource.Authors = datatypes.JSON(encoded)
	}
	if err := s.store.CreateResource(ctx, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func bumpSource(stats *FixStats, source string, apply func(*SourceStats)) {
	counts := stats.BySource[source]
	apply(&counts)
	stats.BySource[source] = counts
}
