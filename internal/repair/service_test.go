package repair

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"tidepool.dev/curator/internal/db"
	"tidepool.dev/curator/internal/store"
)

func newTestService(mem *store.Memory) *Service {
	return NewService(mem, zerolog.Nop(), 100)
}

func TestRunCreatesResourceForUnmatchedGithubRecord(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	extID := "octocat/widgets"
	mem.AddRawData(db.RawData{
		ID:         "raw-1",
		Source:     "github",
		ExternalID: &extID,
		Data:       datatypes.JSON(`{"full_name": "octocat/widgets", "html_url": "https://github.com/octocat/widgets", "owner": {"login": "octocat"}}`),
	})

	stats, err := newTestService(mem).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Created != 1 || stats.Linked != 0 || stats.Skipped != 0 || stats.ErrorCount != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.BySource["github"].Created != 1 {
		t.Fatalf("per-source breakdown missing creation: %+v", stats.BySource)
	}

	resources, _ := mem.ListResources(context.Background())
	if len(resources) != 1 {
		t.Fatalf("expected 1 created resource, got %d", len(resources))
	}
	created := resources[0]
	if created.Type != db.ResourceTypeProject {
		t.Fatalf("github records should create PROJECT resources, got %q", created.Type)
	}
	if created.RawDataID == nil || *created.RawDataID != "raw-1" {
		t.Fatalf("created resource should point back at raw data, got %v", created.RawDataID)
	}
	raw, _ := mem.GetRawData(context.Background(), "raw-1")
	if raw.ResourceID == nil || *raw.ResourceID != created.ID {
		t.Fatalf("raw data should point at the new resource, got %v", raw.ResourceID)
	}
}

func TestRunSkipsRecordWithoutURL(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddRawData(db.RawData{ID: "raw-empty", Source: "newsletter", Data: datatypes.JSON(`{"title": "no links here"}`)})

	stats, err := newTestService(mem).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected 1 skip, got %+v", stats)
	}
	if stats.SkipReasons[skipReasonNoURL] != 1 {
		t.Fatalf("skip reason missing: %+v", stats.SkipReasons)
	}
	if count, _ := mem.CountResources(context.Background()); count != 0 {
		t.Fatalf("skipped records must not create resources, got %d", count)
	}
}

func TestRunLinksByExternalIDAndSetsBackPointer(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	extID := "2601.00001"
	mem.AddResource(db.Resource{
		ID:         "existing",
		Source:     "arxiv",
		ExternalID: &extID,
		SourceURL:  strPtr("https://arxiv.org/abs/2601.00001"),
	})
	mem.AddRawData(db.RawData{
		ID:         "raw-arxiv",
		Source:     "arxiv",
		ExternalID: &extID,
		Data:       datatypes.JSON(`{"title": "Scaling Laws Revisited"}`),
	})

	stats, err := newTestService(mem).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Linked != 1 || stats.Created != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	raw, _ := mem.GetRawData(context.Background(), "raw-arxiv")
	if raw.ResourceID == nil || *raw.ResourceID != "existing" {
		t.Fatalf("raw data should link to the existing resource, got %v", raw.ResourceID)
	}
	resource, _ := mem.GetResource(context.Background(), "existing")
	if resource.RawDataID == nil || *resource.RawDataID != "raw-arxiv" {
		t.Fatalf("back-pointer should be set, got %v", resource.RawDataID)
	}
}

func TestRunNeverOverwritesExistingBackPointer(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	extID := "item-9"
	firstRaw := "raw-first"
	mem.AddResource(db.Resource{
		ID:         "owned",
		Source:     "rss",
		ExternalID: &extID,
		SourceURL:  strPtr("https://blog.example.com/item-9"),
		RawDataID:  &firstRaw,
	})
	mem.AddRawData(db.RawData{
		ID:         "raw-second",
		Source:     "rss",
		ExternalID: &extID,
		Data:       datatypes.JSON(`{"title": "Item Nine", "link": "https://blog.example.com/item-9"}`),
	})

	if _, err := newTestService(mem).Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	resource, _ := mem.GetResource(context.Background(), "owned")
	if resource.RawDataID == nil || *resource.RawDataID != "raw-first" {
		t.Fatalf("existing back-pointer was overwritten: %v", resource.RawDataID)
	}
	raw, _ := mem.GetRawData(context.Background(), "raw-second")
	if raw.ResourceID == nil || *raw.ResourceID != "owned" {
		t.Fatalf("forward pointer should still be set, got %v", raw.ResourceID)
	}
}

func TestRunMatchesByURLFragment(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddResource(db.Resource{
		ID:        "fragment-match",
		Source:    "blog",
		SourceURL: strPtr("https://mirror.example.net/posts/deep-dive-42"),
	})
	// No external id: the fallback match is the URL's last path segment.
	mem.AddRawData(db.RawData{
		ID:     "raw-frag",
		Source: "blog",
		Data:   datatypes.JSON(`{"title": "Deep Dive", "link": "https://blog.example.com/deep-dive-42"}`),
	})

	stats, err := newTestService(mem).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Linked != 1 {
		t.Fatalf("fragment match should link, got %+v", stats)
	}
	raw, _ := mem.GetRawData(context.Background(), "raw-frag")
	if raw.ResourceID == nil || *raw.ResourceID != "fragment-match" {
		t.Fatalf("unexpected link target %v", raw.ResourceID)
	}
}

func TestRunDryRunCountsWithoutMutating(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddRawData(db.RawData{
		ID:     "raw-dry",
		Source: "hackernews",
		Data:   datatypes.JSON(`{"title": "Show HN", "url": "https://example.com/show"}`),
	})

	stats, err := newTestService(mem).Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !stats.DryRun || stats.Created != 1 {
		t.Fatalf("dry run should count the would-be creation: %+v", stats)
	}
	if count, _ := mem.CountResources(context.Background()); count != 0 {
		t.Fatalf("dry run created resources")
	}
	raw, _ := mem.GetRawData(context.Background(), "raw-dry")
	if raw.ResourceID != nil {
		t.Fatalf("dry run linked raw data")
	}
}

func TestRunBadPayloadIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddRawData(db.RawData{ID: "raw-bad", Source: "arxiv", Data: datatypes.JSON(`{not json`)})
	mem.AddRawData(db.RawData{
		ID:     "raw-good",
		Source: "hackernews",
		Data:   datatypes.JSON(`{"title": "Still Works", "url": "https://example.com/still-works"}`),
	})

	stats, err := newTestService(mem).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("one bad record must not abort the run: %v", err)
	}
	if stats.ErrorCount != 1 || len(stats.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %+v", stats)
	}
	if stats.Created != 1 {
		t.Fatalf("the good record should still process: %+v", stats)
	}
}

func TestVerifyCleanAfterRepair(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddRawData(db.RawData{
		ID:     "raw-v",
		Source: "github",
		Data:   datatypes.JSON(`{"full_name": "octo/verif", "html_url": "https://github.com/octo/verif"}`),
	})

	svc := newTestService(mem)
	if _, err := svc.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	summary, err := svc.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(summary.Inconsistencies) != 0 {
		t.Fatalf("repaired dataset should verify clean: %+v", summary.Inconsistencies)
	}
	if summary.LinkedRawData != 1 || summary.TotalRawData != 1 {
		t.Fatalf("unexpected raw data counts: %+v", summary)
	}
	if summary.RawDataCoverage != 100 || summary.ResourceCoverage != 100 {
		t.Fatalf("unexpected coverage: %+v", summary)
	}
}

func TestVerifyReportsBrokenBackPointer(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	rawID := "raw-x"
	otherID := "someone-else"
	mem.AddResource(db.Resource{ID: "claimer", Source: "blog", RawDataID: &rawID})
	mem.AddRawData(db.RawData{ID: rawID, Source: "blog", ResourceID: &otherID, Data: datatypes.JSON(`{}`)})

	summary, err := newTestService(mem).Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(summary.Inconsistencies) != 1 {
		t.Fatalf("expected 1 inconsistency, got %+v", summary.Inconsistencies)
	}
	got := summary.Inconsistencies[0]
	if got.ResourceID != "claimer" || got.RawDataID != rawID {
		t.Fatalf("unexpected inconsistency: %+v", got)
	}
	if got.ActualResourceID == nil || *got.ActualResourceID != otherID {
		t.Fatalf("actual pointer should be reported: %+v", got)
	}
}

func TestVerifyCountsDuplicateURLGroups(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	mem.AddResource(db.Resource{ID: "a", SourceURL: strPtr("https://arxiv.org/abs/2601.00001")})
	mem.AddResource(db.Resource{ID: "b", SourceURL: strPtr("https://arxiv.org/pdf/2601.00001")})
	mem.AddResource(db.Resource{ID: "c", SourceURL: strPtr("https://example.com/unique")})

	summary, err := newTestService(mem).Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if summary.DuplicateURLGroups != 1 {
		t.Fatalf("expected 1 shared-URL group, got %d", summary.DuplicateURLGroups)
	}
}
