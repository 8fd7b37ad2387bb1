package store

import (
	"context"

	"tidepool.dev/curator/internal/db"
)

// Store is the record-store contract the reconciliation engine runs against.
// Lookup methods return (nil, nil) when no record matches; a non-nil error
// always means the store itself failed.
type Store interface {
	// Resources.
	ListResources(ctx context.Context) ([]db.Resource, error)
	GetResource(ctx context.Context, id string) (*db.Resource, error)
	CreateResource(ctx context.Context, resource *db.Resource) error
	UpdateResource(ctx context.Context, id string, fields map[string]any) error
	DeleteResources(ctx context.Context, ids []string) (int64, error)
	CountResources(ctx context.Context) (int64, error)

	// Matching used by relation repair.
	FindResourceByExternalID(ctx context.Context, externalID string) (*db.Resource, error)
	FindResourceByURLFragment(ctx context.Context, fragment string) (*db.Resource, error)
	SetResourceRawData(ctx context.Context, resourceID, rawDataID string) error

	// Raw ingestion records.
	ListOrphanRawData(ctx context.Context) ([]db.RawData, error)
	GetRawData(ctx context.Context, id string) (*db.RawData, error)
	LinkRawData(ctx context.Context, rawDataID, resourceID string) error
	RepointRawData(ctx context.Context, fromResourceIDs []string, toResourceID string) (int64, error)
	CountRawData(ctx context.Context) (int64, error)
	CountLinkedRawData(ctx context.Context) (int64, error)

	// Verification and stats.
	ListResourcesWithRawData(ctx context.Context) ([]db.Resource, error)
	CountResourcesWithRawData(ctx context.Context) (int64, error)
	CountResourcesBySource(ctx context.Context) (map[string]int64, error)
	CountResourcesByType(ctx context.Context) (map[string]int64, error)

	// Audit trail. Append-only.
	InsertDedupRecord(ctx context.Context, record *db.DeduplicationRecord) error
}
