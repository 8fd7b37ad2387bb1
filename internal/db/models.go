package db

import (
	"time"

	"gorm.io/datatypes"
)

// ResourceType classifies catalog entries by origin kind.
type ResourceType string

const (
	ResourceTypePaper   ResourceType = "PAPER"
	ResourceTypeProject ResourceType = "PROJECT"
	ResourceTypeNews    ResourceType = "NEWS"
	ResourceTypeVideo   ResourceType = "YOUTUBE_VIDEO"
	ResourceTypeBlog    ResourceType = "BLOG"
	ResourceTypeRSS     ResourceType = "RSS"
)

// Resource maps catalog.resources, the canonical catalog entity.
type Resource struct {
	ID            string          `gorm:"column:resource_id;type:uuid;primaryKey"`
	Type          ResourceType    `gorm:"column:resource_type;type:text;not null;default:BLOG"`
	Title         *string         `gorm:"column:title;type:text"`
	Abstract      *string         `gorm:"column:abstract;type:text"`
	Content       *string         `gorm:"column:content;type:text"`
	AISummary     *string         `gorm:"column:ai_summary;type:text"`
	SourceURL     *string         `gorm:"column:source_url;type:text"`
	Source        string          `gorm:"column:source;type:text;not null;default:''"`
	ExternalID    *string         `gorm:"column:external_id;type:text"`
	Authors       datatypes.JSON  `gorm:"column:authors;type:jsonb"`
	PublishedAt   *time.Time      `gorm:"column:published_at;type:timestamptz"`
	CitationCount *int            `gorm:"column:citation_count;type:integer"`
	RawDataID     *string         `gorm:"column:raw_data_id;type:uuid;unique"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Resource) TableName() string { return "catalog.resources" }

// RawData maps catalog.raw_data, the payload captured at ingestion time.
type RawData struct {
	ID         string          `gorm:"column:raw_data_id;type:uuid;primaryKey"`
	Source     string          `gorm:"column:source;type:text;not null"`
	ExternalID *string         `gorm:"column:external_id;type:text"`
	Data       datatypes.JSON  `gorm:"column:data;type:jsonb;not null"`
	ResourceID *string         `gorm:"column:resource_id;type:uuid"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawData) TableName() string { return "catalog.raw_data" }

// DeduplicationRecord maps catalog.deduplication_records.
// Append-only audit trail; the engine never mutates or deletes rows here.
type DeduplicationRecord struct {
	ID            int64          `gorm:"column:dedup_record_id;primaryKey;autoIncrement"`
	ResourceID    string         `gorm:"column:resource_id;type:uuid;not null"`
	DuplicateOfID string         `gorm:"column:duplicate_of_id;type:uuid;not null"`
	Method        string         `gorm:"column:method;type:text;not null"`
	Similarity    float64        `gorm:"column:similarity;type:double precision;not null"`
	Decision      string         `gorm:"column:decision;type:text;not null"`
	URLHash       string         `gorm:"column:url_hash;type:text;not null;default:''"`
	OriginalData  datatypes.JSON `gorm:"column:original_data;type:jsonb"`
	ProcessedBy   string         `gorm:"column:processed_by;type:text;not null;default:''"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DeduplicationRecord) TableName() string { return "catalog.deduplication_records" }

func autoMigrateModels() []any {
	return []any{
		&Resource{},
		&RawData{},
		&DeduplicationRecord{},
	}
}
