package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tidepool.dev/curator/internal/db"
)

// Gorm is the production Store backed by the shared database pool.
type Gorm struct {
	pool *db.Pool
}

func NewGorm(pool *db.Pool) *Gorm {
	return &Gorm{pool: pool}
}

func (s *Gorm) gdb(ctx context.Context) *gorm.DB {
	return s.pool.GORM().WithContext(ctx)
}

func (s *Gorm) ListResources(ctx context.Context) ([]db.Resource, error) {
	var resources []db.Resource
	if err := s.gdb(ctx).Order("created_at ASC, resource_id ASC").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

func (s *Gorm) GetResource(ctx context.Context, id string) (*db.Resource, error) {
	var resource db.Resource
	err := s.gdb(ctx).First(&resource, "resource_id = ?", id).Error
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get resource %s: %w", id, err)
	}
	return &resource, nil
}

func (s *Gorm) CreateResource(ctx context.Context, resource *db.Resource) error {
	if err := s.gdb(ctx).Create(resource).Error; err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

func (s *Gorm) UpdateResource(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.gdb(ctx).Model(&db.Resource{}).Where("resource_id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update resource %s: %w", id, res.Error)
	}
	return nil
}

func (s *Gorm) DeleteResources(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.gdb(ctx).Where("resource_id IN ?", ids).Delete(&db.Resource{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete resources: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Gorm) CountResources(ctx context.Context) (int64, error) {
	var count int64
	if err := s.gdb(ctx).Model(&db.Resource{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

func (s *Gorm) FindResourceByExternalID(ctx context.Context, externalID string) (*db.Resource, error) {
	if externalID == "" {
		return nil, nil
	}
	var resource db.Resource
	err := s.gdb(ctx).
		Where("external_id = ? OR source_url LIKE ?", externalID, "%"+externalID+"%").
		Order("created_at ASC, resource_id ASC").
		First(&resource).Error
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find resource by external id %s: %w", externalID, err)
	}
	return &resource, nil
}

func (s *Gorm) FindResourceByURLFragment(ctx context.Context, fragment string) (*db.Resource, error) {
	if fragment == "" {
		return nil, nil
	}
	var resource db.Resource
	err := s.gdb(ctx).
		Where("source_url LIKE ?", "%"+fragment+"%").
		Order("created_at ASC, resource_id ASC").
		First(&resource).Error
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find resource by url fragment %q: %w", fragment, err)
	}
	return &resource, nil
}

func (s *Gorm) SetResourceRawData(ctx context.Context, resourceID, rawDataID string) error {
	res := s.gdb(ctx).Model(&db.Resource{}).
		Where("resource_id = ?", resourceID).
		Update("raw_data_id", rawDataID)
	if res.Error != nil {
		return fmt.Errorf("set resource %s raw_data_id: %w", resourceID, res.Error)
	}
	return nil
}

func (s *Gorm) ListOrphanRawData(ctx context.Context) ([]db.RawData, error) {
	var records []db.RawData
	err := s.gdb(ctx).
		Where("resource_id IS NULL").
		Order("created_at DESC, raw_data_id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list orphan raw data: %w", err)
	}
	return records, nil
}

func (s *Gorm) GetRawData(ctx context.Context, id string) (*db.RawData, error) {
	var record db.RawData
	err := s.gdb(ctx).First(&record, "raw_data_id = ?", id).Error
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get raw data %s: %w", id, err)
	}
	return &record, nil
}

func (s *Gorm) LinkRawData(ctx context.Context, rawDataID, resourceID string) error {
	res := s.gdb(ctx).Model(&db.RawData{}).
		Where("raw_data_id = ?", rawDataID).
		Update("resource_id", resourceID)
	if res.Error != nil {
		return fmt.Errorf("link raw data %s: %w", rawDataID, res.Error)
	}
	return nil
}

func (s *Gorm) RepointRawData(ctx context.Context, fromResourceIDs []string, toResourceID string) (int64, error) {
	if len(fromResourceIDs) == 0 {
		return 0, nil
	}
	res := s.gdb(ctx).Model(&db.RawData{}).
		Where("resource_id IN ?", fromResourceIDs).
		Update("resource_id", toResourceID)
	if res.Error != nil {
		return 0, fmt.Errorf("repoint raw data to %s: %w", toResourceID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Gorm) CountRawData(ctx context.Context) (int64, error) {
	var count int64
	if err := s.gdb(ctx).Model(&db.RawData{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count raw data: %w", err)
	}
	return count, nil
}

func (s *Gorm) CountLinkedRawData(ctx context.Context) (int64, error) {
	var count int64
	err := s.gdb(ctx).Model(&db.RawData{}).
		Where("resource_id IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count linked raw data: %w", err)
	}
	return count, nil
}

func (s *Gorm) ListResourcesWithRawData(ctx context.Context) ([]db.Resource, error) {
	var resources []db.Resource
	err := s.gdb(ctx).
		Where("raw_data_id IS NOT NULL").
		Order("created_at ASC, resource_id ASC").
		Find(&resources).Error
	if err != nil {
		return nil, fmt.Errorf("list resources with raw data: %w", err)
	}
	return resources, nil
}

func (s *Gorm) CountResourcesWithRawData(ctx context.Context) (int64, error) {
	var count int64
	err := s.gdb(ctx).Model(&db.Resource{}).
		Where("raw_data_id IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count resources with raw data: %w", err)
	}
	return count, nil
}

func (s *Gorm) CountResourcesBySource(ctx context.Context) (map[string]int64, error) {
	return s.countResourcesGrouped(ctx, "source")
}

func (s *Gorm) CountResourcesByType(ctx context.Context) (map[string]int64, error) {
	return s.countResourcesGrouped(ctx, "resource_type")
}

func (s *Gorm) countResourcesGrouped(ctx context.Context, column string) (map[string]int64, error) {
	type groupCount struct {
		Key   string
		Count int64
	}
	var rows []groupCount
	err := s.gdb(ctx).Model(&db.Resource{}).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count resources by %s: %w", column, err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

func (s *Gorm) InsertDedupRecord(ctx context.Context, record *db.DeduplicationRecord) error {
	if err := s.gdb(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert deduplication record: %w", err)
	}
	return nil
}
