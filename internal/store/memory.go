package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tidepool.dev/curator/internal/db"
)

// Memory is an in-memory Store used by tests. It preserves insertion order
// for listing so canonical-selection tie-breaks are deterministic.
type Memory struct {
	mu           sync.Mutex
	resourceIDs  []string
	resources    map[string]db.Resource
	rawDataIDs   []string
	rawData      map[string]db.RawData
	dedupRecords []db.DeduplicationRecord
}

func NewMemory() *Memory {
	return &Memory{
		resources: make(map[string]db.Resource),
		rawData:   make(map[string]db.RawData),
	}
}

// AddResource seeds a resource, keeping insertion order.
func (m *Memory) AddResource(resource db.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.resources[resource.ID]; !exists {
		m.resourceIDs = append(m.resourceIDs, resource.ID)
	}
	m.resources[resource.ID] = resource
}

// AddRawData seeds a raw ingestion record, keeping insertion order.
func (m *Memory) AddRawData(record db.RawData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rawData[record.ID]; !exists {
		m.rawDataIDs = append(m.rawDataIDs, record.ID)
	}
	m.rawData[record.ID] = record
}

// DedupRecords returns a copy of the audit trail.
func (m *Memory) DedupRecords() []db.DeduplicationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.DeduplicationRecord, len(m.dedupRecords))
	copy(out, m.dedupRecords)
	return out
}

func (m *Memory) ListResources(_ context.Context) ([]db.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Resource, 0, len(m.resourceIDs))
	for _, id := range m.resourceIDs {
		if resource, ok := m.resources[id]; ok {
			out = append(out, resource)
		}
	}
	return out, nil
}

func (m *Memory) GetResource(_ context.Context, id string) (*db.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resource, ok := m.resources[id]
	if !ok {
		return nil, nil
	}
	copyResource := resource
	return &copyResource, nil
}

func (m *Memory) CreateResource(_ context.Context, resource *db.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.resources[resource.ID]; !exists {
		m.resourceIDs = append(m.resourceIDs, resource.ID)
	}
	m.resources[resource.ID] = *resource
	return nil
}

func (m *Memory) UpdateResource(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resource, ok := m.resources[id]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "title":
			resource.Title = stringFieldPtr(value)
		case "abstract":
			resource.Abstract = stringFieldPtr(value)
		case "content":
			resource.Content = stringFieldPtr(value)
		case "ai_summary":
			resource.AISummary = stringFieldPtr(value)
		case "source_url":
			resource.SourceURL = stringFieldPtr(value)
		}
	}
	m.resources[id] = resource
	return nil
}

func (m *Memory) DeleteResources(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := m.resources[id]; !ok {
			continue
		}
		delete(m.resources, id)
		deleted++
	}
	if deleted > 0 {
		kept := m.resourceIDs[:0]
		for _, id := range m.resourceIDs {
			if _, ok := m.resources[id]; ok {
				kept = append(kept, id)
			}
		}
		m.resourceIDs = kept
	}
	return deleted, nil
}

func (m *Memory) CountResources(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.resources)), nil
}

func (m *Memory) FindResourceByExternalID(_ context.Context, externalID string) (*db.Resource, error) {
	if externalID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.resourceIDs {
		resource, ok := m.resources[id]
		if !ok {
			continue
		}
		if resource.ExternalID != nil && *resource.ExternalID == externalID {
			copyResource := resource
			return &copyResource, nil
		}
		if resource.SourceURL != nil && strings.Contains(*resource.SourceURL, externalID) {
			copyResource := resource
			return &copyResource, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindResourceByURLFragment(_ context.Context, fragment string) (*db.Resource, error) {
	if fragment == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.resourceIDs {
		resource, ok := m.resources[id]
		if !ok {
			continue
		}
		if resource.SourceURL != nil && strings.Contains(*resource.SourceURL, fragment) {
			copyResource := resource
			return &copyResource, nil
		}
	}
	return nil, nil
}

func (m *Memory) SetResourceRawData(_ context.Context, resourceID, rawDataID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resource, ok := m.resources[resourceID]
	if !ok {
		return nil
	}
	rawDataIDCopy := rawDataID
	resource.RawDataID = &rawDataIDCopy
	m.resources[resourceID] = resource
	return nil
}

func (m *Memory) ListOrphanRawData(_ context.Context) ([]db.RawData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.RawData, 0, len(m.rawDataIDs))
	for _, id := range m.rawDataIDs {
		record, ok := m.rawData[id]
		if !ok || record.ResourceID != nil {
			continue
		}
		out = append(out, record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetRawData(_ context.Context, id string) (*db.RawData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rawData[id]
	if !ok {
		return nil, nil
	}
	copyRecord := record
	return &copyRecord, nil
}

func (m *Memory) LinkRawData(_ context.Context, rawDataID, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rawData[rawDataID]
	if !ok {
		return nil
	}
	resourceIDCopy := resourceID
	record.ResourceID = &resourceIDCopy
	m.rawData[rawDataID] = record
	return nil
}

func (m *Memory) RepointRawData(_ context.Context, fromResourceIDs []string, toResourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := make(map[string]struct{}, len(fromResourceIDs))
	for _, id := range fromResourceIDs {
		from[id] = struct{}{}
	}
	var updated int64
	for id, record := range m.rawData {
		if record.ResourceID == nil {
			continue
		}
		if _, ok := from[*record.ResourceID]; !ok {
			continue
		}
		toCopy := toResourceID
		record.ResourceID = &toCopy
		m.rawData[id] = record
		updated++
	}
	return updated, nil
}

func (m *Memory) CountRawData(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rawData)), nil
}

func (m *Memory) CountLinkedRawData(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, record := range m.rawData {
		if record.ResourceID != nil {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListResourcesWithRawData(_ context.Context) ([]db.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Resource, 0, len(m.resourceIDs))
	for _, id := range m.resourceIDs {
		resource, ok := m.resources[id]
		if !ok || resource.RawDataID == nil {
			continue
		}
		out = append(out, resource)
	}
	return out, nil
}

func (m *Memory) CountResourcesWithRawData(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, resource := range m.resources {
		if resource.RawDataID != nil {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountResourcesBySource(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, resource := range m.resources {
		counts[resource.Source]++
	}
	return counts, nil
}

func (m *Memory) CountResourcesByType(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, resource := range m.resources {
		counts[string(resource.Type)]++
	}
	return counts, nil
}

func (m *Memory) InsertDedupRecord(_ context.Context, record *db.DeduplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copyRecord := *record
	copyRecord.ID = int64(len(m.dedupRecords) + 1)
	m.dedupRecords = append(m.dedupRecords, copyRecord)
	return nil
}

func stringFieldPtr(value any) *string {
	switch v := value.(type) {
	case string:
		copyValue := v
		return &copyValue
	case *string:
		return v
	default:
		return nil
	}
}
