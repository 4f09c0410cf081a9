package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Catalog implements simplemedia.Catalog using in-memory storage.
// A single lock covers records and category counts, so readers never see
// an aggregate that disagrees with the records.
type Catalog struct {
	mu         sync.RWMutex
	records    map[string]*simplemedia.ContentRecord
	categories map[string]int
	now        func() time.Time
}

// New creates a new in-memory catalog
func New() *Catalog {
	return &Catalog{
		records:    make(map[string]*simplemedia.ContentRecord),
		categories: make(map[string]int),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ simplemedia.Catalog = (*Catalog)(nil)

func (c *Catalog) Put(ctx context.Context, record *simplemedia.ContentRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recordCopy := record.Clone()
	recordCopy.Category = simplemedia.NormalizeCategory(recordCopy.Category)

	if prev, exists := c.records[record.ID]; exists {
		c.decrement(prev.Category)
	}
	c.records[record.ID] = recordCopy
	c.categories[recordCopy.Category]++
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*simplemedia.ContentRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, exists := c.records[id]
	if !exists {
		return nil, simplemedia.ErrContentNotFound
	}
	return record.Clone(), nil
}

func (c *Catalog) List(ctx context.Context, filter simplemedia.ListFilter) ([]*simplemedia.ContentRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*simplemedia.ContentRecord, 0, len(c.records))
	for _, record := range c.records {
		if filter.Category != "" && record.Category != filter.Category {
			continue
		}
		if filter.UploaderID != "" && record.UploaderID != filter.UploaderID {
			continue
		}
		result = append(result, record.Clone())
	}
	sortNewestFirst(result)
	return result, nil
}

func (c *Catalog) Update(ctx context.Context, id string, patch simplemedia.ContentPatch) (*simplemedia.ContentRecord, error) {
	if err := simplemedia.ValidatePatch(patch); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	record, exists := c.records[id]
	if !exists {
		return nil, simplemedia.ErrContentNotFound
	}

	updated := record.Clone()
	simplemedia.ApplyPatch(updated, patch, c.now())
	if updated.Category != record.Category {
		c.decrement(record.Category)
		c.categories[updated.Category]++
	}
	c.records[id] = updated
	return updated.Clone(), nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, exists := c.records[id]
	if !exists {
		return nil
	}
	delete(c.records, id)
	c.decrement(record.Category)
	return nil
}

func (c *Catalog) IncrementViews(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record, exists := c.records[id]; exists {
		record.Views++
		record.LastUpdated = c.now()
	}
	return nil
}

func (c *Catalog) IncrementLikes(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record, exists := c.records[id]; exists {
		record.Likes++
		record.LastUpdated = c.now()
	}
	return nil
}

func (c *Catalog) Categories(ctx context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]int, len(c.categories))
	for category, count := range c.categories {
		snapshot[category] = count
	}
	return snapshot, nil
}

func (c *Catalog) Search(ctx context.Context, query string) ([]*simplemedia.ContentRecord, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, simplemedia.ErrInvalidQuery
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*simplemedia.ContentRecord
	for _, record := range c.records {
		if strings.Contains(strings.ToLower(record.Title), q) ||
			strings.Contains(strings.ToLower(record.Description), q) {
			result = append(result, record.Clone())
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (c *Catalog) Featured(ctx context.Context, limit int) ([]*simplemedia.ContentRecord, error) {
	if limit <= 0 {
		return nil, simplemedia.ErrInvalidQuery
	}

	records, err := c.List(ctx, simplemedia.ListFilter{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Views+records[i].Likes > records[j].Views+records[j].Likes
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// decrement lowers a category count, never below zero. Empty categories
// are dropped from the aggregate.
func (c *Catalog) decrement(category string) {
	if c.categories[category] <= 1 {
		delete(c.categories, category)
		return
	}
	c.categories[category]--
}

// sortNewestFirst orders by upload time, ties broken by id for a stable order.
func sortNewestFirst(records []*simplemedia.ContentRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadTimestamp.Equal(records[j].UploadTimestamp) {
			return records[i].UploadTimestamp.After(records[j].UploadTimestamp)
		}
		return records[i].ID < records[j].ID
	})
}
