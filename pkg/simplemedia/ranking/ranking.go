// Package ranking orders catalog records for listing. Candidates always
// come from the catalog latest-first and every policy sorts stably, so
// equal keys keep that order.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	DefaultLimit         = 12
	MaxLimit             = 100
	DefaultFeaturedLimit = 5
)

// Engine implements simplemedia.Lister over a catalog.
type Engine struct {
	catalog simplemedia.Catalog
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source used for trending age.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a ranking engine over catalog.
func New(catalog simplemedia.Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	e := &Engine{
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var _ simplemedia.Lister = (*Engine)(nil)

// TrendingScore is (views + 2*likes) / sqrt(ageDays + 1). Records from the
// future count as age zero.
func TrendingScore(r *simplemedia.ContentRecord, now time.Time) float64 {
	ageDays := now.Sub(r.UploadTimestamp).Seconds() / 86400
	if ageDays < 0 {
		ageDays = 0
	}
	return float64(r.Views+2*r.Likes) / math.Sqrt(ageDays+1)
}

// Validate checks q and fills in the default sort.
func Validate(q simplemedia.ListQuery) (simplemedia.ListQuery, error) {
	if q.Page <= 0 {
		return q, fmt.Errorf("%w: page must be at least 1", simplemedia.ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return q, fmt.Errorf("%w: limit must be at least 1", simplemedia.ErrInvalidQuery)
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.Sort {
	case "":
		q.Sort = simplemedia.SortLatest
	case simplemedia.SortLatest, simplemedia.SortPopular, simplemedia.SortTrending:
	default:
		return q, fmt.Errorf("%w: unknown sort %q", simplemedia.ErrInvalidQuery, q.Sort)
	}
	return q, nil
}

// List returns one page of previews. An unknown category yields an empty page.
func (e *Engine) List(ctx context.Context, query simplemedia.ListQuery) (*simplemedia.PreviewPage, error) {
	q, err := Validate(query)
	if err != nil {
		return nil, err
	}

	records, err := e.catalog.List(ctx, simplemedia.ListFilter{Category: q.Category})
	if err != nil {
		return nil, err
	}

	Sort(records, q.Sort, e.now())
	return Paginate(records, q.Page, q.Limit), nil
}

// Sort orders records in place by policy. records must be latest-first.
func Sort(records []*simplemedia.ContentRecord, policy simplemedia.SortPolicy, now time.Time) {
	switch policy {
	case simplemedia.SortPopular:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Views > records[j].Views
		})
	case simplemedia.SortTrending:
		scores := make(map[*simplemedia.ContentRecord]float64, len(records))
		for _, r := range records {
			scores[r] = TrendingScore(r, now)
		}
		sort.SliceStable(records, func(i, j int) bool {
			return scores[records[i]] > scores[records[j]]
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].UploadTimestamp.After(records[j].UploadTimestamp)
		})
	}
}

// Paginate cuts the window [(page-1)*limit, page*limit) and projects it.
// Pages past the end yield an empty window, however large page is.
func Paginate(records []*simplemedia.ContentRecord, page, limit int) *simplemedia.PreviewPage {
	total := len(records)
	totalPages := (total + limit - 1) / limit

	start := total
	if page-1 < totalPages {
		start = (page - 1) * limit
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &simplemedia.PreviewPage{
		Videos: project(records[start:end]),
		Pagination: simplemedia.Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}
}

// Featured returns the most viewed and liked records.
func (e *Engine) Featured(ctx context.Context, limit int) ([]simplemedia.Preview, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	records, err := e.catalog.Featured(ctx, limit)
	if err != nil {
		return nil, err
	}
	return project(records), nil
}

// Search returns matching previews, latest first.
func (e *Engine) Search(ctx context.Context, query string) ([]simplemedia.Preview, error) {
	records, err := e.catalog.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return project(records), nil
}

func project(records []*simplemedia.ContentRecord) []simplemedia.Preview {
	previews := make([]simplemedia.Preview, 0, len(records))
	for _, r := range records {
		previews = append(previews, simplemedia.NewPreview(r))
	}
	return previews
}
