package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// AdminService provides catalog-wide reporting. It reads every record, so
// endpoints exposing it should sit behind operator authentication.
type AdminService interface {
	// GetStatistics returns aggregated statistics about the catalog.
	GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error)
}

// New creates a new AdminService over catalog.
func New(catalog simplemedia.Catalog) (AdminService, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	return &adminService{catalog: catalog, now: time.Now}, nil
}

type adminService struct {
	catalog simplemedia.Catalog
	now     func() time.Time
}

var _ AdminService = (*adminService)(nil)

// GetStatistics returns aggregated statistics about the catalog
func (s *adminService) GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error) {
	records, err := s.catalog.List(ctx, simplemedia.ListFilter{
		Category:   req.Filters.Category,
		UploaderID: req.Filters.UploaderID,
	})
	if err != nil {
		return nil, err
	}

	opts := req.Options
	stats := ContentStatistics{}
	if opts.IncludeStatusBreakdown {
		stats.ByStatus = map[string]int64{}
	}
	if opts.IncludeCategoryBreakdown {
		stats.ByCategory = map[string]int64{}
	}
	if opts.IncludeProcessingBreakdown {
		stats.ByProcessingType = map[string]int64{}
		stats.ByQuality = map[string]int64{}
	}

	for _, r := range records {
		if !req.Filters.matches(r) {
			continue
		}
		stats.TotalCount++
		stats.TotalViews += r.Views
		stats.TotalLikes += r.Likes
		stats.TotalBytes += r.FileSizeBytes
		stats.TotalDurationSeconds += r.DurationSeconds

		if stats.ByStatus != nil {
			stats.ByStatus[string(r.Status)]++
		}
		if stats.ByCategory != nil {
			stats.ByCategory[r.Category]++
		}
		if stats.ByProcessingType != nil {
			stats.ByProcessingType[string(r.ProcessingType)]++
			stats.ByQuality[string(r.Quality)]++
		}
		if opts.IncludeTimeRange {
			ts := r.UploadTimestamp
			if stats.OldestContent == nil || ts.Before(*stats.OldestContent) {
				stats.OldestContent = &ts
			}
			if stats.NewestContent == nil || ts.After(*stats.NewestContent) {
				stats.NewestContent = &ts
			}
		}
	}

	return &StatisticsResponse{
		Statistics: stats,
		ComputedAt: s.now().UTC(),
	}, nil
}
