package admin

import (
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ContentStatistics provides aggregated statistics about the catalog
type ContentStatistics struct {
	TotalCount           int64            `json:"total_count"`
	TotalViews           int64            `json:"total_views"`
	TotalLikes           int64            `json:"total_likes"`
	TotalBytes           int64            `json:"total_bytes"`
	TotalDurationSeconds float64          `json:"total_duration_seconds"`
	ByStatus             map[string]int64 `json:"by_status,omitempty"`
	ByCategory           map[string]int64 `json:"by_category,omitempty"`
	ByProcessingType     map[string]int64 `json:"by_processing_type,omitempty"`
	ByQuality            map[string]int64 `json:"by_quality,omitempty"`
	OldestContent        *time.Time       `json:"oldest_content,omitempty"`
	NewestContent        *time.Time       `json:"newest_content,omitempty"`
}

// ContentFilters narrows the records statistics are computed over
type ContentFilters struct {
	Category       string                      `json:"category,omitempty"`
	UploaderID     string                      `json:"uploader_id,omitempty"`
	Status         *simplemedia.Status         `json:"status,omitempty"`
	ProcessingType *simplemedia.ProcessingType `json:"processing_type,omitempty"`
	UploadedAfter  *time.Time                  `json:"uploaded_after,omitempty"`
	UploadedBefore *time.Time                  `json:"uploaded_before,omitempty"`
}

func (f ContentFilters) matches(r *simplemedia.ContentRecord) bool {
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.ProcessingType != nil && r.ProcessingType != *f.ProcessingType {
		return false
	}
	if f.UploadedAfter != nil && !r.UploadTimestamp.After(*f.UploadedAfter) {
		return false
	}
	if f.UploadedBefore != nil && !r.UploadTimestamp.Before(*f.UploadedBefore) {
		return false
	}
	return true
}

// StatisticsOptions defines what statistics to compute
type StatisticsOptions struct {
	IncludeStatusBreakdown     bool `json:"include_status_breakdown"`
	IncludeCategoryBreakdown   bool `json:"include_category_breakdown"`
	IncludeProcessingBreakdown bool `json:"include_processing_breakdown"`
	IncludeTimeRange           bool `json:"include_time_range"`
}

// DefaultStatisticsOptions returns statistics options with all breakdowns enabled
func DefaultStatisticsOptions() StatisticsOptions {
	return StatisticsOptions{
		IncludeStatusBreakdown:     true,
		IncludeCategoryBreakdown:   true,
		IncludeProcessingBreakdown: true,
		IncludeTimeRange:           true,
	}
}

// StatisticsRequest requests aggregated statistics
type StatisticsRequest struct {
	Filters ContentFilters    `json:"filters"`
	Options StatisticsOptions `json:"options"`
}

// StatisticsResponse carries the computed statistics
type StatisticsResponse struct {
	Statistics ContentStatistics `json:"statistics"`
	ComputedAt time.Time         `json:"computed_at"`
}
