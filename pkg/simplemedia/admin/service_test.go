package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
)

var base = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func put(t *testing.T, catalog *memory.Catalog, id, category string, pt simplemedia.ProcessingType, views, likes int64, age time.Duration) {
	t.Helper()
	require.NoError(t, catalog.Put(context.Background(), &simplemedia.ContentRecord{
		ID:              id,
		Title:           id,
		Category:        category,
		UploaderID:      "user-" + category,
		UploadTimestamp: base.Add(-age),
		ProcessingType:  pt,
		Quality:         simplemedia.QualityMedium,
		DurationSeconds: 10,
		FileSizeBytes:   1000,
		Views:           views,
		Likes:           likes,
		Status:          simplemedia.StatusAvailable,
	}))
}

func setupAdmin(t *testing.T) (AdminService, *memory.Catalog) {
	t.Helper()
	catalog := memory.New()
	put(t, catalog, "a", "music", simplemedia.ProcessingStreaming, 10, 1, 0)
	put(t, catalog, "b", "music", simplemedia.ProcessingConvert, 5, 0, 24*time.Hour)
	put(t, catalog, "c", "news", simplemedia.ProcessingStreaming, 1, 2, 48*time.Hour)

	svc, err := New(catalog)
	require.NoError(t, err)
	return svc, catalog
}

func TestGetStatistics_AllBreakdowns(t *testing.T) {
	svc, _ := setupAdmin(t)

	resp, err := svc.GetStatistics(context.Background(), StatisticsRequest{Options: DefaultStatisticsOptions()})
	require.NoError(t, err)

	stats := resp.Statistics
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(16), stats.TotalViews)
	assert.Equal(t, int64(3), stats.TotalLikes)
	assert.Equal(t, int64(3000), stats.TotalBytes)
	assert.Equal(t, 30.0, stats.TotalDurationSeconds)
	assert.Equal(t, map[string]int64{"music": 2, "news": 1}, stats.ByCategory)
	assert.Equal(t, map[string]int64{"streaming": 2, "convert": 1}, stats.ByProcessingType)
	assert.Equal(t, map[string]int64{"available": 3}, stats.ByStatus)
	require.NotNil(t, stats.OldestContent)
	require.NotNil(t, stats.NewestContent)
	assert.True(t, stats.OldestContent.Equal(base.Add(-48*time.Hour)))
	assert.True(t, stats.NewestContent.Equal(base))
	assert.False(t, resp.ComputedAt.IsZero())
}

func TestGetStatistics_CategoryAgreesWithAggregate(t *testing.T) {
	svc, catalog := setupAdmin(t)

	resp, err := svc.GetStatistics(context.Background(), StatisticsRequest{Options: DefaultStatisticsOptions()})
	require.NoError(t, err)

	aggregate, err := catalog.Categories(context.Background())
	require.NoError(t, err)
	for category, n := range aggregate {
		assert.Equal(t, int64(n), resp.Statistics.ByCategory[category], category)
	}
}

func TestGetStatistics_Filters(t *testing.T) {
	svc, _ := setupAdmin(t)
	ctx := context.Background()

	convert := simplemedia.ProcessingConvert
	resp, err := svc.GetStatistics(ctx, StatisticsRequest{Filters: ContentFilters{ProcessingType: &convert}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Statistics.TotalCount)
	assert.Nil(t, resp.Statistics.ByCategory)
	assert.Nil(t, resp.Statistics.OldestContent)

	resp, err = svc.GetStatistics(ctx, StatisticsRequest{Filters: ContentFilters{Category: "music"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Statistics.TotalCount)

	after := base.Add(-36 * time.Hour)
	resp, err = svc.GetStatistics(ctx, StatisticsRequest{Filters: ContentFilters{UploadedAfter: &after}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Statistics.TotalCount)

	failed := simplemedia.StatusFailed
	resp, err = svc.GetStatistics(ctx, StatisticsRequest{Filters: ContentFilters{Status: &failed}})
	require.NoError(t, err)
	assert.Zero(t, resp.Statistics.TotalCount)
}

func TestNew_RequiresCatalog(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
