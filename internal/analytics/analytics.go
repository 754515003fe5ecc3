package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"linkpage/internal/pkg/async"
	"linkpage/internal/timeframe"
)

const (
	// SummaryDays is the length of the trailing window and of the daily series.
	SummaryDays = 30
	// TopLimit caps the top links, referrers and countries lists.
	TopLimit = 5
)

// MetricCountResult is a named count, used by the top-N breakdowns.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type TopLink struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Clicks int64  `json:"clicks"`
}

type DailyStat struct {
	Date   string `json:"date"`
	Views  int    `json:"views"`
	Clicks int    `json:"clicks"`
}

type DeviceStat struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type DeviceBreakdown struct {
	Mobile  DeviceStat `json:"mobile"`
	Desktop DeviceStat `json:"desktop"`
	Tablet  DeviceStat `json:"tablet"`
	Unknown DeviceStat `json:"unknown"`
}

// Summary is the analytics report for one user.
type Summary struct {
	TotalViews       int64               `json:"totalViews"`
	ViewsLast30Days  int64               `json:"viewsLast30Days"`
	TotalClicks      int64               `json:"totalClicks"`
	ClicksLast30Days int64               `json:"clicksLast30Days"`
	ClickThroughRate float64             `json:"clickThroughRate"`
	TopLinks         []TopLink           `json:"topLinks"`
	DailyStats       []DailyStat         `json:"dailyStats"`
	DeviceBreakdown  DeviceBreakdown     `json:"deviceBreakdown"`
	TopReferrers     []MetricCountResult `json:"topReferrers"`
	TopCountries     []MetricCountResult `json:"topCountries"`
}

// roundTo2 rounds half away from zero to two decimals.
func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentage returns part/total*100 rounded to two decimals, or 0 when total is 0.
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return roundTo2(float64(part) / float64(total) * 100)
}

// GetSummary computes the report for userID as of now. The independent
// queries run on pool; the first failure fails the whole summary.
func GetSummary(ctx context.Context, db *gorm.DB, pool *async.Pool, userID uint, now time.Time) (*Summary, error) {
	now = now.UTC()
	tf, err := timeframe.LastNDays(now, SummaryDays)
	if err != nil {
		return nil, err
	}
	since := timeframe.TrailingWindowStart(now, SummaryDays)
	db = db.WithContext(ctx)

	tasks := []async.Task{
		{Name: "totalViews", Execute: func(ctx context.Context) (any, error) { return CountViews(db, userID, nil) }},
		{Name: "viewsLast30Days", Execute: func(ctx context.Context) (any, error) { return CountViews(db, userID, &since) }},
		{Name: "totalClicks", Execute: func(ctx context.Context) (any, error) { return CountClicks(db, userID, nil) }},
		{Name: "clicksLast30Days", Execute: func(ctx context.Context) (any, error) { return CountClicks(db, userID, &since) }},
		{Name: "topLinks", Execute: func(ctx context.Context) (any, error) { return GetTopLinks(db, userID, TopLimit) }},
		{Name: "dailyViews", Execute: func(ctx context.Context) (any, error) { return GetDailyViews(db, userID, tf) }},
		{Name: "dailyClicks", Execute: func(ctx context.Context) (any, error) { return GetDailyClicks(db, userID, tf) }},
		{Name: "devices", Execute: func(ctx context.Context) (any, error) { return GetDeviceBreakdown(db, userID) }},
		{Name: "referrers", Execute: func(ctx context.Context) (any, error) { return GetTopReferrers(db, userID, TopLimit) }},
		{Name: "countries", Execute: func(ctx context.Context) (any, error) { return GetTopCountries(db, userID, TopLimit) }},
	}

	results := pool.Execute(ctx, tasks)
	if err := async.FirstError(results); err != nil {
		return nil, fmt.Errorf("failed to build analytics summary for user %d: %w", userID, err)
	}

	summary := &Summary{
		TotalViews:       results["totalViews"].Data.(int64),
		ViewsLast30Days:  results["viewsLast30Days"].Data.(int64),
		TotalClicks:      results["totalClicks"].Data.(int64),
		ClicksLast30Days: results["clicksLast30Days"].Data.(int64),
		TopLinks:         results["topLinks"].Data.([]TopLink),
		DeviceBreakdown:  results["devices"].Data.(DeviceBreakdown),
		TopReferrers:     results["referrers"].Data.([]MetricCountResult),
		TopCountries:     results["countries"].Data.([]MetricCountResult),
	}
	summary.ClickThroughRate = percentage(summary.TotalClicks, summary.TotalViews)
	summary.DailyStats = MergeDailyStats(tf,
		results["dailyViews"].Data.([]timeframe.DateStat),
		results["dailyClicks"].Data.([]timeframe.DateStat))

	return summary, nil
}

// MergeDailyStats zero-fills views and clicks over the frame and zips them.
func MergeDailyStats(tf *timeframe.TimeFrame, views, clicks []timeframe.DateStat) []DailyStat {
	viewPoints := tf.BuildTimeSeriesPoints(views)
	clickPoints := tf.BuildTimeSeriesPoints(clicks)

	stats := make([]DailyStat, len(viewPoints))
	for i, point := range viewPoints {
		stats[i] = DailyStat{
			Date:   point.Date,
			Views:  point.Count,
			Clicks: clickPoints[i].Count,
		}
	}
	return stats
}
