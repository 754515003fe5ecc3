package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/analytics"
	"linkpage/internal/events"
	"linkpage/internal/pkg/async"
	"linkpage/internal/testsupport"
)

func TestGetSummaryEmpty(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	user := testsupport.CreateTestUser(db, "quiet")
	now := time.Now().UTC()

	summary, err := analytics.GetSummary(context.Background(), db, async.NewPool(4), user.ID, now)
	require.NoError(t, err)

	assert.Equal(t, int64(0), summary.TotalViews)
	assert.Equal(t, int64(0), summary.ViewsLast30Days)
	assert.Equal(t, int64(0), summary.TotalClicks)
	assert.Equal(t, int64(0), summary.ClicksLast30Days)
	assert.Equal(t, 0.0, summary.ClickThroughRate)
	assert.Empty(t, summary.TopLinks)
	assert.NotNil(t, summary.TopLinks)
	assert.Empty(t, summary.TopReferrers)
	assert.Empty(t, summary.TopCountries)
	assert.Equal(t, analytics.DeviceBreakdown{}, summary.DeviceBreakdown)

	require.Len(t, summary.DailyStats, analytics.SummaryDays)
	assert.Equal(t, now.Format("2006-01-02"), summary.DailyStats[analytics.SummaryDays-1].Date)
	assert.Equal(t, now.AddDate(0, 0, -29).Format("2006-01-02"), summary.DailyStats[0].Date)
	for _, day := range summary.DailyStats {
		assert.Zero(t, day.Views)
		assert.Zero(t, day.Clicks)
	}
}

func TestGetSummary(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	now := time.Now().UTC()

	user := testsupport.CreateTestUser(db, "busy")
	other := testsupport.CreateTestUser(db, "other")

	first := testsupport.CreateTestLink(db, user.ID, "First", "https://1.example", 0)
	second := testsupport.CreateTestLink(db, user.ID, "Second", "https://2.example", 1)
	third := testsupport.CreateTestLink(db, user.ID, "Third", "https://3.example", 2)
	foreign := testsupport.CreateTestLink(db, other.ID, "Foreign", "https://f.example", 0)

	views := []events.ProfileView{
		{UserID: user.ID, ViewedAt: now.Add(-time.Hour), DeviceType: lo.ToPtr("mobile"), Referrer: lo.ToPtr("https://instagram.com/a"), Country: lo.ToPtr("US")},
		{UserID: user.ID, ViewedAt: now.Add(-48 * time.Hour), DeviceType: lo.ToPtr("MOBILE"), Referrer: lo.ToPtr("https://www.instagram.com/b"), Country: lo.ToPtr("us")},
		{UserID: user.ID, ViewedAt: now.Add(-72 * time.Hour), DeviceType: lo.ToPtr("desktop"), Country: lo.ToPtr("DE")},
		{UserID: user.ID, ViewedAt: now.Add(-40 * 24 * time.Hour), DeviceType: lo.ToPtr("tablet"), Referrer: lo.ToPtr("https://t.co/x")},
		{UserID: user.ID, ViewedAt: now.Add(-10 * 24 * time.Hour), Country: lo.ToPtr("ZZ")},
		{UserID: other.ID, ViewedAt: now.Add(-time.Hour), DeviceType: lo.ToPtr("desktop")},
	}
	for _, view := range views {
		testsupport.CreateProfileView(db, view)
	}

	testsupport.CreateLinkClickAt(db, second.ID, now.Add(-time.Hour))
	testsupport.CreateLinkClickAt(db, second.ID, now.Add(-time.Hour))
	testsupport.CreateLinkClickAt(db, second.ID, now.Add(-35*24*time.Hour))
	testsupport.CreateLinkClickAt(db, first.ID, now.Add(-5*24*time.Hour))
	testsupport.CreateLinkClickAt(db, foreign.ID, now.Add(-time.Hour))

	summary, err := analytics.GetSummary(context.Background(), db, async.NewPool(3), user.ID, now)
	require.NoError(t, err)

	t.Run("totals", func(t *testing.T) {
		assert.Equal(t, int64(5), summary.TotalViews)
		assert.Equal(t, int64(4), summary.ViewsLast30Days)
		assert.Equal(t, int64(4), summary.TotalClicks)
		assert.Equal(t, int64(3), summary.ClicksLast30Days)
		assert.Equal(t, 80.0, summary.ClickThroughRate)
	})

	t.Run("top links", func(t *testing.T) {
		assert.Equal(t, []analytics.TopLink{
			{ID: second.ID, Title: "Second", URL: "https://2.example", Clicks: 3},
			{ID: first.ID, Title: "First", URL: "https://1.example", Clicks: 1},
			{ID: third.ID, Title: "Third", URL: "https://3.example", Clicks: 0},
		}, summary.TopLinks)
	})

	t.Run("daily stats", func(t *testing.T) {
		require.Len(t, summary.DailyStats, analytics.SummaryDays)

		byDate := lo.KeyBy(summary.DailyStats, func(d analytics.DailyStat) string { return d.Date })
		assert.Equal(t, 4, lo.SumBy(summary.DailyStats, func(d analytics.DailyStat) int { return d.Views }))
		assert.Equal(t, 3, lo.SumBy(summary.DailyStats, func(d analytics.DailyStat) int { return d.Clicks }))

		key := now.Add(-72 * time.Hour).Format("2006-01-02")
		assert.GreaterOrEqual(t, byDate[key].Views, 1)
		key = now.Add(-5 * 24 * time.Hour).Format("2006-01-02")
		assert.Equal(t, 1, byDate[key].Clicks)

		for i := 1; i < len(summary.DailyStats); i++ {
			assert.Less(t, summary.DailyStats[i-1].Date, summary.DailyStats[i].Date)
		}
	})

	t.Run("device breakdown", func(t *testing.T) {
		assert.Equal(t, analytics.DeviceBreakdown{
			Mobile:  analytics.DeviceStat{Count: 2, Percentage: 40},
			Desktop: analytics.DeviceStat{Count: 1, Percentage: 20},
			Tablet:  analytics.DeviceStat{Count: 1, Percentage: 20},
			Unknown: analytics.DeviceStat{Count: 1, Percentage: 20},
		}, summary.DeviceBreakdown)
	})

	t.Run("top referrers", func(t *testing.T) {
		assert.Equal(t, []analytics.MetricCountResult{
			{Name: "Direct / Unknown", Count: 2},
			{Name: "Instagram", Count: 2},
			{Name: "X/Twitter", Count: 1},
		}, summary.TopReferrers)
	})

	t.Run("top countries", func(t *testing.T) {
		assert.Equal(t, []analytics.MetricCountResult{
			{Name: "United States", Count: 2},
			{Name: "Germany", Count: 1},
			{Name: "Unknown", Count: 1},
			{Name: "ZZ", Count: 1},
		}, summary.TopCountries)
	})
}

func TestClickThroughRateRounding(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	now := time.Now().UTC()

	user := testsupport.CreateTestUser(db, "ratio")
	link := testsupport.CreateTestLink(db, user.ID, "Only", "https://only.example", 0)
	for i := 0; i < 3; i++ {
		testsupport.CreateProfileView(db, events.ProfileView{UserID: user.ID, ViewedAt: now.Add(-time.Minute)})
	}
	for i := 0; i < 7; i++ {
		testsupport.CreateLinkClickAt(db, link.ID, now.Add(-time.Minute))
	}

	summary, err := analytics.GetSummary(context.Background(), db, async.NewPool(2), user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 233.33, summary.ClickThroughRate, "clicks may exceed views")
	assert.Equal(t, 100.0, summary.DeviceBreakdown.Unknown.Percentage)
}

func TestTopLinksLimit(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	user := testsupport.CreateTestUser(db, "many")

	for i := 0; i < 7; i++ {
		testsupport.CreateTestLink(db, user.ID, "Link", "https://l.example", i)
	}

	top, err := analytics.GetTopLinks(db, user.ID, analytics.TopLimit)
	require.NoError(t, err)
	require.Len(t, top, analytics.TopLimit)
	for _, link := range top {
		assert.Zero(t, link.Clicks)
	}
}

func TestGetSummaryCancelled(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	user := testsupport.CreateTestUser(db, "cancel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analytics.GetSummary(ctx, db, async.NewPool(2), user.ID, time.Now())
	assert.Error(t, err)
}
