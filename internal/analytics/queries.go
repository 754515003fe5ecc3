package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pariz/gountries"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"linkpage/internal/events"
	"linkpage/internal/pkg/referrers"
	"linkpage/internal/timeframe"
)

// UnknownCountry labels views without a resolved country.
const UnknownCountry = "Unknown"

var countries = gountries.New()

// CountViews counts the user's profile views, optionally only those at or after since.
func CountViews(db *gorm.DB, userID uint, since *time.Time) (int64, error) {
	var count int64
	query := db.Model(&events.ProfileView{}).Where("user_id = ?", userID)
	if since != nil {
		query = query.Where("viewed_at >= ?", since.UTC())
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count profile views: %w", err)
	}
	return count, nil
}

// CountClicks counts clicks on any of the user's links, optionally only those at or after since.
func CountClicks(db *gorm.DB, userID uint, since *time.Time) (int64, error) {
	var count int64
	query := db.Table("link_clicks").
		Joins("JOIN links ON links.id = link_clicks.link_id").
		Where("links.user_id = ?", userID)
	if since != nil {
		query = query.Where("link_clicks.clicked_at >= ?", since.UTC())
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count link clicks: %w", err)
	}
	return count, nil
}

// GetTopLinks ranks all of the user's links by recorded clicks.
func GetTopLinks(db *gorm.DB, userID uint, limit int) ([]TopLink, error) {
	result := []TopLink{}
	query := `
		SELECT links.id, links.title, links.url, COUNT(link_clicks.id) AS clicks
		FROM links
		LEFT JOIN link_clicks ON link_clicks.link_id = links.id
		WHERE links.user_id = ?
		GROUP BY links.id, links.title, links.url, links.position
		ORDER BY clicks DESC, links.position ASC, links.id ASC
		LIMIT ?`
	if err := db.Raw(query, userID, limit).Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to query top links: %w", err)
	}
	if result == nil {
		result = []TopLink{}
	}
	return result, nil
}

// GetDailyViews groups the user's views in tf by UTC day.
func GetDailyViews(db *gorm.DB, userID uint, tf *timeframe.TimeFrame) ([]timeframe.DateStat, error) {
	day := timeframe.GetSQLiteGroupByExpression("viewed_at")
	var stats []timeframe.DateStat
	err := db.Model(&events.ProfileView{}).
		Select(day+" AS date, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Where(day+" >= ?", tf.FirstDay()).
		Group("date").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query daily views: %w", err)
	}
	return stats, nil
}

// GetDailyClicks groups clicks on the user's links in tf by UTC day.
func GetDailyClicks(db *gorm.DB, userID uint, tf *timeframe.TimeFrame) ([]timeframe.DateStat, error) {
	day := timeframe.GetSQLiteGroupByExpression("link_clicks.clicked_at")
	var stats []timeframe.DateStat
	err := db.Table("link_clicks").
		Select(day+" AS date, COUNT(*) AS count").
		Joins("JOIN links ON links.id = link_clicks.link_id").
		Where("links.user_id = ?", userID).
		Where(day+" >= ?", tf.FirstDay()).
		Group("date").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query daily clicks: %w", err)
	}
	return stats, nil
}

// GetDeviceBreakdown buckets the user's views by device type. Values other
// than mobile, desktop and tablet, including null, count as unknown.
func GetDeviceBreakdown(db *gorm.DB, userID uint) (DeviceBreakdown, error) {
	var rows []MetricCountResult
	err := db.Model(&events.ProfileView{}).
		Select("LOWER(COALESCE(device_type, '')) AS name, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("name").
		Scan(&rows).Error
	if err != nil {
		return DeviceBreakdown{}, fmt.Errorf("failed to query device breakdown: %w", err)
	}
	return buildDeviceBreakdown(rows), nil
}

func buildDeviceBreakdown(rows []MetricCountResult) DeviceBreakdown {
	counts := map[string]int64{}
	for _, row := range rows {
		name := strings.ToLower(strings.TrimSpace(row.Name))
		if !lo.Contains(events.DeviceTypes, name) {
			name = "unknown"
		}
		counts[name] += row.Count
	}

	total := lo.SumBy(rows, func(row MetricCountResult) int64 { return row.Count })
	stat := func(name string) DeviceStat {
		return DeviceStat{Count: counts[name], Percentage: percentage(counts[name], total)}
	}

	return DeviceBreakdown{
		Mobile:  stat("mobile"),
		Desktop: stat("desktop"),
		Tablet:  stat("tablet"),
		Unknown: stat("unknown"),
	}
}

// GetTopReferrers groups the user's views by referrer display name.
func GetTopReferrers(db *gorm.DB, userID uint, limit int) ([]MetricCountResult, error) {
	var rows []MetricCountResult
	err := db.Model(&events.ProfileView{}).
		Select("COALESCE(referrer, '') AS name, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query referrers: %w", err)
	}
	return convertReferrerStats(rows, limit), nil
}

// convertReferrerStats maps raw referrers to display names, merging
// entries that share a name, and keeps the top limit.
func convertReferrerStats(rows []MetricCountResult, limit int) []MetricCountResult {
	grouped := lo.GroupBy(rows, func(row MetricCountResult) string {
		return referrers.Label(row.Name)
	})
	merged := lo.MapToSlice(grouped, func(name string, items []MetricCountResult) MetricCountResult {
		return MetricCountResult{
			Name:  name,
			Count: lo.SumBy(items, func(item MetricCountResult) int64 { return item.Count }),
		}
	})
	return topN(merged, limit)
}

// GetTopCountries groups the user's views by country name.
func GetTopCountries(db *gorm.DB, userID uint, limit int) ([]MetricCountResult, error) {
	var rows []MetricCountResult
	err := db.Model(&events.ProfileView{}).
		Select("UPPER(COALESCE(country, '')) AS name, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	return convertCountryStats(rows, limit), nil
}

func convertCountryStats(rows []MetricCountResult, limit int) []MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	named := lo.Map(rows, func(row MetricCountResult, _ int) MetricCountResult {
		return MetricCountResult{Name: CountryName(row.Name, caser), Count: row.Count}
	})
	return topN(named, limit)
}

// CountryName turns an ISO alpha-2 code into its common English name.
func CountryName(code string, caser cases.Caser) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return UnknownCountry
	}
	country, err := countries.FindCountryByAlpha(code)
	if err != nil {
		return caser.String(code)
	}
	return country.Name.Common
}

// topN sorts by count descending then name, and keeps the first limit.
func topN(items []MetricCountResult, limit int) []MetricCountResult {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		return []MetricCountResult{}
	}
	return items
}
