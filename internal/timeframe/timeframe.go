package timeframe

import (
	"fmt"
	"time"
)

// DayFormat is the Go layout matching SQLite's '%Y-%m-%d'.
const DayFormat = "2006-01-02"

type DateStat struct {
	Date  string
	Count int
}

// TimeProvider supplies the reference instant for trailing windows.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock in UTC.
type DefaultTimeProvider struct{}

// Now returns the current time in UTC.
func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// TimeFrame is a run of whole UTC calendar days ending today.
type TimeFrame struct {
	From time.Time
	To   time.Time
	Days int
}

// LastNDays returns the frame covering today and the days-1 days before it.
func LastNDays(now time.Time, days int) (*TimeFrame, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return &TimeFrame{
		From: today.AddDate(0, 0, -(days - 1)),
		To:   now,
		Days: days,
	}, nil
}

// TrailingWindowStart returns the instant days*24h before now. Unlike a
// TimeFrame it is not aligned to midnight.
func TrailingWindowStart(now time.Time, days int) time.Time {
	return now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// FirstDay is the key of the oldest day in the frame.
func (tf *TimeFrame) FirstDay() string {
	return tf.From.Format(DayFormat)
}

// GetSQLiteGroupByExpression buckets column into UTC days.
func GetSQLiteGroupByExpression(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

// GenerateDayKeys lists every day of the frame, oldest first.
func (tf *TimeFrame) GenerateDayKeys() []string {
	keys := make([]string, 0, tf.Days)
	for i := 0; i < tf.Days; i++ {
		keys = append(keys, tf.From.AddDate(0, 0, i).Format(DayFormat))
	}
	return keys
}

// BuildTimeSeriesPoints returns one point per day of the frame, taking counts
// from groupedResults and filling the gaps with zero. Results outside the
// frame are ignored.
func (tf *TimeFrame) BuildTimeSeriesPoints(groupedResults []DateStat) []DateStat {
	resultsMap := make(map[string]int, len(groupedResults))
	for _, result := range groupedResults {
		resultsMap[normalizeDBDateFormat(result.Date)] += result.Count
	}

	keys := tf.GenerateDayKeys()
	points := make([]DateStat, len(keys))
	for i, key := range keys {
		points[i] = DateStat{Date: key, Count: resultsMap[key]}
	}
	return points
}

func normalizeDBDateFormat(dateStr string) string {
	if len(dateStr) >= len(DayFormat) {
		return dateStr[:len(DayFormat)]
	}
	return dateStr
}
