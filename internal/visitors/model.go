package visitors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// Unknown fills any field the beacon or geolocation could not supply.
	Unknown = "Unknown"

	defaultPage     = "/"
	topCountryLimit = 5
)

// ErrUnknownPeriod indicates a period name outside daily, weekly, monthly and all.
var ErrUnknownPeriod = errors.New("visitors: unknown period")

// Event is a single tracked page view. Rows are immutable.
type Event struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	IP        string    `gorm:"column:ip;type:text;not null" json:"ip"`
	Country   string    `gorm:"column:country;type:text;not null" json:"country"`
	City      string    `gorm:"column:city;type:text;not null" json:"city"`
	Device    string    `gorm:"column:device;type:text;not null" json:"device"`
	Browser   string    `gorm:"column:browser;type:text;not null" json:"browser"`
	Page      string    `gorm:"column:page;type:text;not null" json:"page"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_visitors_created" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "visitors"
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

func ParsePeriod(raw string) (Period, error) {
	switch period := Period(strings.ToLower(strings.TrimSpace(raw))); period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAll:
		return period, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, raw)
	}
}

// Since returns the inclusive lower bound of the period relative to now.
// The second result is false for PeriodAll, which has no bound.
func (p Period) Since(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodDaily:
		return now.Add(-24 * time.Hour), true
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour), true
	case PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// Bucket is one row of a group-by-count breakdown.
type Bucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type Stats struct {
	Period         Period   `json:"period"`
	Total          int64    `json:"total"`
	UniqueVisitors int64    `json:"unique_visitors"`
	Devices        []Bucket `json:"devices"`
	Browsers       []Bucket `json:"browsers"`
	TopCountries   []Bucket `json:"top_countries"`
}

// sortBuckets orders by count descending, then label ascending.
func sortBuckets(buckets []Bucket) []Bucket {
	if buckets == nil {
		return []Bucket{}
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})
	return buckets
}

func topBuckets(buckets []Bucket, limit int) []Bucket {
	sorted := sortBuckets(buckets)
	if len(sorted) > limit {
		return sorted[:limit]
	}
	return sorted
}

func orUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Unknown
	}
	return trimmed
}
