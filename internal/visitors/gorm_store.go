package visitors

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"gorm.io/gorm"
)

var errMissingExecutor = errors.New("visitors: database executor is required")

type GormStore struct {
	executor *database.Executor
	clock    func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(executor *database.Executor, clock func() time.Time) (*GormStore, error) {
	if executor == nil {
		return nil, errMissingExecutor
	}
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{executor: executor, clock: clock}, nil
}

func (s *GormStore) Insert(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock().UTC()
	}
	return s.executor.Execute(ctx, func(tx *gorm.DB) error {
		event.ID = 0
		return tx.Create(event).Error
	})
}

func (s *GormStore) Stats(ctx context.Context, period Period) (Stats, error) {
	since, bounded := period.Since(s.clock().UTC())
	stats := Stats{Period: period}

	err := s.executor.Execute(ctx, func(tx *gorm.DB) error {
		scoped := func() *gorm.DB {
			query := tx.Model(&Event{})
			if bounded {
				query = query.Where("created_at >= ?", since)
			}
			return query
		}

		if err := scoped().Count(&stats.Total).Error; err != nil {
			return err
		}
		if err := scoped().Distinct("ip").Count(&stats.UniqueVisitors).Error; err != nil {
			return err
		}

		var err error
		if stats.Devices, err = groupCounts(scoped(), "device"); err != nil {
			return err
		}
		if stats.Browsers, err = groupCounts(scoped(), "browser"); err != nil {
			return err
		}
		stats.TopCountries, err = groupCounts(scoped(), "country")
		return err
	})
	if err != nil {
		return Stats{}, err
	}

	stats.Devices = sortBuckets(stats.Devices)
	stats.Browsers = sortBuckets(stats.Browsers)
	stats.TopCountries = topBuckets(stats.TopCountries, topCountryLimit)
	return stats, nil
}

func (s *GormStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.executor.Execute(ctx, func(tx *gorm.DB) error {
		result := tx.Where("created_at < ?", cutoff.UTC()).Delete(&Event{})
		removed = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// column is always one of the fixed names above, never caller input.
func groupCounts(query *gorm.DB, column string) ([]Bucket, error) {
	var buckets []Bucket
	err := query.
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Order("count DESC, label ASC").
		Scan(&buckets).Error
	return buckets, err
}
