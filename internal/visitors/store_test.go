package visitors

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"go.uber.org/zap"
)

var referenceNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestGormStore(testContext *testing.T) *GormStore {
	testContext.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(testContext.TempDir(), "visitors.db"),
	}, zap.NewNop(), &Event{})
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	executor, err := database.NewExecutor(database.ExecutorConfig{Database: db, MaxAttempts: 1})
	if err != nil {
		testContext.Fatalf("failed to build executor: %v", err)
	}
	testContext.Cleanup(func() {
		_ = executor.Close()
	})
	store, err := NewGormStore(executor, func() time.Time { return referenceNow })
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	return store
}

func seedEvents() []Event {
	hoursAgo := func(hours int) time.Time {
		return referenceNow.Add(-time.Duration(hours) * time.Hour)
	}
	return []Event{
		{IP: "203.0.113.1", Country: "Indonesia", City: "Jakarta", Device: "Mobile", Browser: "Chrome", Page: "/", CreatedAt: hoursAgo(1)},
		{IP: "203.0.113.1", Country: "Indonesia", City: "Jakarta", Device: "Mobile", Browser: "Chrome", Page: "/projects", CreatedAt: hoursAgo(2)},
		{IP: "203.0.113.2", Country: "Japan", City: "Tokyo", Device: "Desktop", Browser: "Firefox", Page: "/", CreatedAt: hoursAgo(5)},
		{IP: "203.0.113.3", Country: "Brazil", City: "Recife", Device: "Desktop", Browser: "Safari", Page: "/", CreatedAt: hoursAgo(30)},
		{IP: "203.0.113.4", Country: "Chile", City: "Santiago", Device: "Tablet", Browser: "Chrome", Page: "/", CreatedAt: hoursAgo(24 * 10)},
		{IP: "203.0.113.5", Country: "Kenya", City: "Nairobi", Device: "Desktop", Browser: "Edge", Page: "/", CreatedAt: hoursAgo(24 * 20)},
		{IP: "203.0.113.6", Country: "Austria", City: "Vienna", Device: "Desktop", Browser: "Chrome", Page: "/", CreatedAt: hoursAgo(24 * 60)},
	}
}

func storesUnderTest(testContext *testing.T) map[string]Store {
	return map[string]Store{
		"gorm":   newTestGormStore(testContext),
		"memory": NewMemoryStore(func() time.Time { return referenceNow }),
	}
}

func TestStoreStatsPerPeriod(testContext *testing.T) {
	for name, store := range storesUnderTest(testContext) {
		testContext.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, event := range seedEvents() {
				event := event
				if err := store.Insert(ctx, &event); err != nil {
					t.Fatalf("insert failed: %v", err)
				}
			}

			daily, err := store.Stats(ctx, PeriodDaily)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if daily.Total != 3 || daily.UniqueVisitors != 2 {
				t.Fatalf("unexpected daily totals: %+v", daily)
			}
			if len(daily.Devices) != 2 || daily.Devices[0] != (Bucket{Label: "Mobile", Count: 2}) {
				t.Fatalf("unexpected daily devices: %+v", daily.Devices)
			}

			weekly, err := store.Stats(ctx, PeriodWeekly)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if weekly.Total != 4 || weekly.UniqueVisitors != 3 {
				t.Fatalf("unexpected weekly totals: %+v", weekly)
			}

			monthly, err := store.Stats(ctx, PeriodMonthly)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if monthly.Total != 6 {
				t.Fatalf("unexpected monthly total: %d", monthly.Total)
			}

			all, err := store.Stats(ctx, PeriodAll)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if all.Total != 7 || all.UniqueVisitors != 6 {
				t.Fatalf("unexpected all-time totals: %+v", all)
			}
			if len(all.TopCountries) != 5 {
				t.Fatalf("expected top countries truncated to 5, got %d", len(all.TopCountries))
			}
			expectedCountries := []string{"Indonesia", "Austria", "Brazil", "Chile", "Japan"}
			for index, label := range expectedCountries {
				if all.TopCountries[index].Label != label {
					t.Fatalf("country %d: expected %s, got %+v", index, label, all.TopCountries)
				}
			}
			expectedBrowsers := []Bucket{
				{Label: "Chrome", Count: 4},
				{Label: "Edge", Count: 1},
				{Label: "Firefox", Count: 1},
				{Label: "Safari", Count: 1},
			}
			if len(all.Browsers) != len(expectedBrowsers) {
				t.Fatalf("unexpected browsers: %+v", all.Browsers)
			}
			for index, bucket := range expectedBrowsers {
				if all.Browsers[index] != bucket {
					t.Fatalf("browser %d: expected %+v, got %+v", index, bucket, all.Browsers[index])
				}
			}
		})
	}
}

func TestStoreStatsOnEmptyStore(testContext *testing.T) {
	for name, store := range storesUnderTest(testContext) {
		testContext.Run(name, func(t *testing.T) {
			stats, err := store.Stats(context.Background(), PeriodAll)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if stats.Total != 0 || stats.UniqueVisitors != 0 {
				t.Fatalf("expected zero totals, got %+v", stats)
			}
			if stats.Devices == nil || stats.Browsers == nil || stats.TopCountries == nil {
				t.Fatalf("expected empty, non-nil breakdowns")
			}
		})
	}
}

func TestStorePurgeBefore(testContext *testing.T) {
	for name, store := range storesUnderTest(testContext) {
		testContext.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, event := range seedEvents() {
				event := event
				if err := store.Insert(ctx, &event); err != nil {
					t.Fatalf("insert failed: %v", err)
				}
			}

			removed, err := store.PurgeBefore(ctx, referenceNow.AddDate(0, 0, -15))
			if err != nil {
				t.Fatalf("purge failed: %v", err)
			}
			if removed != 2 {
				t.Fatalf("expected 2 purged events, got %d", removed)
			}
			all, err := store.Stats(ctx, PeriodAll)
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if all.Total != 5 {
				t.Fatalf("expected 5 remaining events, got %d", all.Total)
			}
		})
	}
}
