package contacts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"go.uber.org/zap"
)

type steppedClock struct {
	current time.Time
	step    time.Duration
}

func (c *steppedClock) Now() time.Time {
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

func newTestGormStore(testContext *testing.T, clock func() time.Time) *GormStore {
	testContext.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(testContext.TempDir(), "contacts.db"),
	}, zap.NewNop(), &Message{})
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
	store, err := NewGormStore(executor, clock)
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestGormStoreInsertAssignsIncreasingIDs(testContext *testing.T) {
	clock := &steppedClock{current: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC), step: time.Second}
	store := newTestGormStore(testContext, clock.Now)
	ctx := context.Background()

	first, err := store.Insert(ctx, "Ada", "ada@example.com", "Hello")
	if err != nil {
		testContext.Fatalf("insert failed: %v", err)
	}
	second, err := store.Insert(ctx, "Grace", "grace@example.com", "Hi there")
	if err != nil {
		testContext.Fatalf("insert failed: %v", err)
	}
	if first.ID <= 0 || second.ID <= first.ID {
		testContext.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)) {
		testContext.Fatalf("expected clock timestamp, got %s", first.CreatedAt)
	}
}

func TestGormStoreListOrdersNewestFirstWithIDTieBreak(testContext *testing.T) {
	fixed := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	store := newTestGormStore(testContext, func() time.Time { return fixed })
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.Insert(ctx, name, name+"@example.com", "body"); err != nil {
			testContext.Fatalf("insert failed: %v", err)
		}
	}

	messages, err := store.List(ctx, 10)
	if err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if len(messages) != 3 {
		testContext.Fatalf("expected 3 messages, got %d", len(messages))
	}
	expected := []string{"third", "second", "first"}
	for index, message := range messages {
		if message.Name != expected[index] {
			testContext.Fatalf("position %d: expected %s, got %s", index, expected[index], message.Name)
		}
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Name != "third" {
		testContext.Fatalf("unexpected limited listing: %+v", limited)
	}

	if _, err := store.List(ctx, 0); err != ErrInvalidLimit {
		testContext.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestGormStoreListPaginated(testContext *testing.T) {
	clock := &steppedClock{current: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC), step: time.Minute}
	store := newTestGormStore(testContext, clock.Now)
	ctx := context.Background()

	for index := 0; index < 12; index++ {
		if _, err := store.Insert(ctx, "sender", "sender@example.com", "note"); err != nil {
			testContext.Fatalf("insert failed: %v", err)
		}
	}

	testCases := []struct {
		name          string
		page          int
		expectedItems int
		hasPrevious   bool
		hasNext       bool
	}{
		{name: "first", page: 1, expectedItems: 5, hasPrevious: false, hasNext: true},
		{name: "middle", page: 2, expectedItems: 5, hasPrevious: true, hasNext: true},
		{name: "last", page: 3, expectedItems: 2, hasPrevious: true, hasNext: false},
		{name: "beyond-end", page: 4, expectedItems: 0, hasPrevious: true, hasNext: false},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(t *testing.T) {
			result, err := store.ListPaginated(ctx, testCase.page, 5)
			if err != nil {
				t.Fatalf("paginate failed: %v", err)
			}
			if result.TotalCount != 12 || result.TotalPages != 3 {
				t.Fatalf("unexpected totals: %d items over %d pages", result.TotalCount, result.TotalPages)
			}
			if len(result.Items) != testCase.expectedItems {
				t.Fatalf("expected %d items, got %d", testCase.expectedItems, len(result.Items))
			}
			if result.HasPrevious() != testCase.hasPrevious || result.HasNext() != testCase.hasNext {
				t.Fatalf("unexpected navigation: previous=%v next=%v", result.HasPrevious(), result.HasNext())
			}
		})
	}

	firstPage, err := store.ListPaginated(ctx, 1, 5)
	if err != nil {
		testContext.Fatalf("paginate failed: %v", err)
	}
	if firstPage.Items[0].ID != 12 {
		testContext.Fatalf("expected newest message first, got id %d", firstPage.Items[0].ID)
	}

	if _, err := store.ListPaginated(ctx, 0, 5); err != ErrInvalidPage {
		testContext.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestGormStoreListPaginatedOnEmptyTable(testContext *testing.T) {
	store := newTestGormStore(testContext, nil)

	result, err := store.ListPaginated(context.Background(), 1, 5)
	if err != nil {
		testContext.Fatalf("paginate failed: %v", err)
	}
	if result.TotalCount != 0 || result.TotalPages != 0 || len(result.Items) != 0 {
		testContext.Fatalf("expected empty page, got %+v", result)
	}
	if result.Items == nil {
		testContext.Fatalf("expected non-nil empty items")
	}
	if result.HasNext() || result.HasPrevious() {
		testContext.Fatalf("expected no navigation on empty listing")
	}
}
