package visitors

import (
	"context"
	"testing"
	"time"
)

func TestPurgerPurgeOnceRemovesExpiredEvents(t *testing.T) {
	store := NewMemoryStore(func() time.Time { return referenceNow })
	ctx := context.Background()
	for _, event := range seedEvents() {
		event := event
		if err := store.Insert(ctx, &event); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	purger := NewPurger(PurgerConfig{
		Store:     store,
		Retention: 7 * 24 * time.Hour,
		Clock:     func() time.Time { return referenceNow },
	})
	if removed := purger.PurgeOnce(ctx); removed != 3 {
		t.Fatalf("expected 3 purged events, got %d", removed)
	}
}

func TestPurgerStartReturnsWhenDisabled(t *testing.T) {
	purger := NewPurger(PurgerConfig{Store: NewMemoryStore(nil)})
	done := make(chan struct{})
	go func() {
		purger.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected disabled purger to return immediately")
	}
}

func TestPurgerStartStopsOnCancel(t *testing.T) {
	purger := NewPurger(PurgerConfig{
		Store:     NewMemoryStore(nil),
		Retention: time.Hour,
		Interval:  10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purger.Start(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected purger to stop after cancel")
	}
}
