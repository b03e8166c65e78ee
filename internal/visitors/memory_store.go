package visitors

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps events in process memory for the demo backend and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	nextID int64
	clock  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{clock: clock}
}

func (s *MemoryStore) Insert(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock().UTC()
	}
	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, period Period) (Stats, error) {
	since, bounded := period.Since(s.clock().UTC())

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Period: period}
	addresses := make(map[string]struct{})
	devices := make(map[string]int64)
	browsers := make(map[string]int64)
	countries := make(map[string]int64)
	for _, event := range s.events {
		if bounded && event.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		addresses[event.IP] = struct{}{}
		devices[event.Device]++
		browsers[event.Browser]++
		countries[event.Country]++
	}
	stats.UniqueVisitors = int64(len(addresses))
	stats.Devices = sortBuckets(toBuckets(devices))
	stats.Browsers = sortBuckets(toBuckets(browsers))
	stats.TopCountries = topBuckets(toBuckets(countries), topCountryLimit)
	return stats, nil
}

func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var removed int64
	for _, event := range s.events {
		if event.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return removed, nil
}

func toBuckets(counts map[string]int64) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for label, count := range counts {
		buckets = append(buckets, Bucket{Label: label, Count: count})
	}
	return buckets
}
