package contacts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps messages in process memory. It backs the demo deployment
// and tests; data does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
	nextID   int64
	clock    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(clock func() time.Time, seed ...Message) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	store := &MemoryStore{clock: clock}
	for _, message := range seed {
		store.nextID++
		message.ID = store.nextID
		store.messages = append(store.messages, message)
	}
	return store
}

// DemoMessages returns the sample submissions shown by the demo backend.
func DemoMessages() []Message {
	return []Message{
		{
			Name:      "Budi Santoso",
			Email:     "budi.s@email.com",
			Body:      "Interested in collaborating on a project. Can we connect?",
			CreatedAt: time.Date(2025, 12, 5, 9, 15, 0, 0, time.UTC),
		},
		{
			Name:      "Siti Nurhaliza",
			Email:     "siti.n@email.com",
			Body:      "What a complete skill set. Keep it up!",
			CreatedAt: time.Date(2025, 12, 8, 14, 20, 0, 0, time.UTC),
		},
		{
			Name:      "Ahmad Fauzi",
			Email:     "ahmad.fauzi@email.com",
			Body:      "Great portfolio! Really like the design.",
			CreatedAt: time.Date(2025, 12, 10, 10, 30, 0, 0, time.UTC),
		},
	}
}

func (s *MemoryStore) Insert(_ context.Context, name, email, body string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	message := Message{
		ID:        s.nextID,
		Name:      name,
		Email:     email,
		Body:      body,
		CreatedAt: s.clock().UTC(),
	}
	s.messages = append(s.messages, message)
	return message, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Message, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	sorted := s.sorted()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (s *MemoryStore) ListPaginated(_ context.Context, page, pageSize int) (Page, error) {
	if err := validatePage(page, pageSize); err != nil {
		return Page{}, err
	}
	sorted := s.sorted()
	total := int64(len(sorted))

	items := []Message{}
	start := (page - 1) * pageSize
	if start < len(sorted) {
		end := start + pageSize
		if end > len(sorted) {
			end = len(sorted)
		}
		items = append(items, sorted[start:end]...)
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (s *MemoryStore) sorted() []Message {
	s.mu.RLock()
	snapshot := make([]Message, len(s.messages))
	copy(snapshot, s.messages)
	s.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.After(snapshot[j].CreatedAt)
		}
		return snapshot[i].ID > snapshot[j].ID
	})
	return snapshot
}
