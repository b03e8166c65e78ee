package contacts

import "context"

// Store persists contact messages. Listings are ordered by created_at
// descending with id descending as the tie-break.
type Store interface {
	Insert(ctx context.Context, name, email, body string) (Message, error)
	List(ctx context.Context, limit int) ([]Message, error)
	ListPaginated(ctx context.Context, page, pageSize int) (Page, error)
}
