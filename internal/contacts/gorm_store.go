package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"gorm.io/gorm"
)

const newestFirst = "created_at DESC, id DESC"

var errMissingExecutor = errors.New("contacts: database executor is required")

// GormStore keeps messages in the relational backend behind a retrying executor.
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

func (s *GormStore) Insert(ctx context.Context, name, email, body string) (Message, error) {
	createdAt := s.clock().UTC()
	var created Message
	err := s.executor.Execute(ctx, func(tx *gorm.DB) error {
		created = Message{Name: name, Email: email, Body: body, CreatedAt: createdAt}
		return tx.Create(&created).Error
	})
	if err != nil {
		return Message{}, err
	}
	return created, nil
}

func (s *GormStore) List(ctx context.Context, limit int) ([]Message, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	var messages []Message
	err := s.executor.Execute(ctx, func(tx *gorm.DB) error {
		messages = nil
		return tx.Order(newestFirst).Limit(limit).Find(&messages).Error
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *GormStore) ListPaginated(ctx context.Context, page, pageSize int) (Page, error) {
	if err := validatePage(page, pageSize); err != nil {
		return Page{}, err
	}

	var (
		total int64
		items []Message
	)
	err := s.executor.Execute(ctx, func(tx *gorm.DB) error {
		items = nil
		if err := tx.Model(&Message{}).Count(&total).Error; err != nil {
			return err
		}
		offset := (page - 1) * pageSize
		if int64(offset) >= total {
			return nil
		}
		return tx.Order(newestFirst).Offset(offset).Limit(pageSize).Find(&items).Error
	})
	if err != nil {
		return Page{}, err
	}

	if items == nil {
		items = []Message{}
	}
	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
