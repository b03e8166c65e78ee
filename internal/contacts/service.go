package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/events"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/notify"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("contact store is required")
	noOpLogger      = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "contacts.service.new"
	opSubmit        = "contacts.submit"
	opList          = "contacts.list"
	opListPaginated = "contacts.list_paginated"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Notifier receives best-effort announcements of new submissions.
type Notifier interface {
	NotifyContact(ctx context.Context, notice notify.ContactNotice)
}

type ServiceConfig struct {
	Store    Store
	Notifier Notifier
	Events   events.Publisher
	Logger   *zap.Logger
}

type Service struct {
	store    Store
	notifier Notifier
	events   events.Publisher
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		events:   publisher,
		logger:   logger,
	}, nil
}

// Submit validates and stores a submission, then announces it. Announcement
// failures never affect the result.
func (s *Service) Submit(ctx context.Context, request SubmitRequest) (Message, error) {
	if s.store == nil {
		return Message{}, newServiceError(opSubmit, "missing_store", errMissingStore)
	}
	normalized, err := request.Normalize()
	if err != nil {
		if errors.Is(err, ErrMessageTooLong) {
			return Message{}, newServiceError(opSubmit, "message_too_long", err)
		}
		return Message{}, newServiceError(opSubmit, "missing_fields", err)
	}

	created, err := s.store.Insert(ctx, normalized.Name, normalized.Email, normalized.Message)
	if err != nil {
		s.logError(opSubmit, "insert_failed", err)
		return Message{}, newServiceError(opSubmit, "insert_failed", err)
	}

	s.announce(ctx, created)
	return created, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Message, error) {
	if s.store == nil {
		return nil, newServiceError(opList, "missing_store", errMissingStore)
	}
	messages, err := s.store.List(ctx, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidLimit) {
			return nil, newServiceError(opList, "invalid_limit", err)
		}
		s.logError(opList, "query_failed", err, zap.Int("limit", limit))
		return nil, newServiceError(opList, "query_failed", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

func (s *Service) ListPaginated(ctx context.Context, page, pageSize int) (Page, error) {
	if s.store == nil {
		return Page{}, newServiceError(opListPaginated, "missing_store", errMissingStore)
	}
	result, err := s.store.ListPaginated(ctx, page, pageSize)
	if err != nil {
		if errors.Is(err, ErrInvalidPage) {
			return Page{}, newServiceError(opListPaginated, "invalid_page", err)
		}
		s.logError(opListPaginated, "query_failed", err, zap.Int("page", page))
		return Page{}, newServiceError(opListPaginated, "query_failed", err)
	}
	return result, nil
}

func (s *Service) announce(ctx context.Context, created Message) {
	if s.notifier != nil {
		s.notifier.NotifyContact(ctx, notify.ContactNotice{
			Name:    created.Name,
			Email:   created.Email,
			Message: created.Body,
		})
	}
	event := events.Event{
		Type:       events.TypeContactSubmitted,
		OccurredAt: created.CreatedAt,
		Payload:    created,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.loggerOrDefault().Warn("contact event publish failed",
			zap.Int64("contact_id", created.ID),
			zap.Error(err))
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("contacts service error", attrs...)
}
