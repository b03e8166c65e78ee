package visitors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/events"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/geo"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/notify"
	"go.uber.org/zap"
)

var errMissingStore = errors.New("visitor store is required")

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
	opServiceNew = "visitors.service.new"
	opTrack      = "visitors.track"
	opStats      = "visitors.stats"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

type Notifier interface {
	NotifyVisitor(ctx context.Context, notice notify.VisitorNotice)
}

// TrackRequest is what the beacon reports plus the caller address.
type TrackRequest struct {
	IP      string
	Device  string
	Browser string
	Page    string
}

type ServiceConfig struct {
	Store    Store
	Locator  geo.Locator
	Notifier Notifier
	Events   events.Publisher
	Logger   *zap.Logger
}

type Service struct {
	store    Store
	locator  geo.Locator
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
		logger = zap.NewNop()
	}
	return &Service{
		store:    cfg.Store,
		locator:  cfg.Locator,
		notifier: cfg.Notifier,
		events:   publisher,
		logger:   logger,
	}, nil
}

// Track records a page view. Geolocation, notification and event publishing
// are best-effort; only a storage failure is returned.
func (s *Service) Track(ctx context.Context, request TrackRequest) (Event, error) {
	event := Event{
		IP:      orUnknown(request.IP),
		Country: Unknown,
		City:    Unknown,
		Device:  orUnknown(request.Device),
		Browser: orUnknown(request.Browser),
		Page:    strings.TrimSpace(request.Page),
	}
	if event.Page == "" {
		event.Page = defaultPage
	}

	if s.locator != nil && event.IP != Unknown {
		location, err := s.locator.Lookup(ctx, event.IP)
		if err != nil {
			s.logger.Debug("geolocation failed", zap.String("ip", event.IP), zap.Error(err))
		} else {
			event.Country = orUnknown(location.Country)
			event.City = orUnknown(location.City)
		}
	}

	if err := s.store.Insert(ctx, &event); err != nil {
		s.logger.Error("visitors service error",
			zap.String("operation", opTrack),
			zap.String("reason", "insert_failed"),
			zap.Error(err))
		return Event{}, newServiceError(opTrack, "insert_failed", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyVisitor(ctx, notify.VisitorNotice{
			IP:      event.IP,
			Country: event.Country,
			City:    event.City,
			Device:  event.Device,
			Browser: event.Browser,
			Page:    event.Page,
		})
	}
	publishErr := s.events.Publish(ctx, events.Event{
		Type:       events.TypeVisitorTracked,
		OccurredAt: event.CreatedAt,
		Payload:    event,
	})
	if publishErr != nil {
		s.logger.Warn("visitor event publish failed", zap.Int64("visitor_id", event.ID), zap.Error(publishErr))
	}
	return event, nil
}

func (s *Service) Stats(ctx context.Context, period Period) (Stats, error) {
	stats, err := s.store.Stats(ctx, period)
	if err != nil {
		s.logger.Error("visitors service error",
			zap.String("operation", opStats),
			zap.String("period", string(period)),
			zap.Error(err))
		return Stats{}, newServiceError(opStats, "query_failed", err)
	}
	return stats, nil
}
