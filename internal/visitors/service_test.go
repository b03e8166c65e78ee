package visitors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/events"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/geo"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/notify"
)

type stubLocator struct {
	location geo.Location
	err      error
	calls    []string
}

func (l *stubLocator) Lookup(_ context.Context, address string) (geo.Location, error) {
	l.calls = append(l.calls, address)
	return l.location, l.err
}

type recordingNotifier struct {
	notices []notify.VisitorNotice
}

func (n *recordingNotifier) NotifyVisitor(_ context.Context, notice notify.VisitorNotice) {
	n.notices = append(n.notices, notice)
}

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}

func TestServiceTrackResolvesLocationAndAnnounces(t *testing.T) {
	store := NewMemoryStore(func() time.Time { return referenceNow })
	locator := &stubLocator{location: geo.Location{Country: "Indonesia", City: "Bandung"}}
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	service, err := NewService(ServiceConfig{Store: store, Locator: locator, Notifier: notifier, Events: publisher})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	event, err := service.Track(context.Background(), TrackRequest{IP: "203.0.113.9", Device: "Mobile", Browser: "Chrome", Page: "/about"})
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if event.Country != "Indonesia" || event.City != "Bandung" || event.ID != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Page != "/about" {
		t.Fatalf("unexpected notices: %+v", notifier.notices)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeVisitorTracked {
		t.Fatalf("unexpected events: %+v", publisher.published)
	}
}

func TestServiceTrackFillsDefaultsAndSkipsLookupForUnknownAddress(t *testing.T) {
	store := NewMemoryStore(nil)
	locator := &stubLocator{}
	service, err := NewService(ServiceConfig{Store: store, Locator: locator})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	event, err := service.Track(context.Background(), TrackRequest{})
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if event.IP != Unknown || event.Device != Unknown || event.Browser != Unknown || event.Page != "/" {
		t.Fatalf("expected defaults, got %+v", event)
	}
	if event.Country != Unknown || event.City != Unknown {
		t.Fatalf("expected unknown location, got %+v", event)
	}
	if len(locator.calls) != 0 {
		t.Fatalf("expected no lookup for unknown address, got %v", locator.calls)
	}
}

func TestServiceTrackDegradesWhenLookupFails(t *testing.T) {
	locator := &stubLocator{err: errors.New("rate limited")}
	service, err := NewService(ServiceConfig{Store: NewMemoryStore(nil), Locator: locator})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	event, err := service.Track(context.Background(), TrackRequest{IP: "198.51.100.1"})
	if err != nil {
		t.Fatalf("expected lookup failure to be ignored, got %v", err)
	}
	if event.Country != Unknown || event.City != Unknown {
		t.Fatalf("expected unknown location, got %+v", event)
	}
}
