package gcal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

// taskIDProperty tags working-session events so reconciliation can find
// them even when the local record was lost.
const taskIDProperty = "whatstasker_task_id"

const defaultCallTimeout = 10 * time.Second

// Gateway wraps the Google Calendar API for per-owner calendars. Every
// remote call runs under a bounded timeout; unreachable service and
// missing credentials both surface as domain.ErrCalendarUnavailable.
type Gateway struct {
	oauth       *oauth2.Config
	tokens      TokenStore
	callTimeout time.Duration

	mu       sync.Mutex
	services map[string]*calendar.Service
}

var _ ports.CalendarGateway = (*Gateway)(nil)

func NewGateway(oauthConfig *oauth2.Config, tokens TokenStore) *Gateway {
	return &Gateway{
		oauth:       oauthConfig,
		tokens:      tokens,
		callTimeout: defaultCallTimeout,
		services:    make(map[string]*calendar.Service),
	}
}

func (g *Gateway) Status(ctx context.Context, owner string) domain.CalendarStatus {
	if _, err := g.serviceFor(ctx, owner); err != nil {
		return domain.CalendarNotIntegrated
	}
	return domain.CalendarConnected
}

func (g *Gateway) serviceFor(ctx context.Context, owner string) (*calendar.Service, error) {
	g.mu.Lock()
	if svc, ok := g.services[owner]; ok {
		g.mu.Unlock()
		return svc, nil
	}
	g.mu.Unlock()

	token, err := g.tokens.Load(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: no credentials for %s", domain.ErrCalendarUnavailable, owner)
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(g.oauth.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("%w: build calendar client: %v", domain.ErrCalendarUnavailable, err)
	}

	g.mu.Lock()
	g.services[owner] = svc
	g.mu.Unlock()
	return svc, nil
}

// Disconnect drops the cached client, forcing the next call to rebuild
// from stored credentials.
func (g *Gateway) Disconnect(owner string) {
	g.mu.Lock()
	delete(g.services, owner)
	g.mu.Unlock()
}

func (g *Gateway) ListEvents(ctx context.Context, owner string, start, end time.Time) ([]domain.CalendarEvent, error) {
	svc, err := g.serviceFor(ctx, owner)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	result, err := svc.Events.List("primary").
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(tctx).
		Do()
	if err != nil {
		return nil, mapAPIError("list events", err)
	}

	events := make([]domain.CalendarEvent, 0, len(result.Items))
	for _, item := range result.Items {
		event, ok := mapEvent(item)
		if ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func (g *Gateway) CreateEvent(ctx context.Context, owner string, event domain.CalendarEvent) (string, error) {
	svc, err := g.serviceFor(ctx, owner)
	if err != nil {
		return "", err
	}

	payload := &calendar.Event{
		Summary: event.Title,
		Start:   &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}
	if event.TaskID != "" {
		payload.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{taskIDProperty: event.TaskID},
		}
	}

	tctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	created, err := svc.Events.Insert("primary", payload).Context(tctx).Do()
	if err != nil {
		return "", mapAPIError("create event", err)
	}
	return created.Id, nil
}

// DeleteEvent treats an already-gone event as success so cancel paths
// stay idempotent.
func (g *Gateway) DeleteEvent(ctx context.Context, owner, eventID string) error {
	svc, err := g.serviceFor(ctx, owner)
	if err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := svc.Events.Delete("primary", eventID).Context(tctx).Do(); err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && (apiErr.Code == 404 || apiErr.Code == 410) {
			return nil
		}
		return mapAPIError("delete event", err)
	}
	return nil
}

func mapEvent(item *calendar.Event) (domain.CalendarEvent, bool) {
	// All-day events carry Date instead of DateTime and block the whole day.
	start, err := parseEventTime(item.Start)
	if err != nil {
		return domain.CalendarEvent{}, false
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return domain.CalendarEvent{}, false
	}

	event := domain.CalendarEvent{
		ID:    item.Id,
		Title: item.Summary,
		Start: start,
		End:   end,
	}
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		event.TaskID = item.ExtendedProperties.Private[taskIDProperty]
	}
	return event, true
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	return time.Parse("2006-01-02", edt.Date)
}

func mapAPIError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrCalendarUnavailable, op, err)
}
