// Package events lists, creates and deletes events on behalf of the current
// session.
package events

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
)

// API is the subset of the backend used by Service.
type API interface {
	CreateEvent(ctx context.Context, token string, req platform.EventRequest) error
	ListEvents(ctx context.Context, token string) ([]platform.Event, error)
	DeleteEvent(ctx context.Context, token string, id int64) error
}

// TokenSource yields the current session snapshot.
type TokenSource interface {
	Get() session.Snapshot
}

// Service performs event operations with the session's token. All of them
// fail with NoActiveSession when no token is held.
type Service struct {
	api      API
	sessions TokenSource
	logger   *log.Logger
}

// NewService creates an events service.
func NewService(api API, sessions TokenSource, logger *log.Logger) *Service {
	return &Service{
		api:      api,
		sessions: sessions,
		logger:   log.OrDefault(logger).WithGroup("events"),
	}
}

func (s *Service) token(operation string) (string, error) {
	token := s.sessions.Get().Token
	if token == "" {
		return "", apperrors.NewNoActiveSessionError(operation)
	}
	return token, nil
}

// Validate checks the fields the backend requires.
func Validate(req platform.EventRequest) error {
	var problems []string
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "title is required")
	}
	if req.EventDate.IsZero() {
		problems = append(problems, "event date is required")
	}
	if len(problems) > 0 {
		return apperrors.New(apperrors.ErrCodeEventInvalid, strings.Join(problems, "; ")).
			WithSuggestion("Dates look like 2025-12-12T15:00")
	}
	return nil
}

// Create publishes a new event.
func (s *Service) Create(ctx context.Context, req platform.EventRequest) error {
	token, err := s.token("event creation")
	if err != nil {
		return err
	}
	if err := Validate(req); err != nil {
		return err
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := s.api.CreateEvent(ctx, token, req); err != nil {
		s.logger.DebugContext(ctx, "create failed", "title", req.Title, "status", platform.StatusCode(err))
		msg := platform.ServerMessage(err)
		if msg == "" {
			msg = "could not create the event"
		}
		appErr := apperrors.Wrap(apperrors.ErrCodeEventCreateFailed, msg, err)
		if platform.StatusCode(err) == http.StatusForbidden {
			appErr.WithSuggestion("Creating events requires the ADMIN or ORGANIZER role")
		}
		return appErr
	}

	s.logger.InfoContext(ctx, "event created", "title", req.Title)
	return nil
}

// List returns the events visible to the session, ordered by date.
func (s *Service) List(ctx context.Context) ([]platform.Event, error) {
	token, err := s.token("listing events")
	if err != nil {
		return nil, err
	}

	events, err := s.api.ListEvents(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeEventListFailed, "could not load events", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventDate.Before(events[j].EventDate.Time)
	})
	return events, nil
}

// Delete removes an event by id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	token, err := s.token("deleting events")
	if err != nil {
		return err
	}

	if err := s.api.DeleteEvent(ctx, token, id); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeEventDeleteFailed, fmt.Sprintf("could not delete event %d", id), err)
	}

	s.logger.InfoContext(ctx, "event deleted", "id", id)
	return nil
}

// FilterByTitle keeps events whose title contains query, case-insensitively.
// An empty query keeps everything.
func FilterByTitle(events []platform.Event, query string) []platform.Event {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return events
	}

	var matched []platform.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Title), query) {
			matched = append(matched, ev)
		}
	}
	return matched
}
