package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EventTimeLayout is the wire layout for event dates (local time, no zone)
const EventTimeLayout = "2006-01-02T15:04:05"

var eventTimeLayouts = []string{
	EventTimeLayout,
	"2006-01-02T15:04",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// EventTime is an event timestamp. The backend uses zone-less local
// date-times; a few common variants are accepted on input.
type EventTime struct {
	time.Time
}

// ParseEventTime parses s using the accepted layouts
func ParseEventTime(s string) (EventTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return EventTime{Time: t}, nil
		}
	}
	return EventTime{}, fmt.Errorf("unrecognized event date %q (expected e.g. 2025-12-12T15:00)", s)
}

// MarshalJSON implements json.Marshaler
func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(EventTimeLayout))
}

// MarshalYAML implements yaml.Marshaler
func (t EventTime) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Format(EventTimeLayout), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (t *EventTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = EventTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("event date must be a string: %w", err)
	}
	parsed, err := ParseEventTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// EventRequest represents a request to create an event
type EventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventDate   EventTime `json:"eventDate"`
	Location    string    `json:"location"`
}

// Event represents an event as listed by the backend
type Event struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	EventDate         EventTime `json:"eventDate"`
	Location          string    `json:"location"`
	ParticipantsCount int       `json:"participantsCount"`
}

// CreateEvent creates a new event
func (c *Client) CreateEvent(ctx context.Context, token string, req EventRequest) error {
	return c.Do(ctx, http.MethodPost, "/events", token, req, nil)
}

// ListEvents retrieves the events visible to the token's owner
func (c *Client) ListEvents(ctx context.Context, token string) ([]Event, error) {
	var events []Event
	if err := c.Do(ctx, http.MethodGet, "/events/filter", token, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteEvent deletes an event by id
func (c *Client) DeleteEvent(ctx context.Context, token string, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/events/%d", id), token, nil, nil)
}
