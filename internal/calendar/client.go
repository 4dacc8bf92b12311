package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/observability"
)

const calendarScope = "https://www.googleapis.com/auth/calendar"

// ErrEventNotFound is returned when deleting an event that no longer exists.
var ErrEventNotFound = errors.New("calendar event not found")

// Client talks to the Google Calendar v3 REST API for a single calendar.
type Client struct {
	calendarID string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a calendar client authenticated with the configured
// service-account key.
func NewClient(cfg *config.Config) (*Client, error) {
	jwt, err := google.JWTConfigFromJSON([]byte(cfg.GoogleServiceAccountKey), calendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	httpClient := jwt.Client(context.Background())
	httpClient.Timeout = 30 * time.Second

	return &Client{
		calendarID: cfg.GoogleCalendarID,
		baseURL:    "https://www.googleapis.com/calendar/v3",
		httpClient: httpClient,
	}, nil
}

// NewClientWithHTTP creates a calendar client with an explicit HTTP client
// and base URL. Used by tests and by callers that manage auth themselves.
func NewClientWithHTTP(calendarID, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		calendarID: calendarID,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type eventList struct {
	Items []Event `json:"items"`
}

// ListEvents returns the events overlapping [from, to), expanded to single
// events and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(c.calendarID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordCalendarRequest("list", false)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordCalendarRequest("list", false)
		return nil, apiError("list events", resp)
	}

	var list eventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		observability.RecordCalendarRequest("list", false)
		return nil, fmt.Errorf("failed to decode event list: %w", err)
	}

	observability.RecordCalendarRequest("list", true)
	return list.Items, nil
}

// InsertEvent creates an event with conferencing enabled and returns the
// stored event, including its id and provisioned conference entry points.
func (c *Client) InsertEvent(ctx context.Context, event *Event) (*Event, error) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events?conferenceDataVersion=1", c.baseURL, url.PathEscape(c.calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordCalendarRequest("insert", false)
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordCalendarRequest("insert", false)
		return nil, apiError("insert event", resp)
	}

	var created Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		observability.RecordCalendarRequest("insert", false)
		return nil, fmt.Errorf("failed to decode created event: %w", err)
	}

	observability.RecordCalendarRequest("insert", true)
	return &created, nil
}

// DeleteEvent removes an event by id. A missing event maps to
// ErrEventNotFound rather than a transport failure.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordCalendarRequest("delete", false)
		return fmt.Errorf("failed to delete event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		observability.RecordCalendarRequest("delete", true)
		return nil
	case http.StatusNotFound, http.StatusGone:
		observability.RecordCalendarRequest("delete", true)
		return ErrEventNotFound
	default:
		observability.RecordCalendarRequest("delete", false)
		return apiError("delete event", resp)
	}
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("calendar API %s returned status %d: %s", op, resp.StatusCode, string(body))
}
