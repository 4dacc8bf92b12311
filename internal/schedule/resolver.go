package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/calendar"
	"github.com/elitedev/sdr-agent/internal/crm"
	"github.com/elitedev/sdr-agent/internal/dates"
	"github.com/elitedev/sdr-agent/internal/observability"
)

// maxSuggestionAttempts caps the widening search around a busy slot.
// 24 one-hour steps on each side covers a full day in both directions.
const maxSuggestionAttempts = 24

// CalendarAPI is the calendar surface the resolver needs.
type CalendarAPI interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
	InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// CRMAPI is the CRM surface the resolver needs.
type CRMAPI interface {
	FindCardByEmail(ctx context.Context, email string) (*crm.Card, error)
	CreateLead(ctx context.Context, lead *crm.Lead) (*crm.MutationResult, error)
	UpdateCardMeetingFields(ctx context.Context, cardID, link, whenISO, eventID string) (*crm.MutationResult, error)
	EventIDForCard(ctx context.Context, cardID string) (string, error)
}

// Slot is a candidate meeting start of fixed duration.
type Slot struct {
	Start         time.Time
	DurationHours int
}

// Suggestion is an alternative slot offered when a proposed time conflicts.
type Suggestion struct {
	Label string `json:"label"`
	ISO   string `json:"iso"`
}

// Window parameterizes the forward slot search.
type Window struct {
	DaysAhead     int
	Wanted        int
	DayStartHour  int
	DayEndHour    int
	DurationHours int
}

// BookingRequest carries everything needed to book or suggest.
type BookingRequest struct {
	CardID        string
	Name          string
	Email         string
	Company       string
	Need          string
	ProposedTime  string
	DurationHours int
	StepMinutes   int
	Wanted        int
}

// Outcome is the result of a booking or rebooking attempt.
type Outcome struct {
	Status      string              // "booked" or "suggested"
	MeetingLink string              `json:"meeting_link,omitempty"`
	MeetingISO  string              `json:"meeting_datetime,omitempty"`
	EventID     string              `json:"event_id,omitempty"`
	Suggestions []Suggestion        `json:"suggestions,omitempty"`
	CRM         *crm.MutationResult `json:"crm,omitempty"`
}

// ToMap renders the outcome as a tool payload. The meeting_link key is what
// the agent keys on to synthesize the reply text.
func (o *Outcome) ToMap() map[string]interface{} {
	out := map[string]interface{}{"status": o.Status}
	if o.MeetingLink != "" {
		out["meeting_link"] = o.MeetingLink
	}
	if o.MeetingISO != "" {
		out["meeting_datetime"] = o.MeetingISO
	}
	if o.EventID != "" {
		out["event_id"] = o.EventID
	}
	if len(o.Suggestions) > 0 {
		suggestions := make([]interface{}, len(o.Suggestions))
		for i, s := range o.Suggestions {
			suggestions[i] = map[string]interface{}{"label": s.Label, "iso": s.ISO}
		}
		out["suggestions"] = suggestions
	}
	if o.CRM != nil {
		out["crm"] = o.CRM.ToMap()
	}
	return out
}

// Resolver finds free slots and drives booking transactions against the
// calendar and the CRM.
type Resolver struct {
	cal    CalendarAPI
	crm    CRMAPI
	dates  *dates.Normalizer
	logger zerolog.Logger

	// injectable for tests
	now          func() time.Time
	newRequestID func() string
}

// NewResolver creates a resolver over the given gateways, pinned to the
// normalizer's zone.
func NewResolver(cal CalendarAPI, crmAPI CRMAPI, normalizer *dates.Normalizer, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cal:          cal,
		crm:          crmAPI,
		dates:        normalizer,
		logger:       logger,
		now:          func() time.Time { return time.Now().In(normalizer.Location()) },
		newRequestID: func() string { return "meet-" + uuid.New().String() },
	}
}

// IsFree reports whether [start, start+duration) has no conflicting events.
func (r *Resolver) IsFree(ctx context.Context, start time.Time, durationHours int) (bool, error) {
	end := start.Add(time.Duration(durationHours) * time.Hour)
	events, err := r.cal.ListEvents(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return len(events) == 0, nil
}

// FindFreeSlots scans forward from now, day by day and hour by hour, and
// returns up to Wanted free slots in chronological order.
func (r *Resolver) FindFreeSlots(ctx context.Context, w Window) ([]Slot, error) {
	now := r.now().In(r.dates.Location()).Truncate(time.Hour)

	var slots []Slot
	for day := 0; day < w.DaysAhead && len(slots) < w.Wanted; day++ {
		dayBase := now.AddDate(0, 0, day)
		for hour := w.DayStartHour; hour < w.DayEndHour; hour++ {
			candidate := time.Date(dayBase.Year(), dayBase.Month(), dayBase.Day(), hour, 0, 0, 0, r.dates.Location())
			if candidate.Before(now) {
				continue
			}
			free, err := r.IsFree(ctx, candidate, w.DurationHours)
			if err != nil {
				return nil, err
			}
			if free {
				slots = append(slots, Slot{Start: candidate, DurationHours: w.DurationHours})
			}
			if len(slots) >= w.Wanted {
				break
			}
		}
	}

	return slots, nil
}

// SlotSuggestions renders slots as labeled suggestions for the model.
func (r *Resolver) SlotSuggestions(slots []Slot) []Suggestion {
	suggestions := make([]Suggestion, len(slots))
	for i, s := range slots {
		suggestions[i] = Suggestion{
			Label: r.dates.FormatLabel(s.Start),
			ISO:   r.dates.FormatISO(s.Start),
		}
	}
	return suggestions
}

// SuggestAlternatives searches outward from a busy proposed time, testing
// +step and -step at each widening attempt (plus first), until Wanted
// suggestions are found or the attempt cap is reached. It may return fewer
// than Wanted suggestions, and that is not an error.
func (r *Resolver) SuggestAlternatives(ctx context.Context, proposed time.Time, durationHours, stepMinutes, wanted int) ([]Suggestion, error) {
	step := time.Duration(stepMinutes) * time.Minute

	var suggestions []Suggestion
	for attempt := 1; attempt <= maxSuggestionAttempts && len(suggestions) < wanted; attempt++ {
		radius := step * time.Duration(attempt)
		for _, candidate := range []time.Time{proposed.Add(radius), proposed.Add(-radius)} {
			free, err := r.IsFree(ctx, candidate, durationHours)
			if err != nil {
				return nil, err
			}
			if free {
				suggestions = append(suggestions, Suggestion{
					Label: r.dates.FormatLabel(candidate),
					ISO:   r.dates.FormatISO(candidate),
				})
				if len(suggestions) >= wanted {
					break
				}
			}
		}
	}

	return suggestions, nil
}

// bookedEvent is the calendar side of a successful booking.
type bookedEvent struct {
	Link    string
	ISO     string
	EventID string
}

// book inserts the calendar event with a conferencing request.
func (r *Resolver) book(ctx context.Context, name, email, cardID string, start time.Time, durationHours int) (*bookedEvent, error) {
	end := start.Add(time.Duration(durationHours) * time.Hour)
	tz := r.dates.Location().String()

	event := &calendar.Event{
		Summary:     fmt.Sprintf("Reunião com %s - Elite Dev - %s", name, cardID),
		Description: fmt.Sprintf("Reunião com %s", name),
		Start:       calendar.EventTime{DateTime: r.dates.FormatISO(start), TimeZone: tz},
		End:         calendar.EventTime{DateTime: r.dates.FormatISO(end), TimeZone: tz},
		Attendees:   []calendar.Attendee{{Email: email}},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{RequestID: r.newRequestID()},
		},
	}

	created, err := r.cal.InsertEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to book meeting: %w", err)
	}

	r.logger.Info().Str("event_id", created.ID).Str("when", r.dates.FormatISO(start)).
		Msg("Meeting booked")

	return &bookedEvent{
		Link:    created.MeetingLink(),
		ISO:     r.dates.FormatISO(start),
		EventID: created.ID,
	}, nil
}

// TryBookOrSuggest books the proposed time when it is free, registering or
// updating the CRM record; when busy it returns alternative suggestions and
// performs no mutation.
//
// The availability check and the insert are not atomic: two concurrent
// callers proposing the same slot can both book it. Accepted limitation.
func (r *Resolver) TryBookOrSuggest(ctx context.Context, req BookingRequest) (*Outcome, error) {
	proposed, err := r.dates.Parse(req.ProposedTime)
	if err != nil {
		return nil, err
	}

	free, err := r.IsFree(ctx, proposed, req.DurationHours)
	if err != nil {
		return nil, err
	}

	if !free {
		suggestions, err := r.SuggestAlternatives(ctx, proposed, req.DurationHours, req.StepMinutes, req.Wanted)
		if err != nil {
			return nil, err
		}
		observability.RecordBookingOutcome("suggested")
		return &Outcome{Status: "suggested", Suggestions: suggestions}, nil
	}

	booked, err := r.book(ctx, req.Name, req.Email, req.CardID, proposed, req.DurationHours)
	if err != nil {
		return nil, err
	}

	existing, err := r.crm.FindCardByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	var crmResult *crm.MutationResult
	if existing != nil {
		crmResult, err = r.crm.UpdateCardMeetingFields(ctx, existing.ID, booked.Link, booked.ISO, booked.EventID)
	} else {
		crmResult, err = r.crm.CreateLead(ctx, &crm.Lead{
			Name:        req.Name,
			Email:       req.Email,
			Company:     req.Company,
			Need:        req.Need,
			MeetingISO:  booked.ISO,
			MeetingLink: booked.Link,
			EventID:     booked.EventID,
		})
	}
	if err != nil {
		return nil, err
	}

	observability.RecordBookingOutcome("booked")
	return &Outcome{
		Status:      "booked",
		MeetingLink: booked.Link,
		MeetingISO:  booked.ISO,
		EventID:     booked.EventID,
		CRM:         crmResult,
	}, nil
}

// Rebook replaces a record's meeting: the prior event is deleted best-effort,
// the new slot is booked without an availability check, and a CRM update
// failure degrades the outcome instead of failing it.
func (r *Resolver) Rebook(ctx context.Context, cardID, name, email, startText string, durationHours int) (*Outcome, error) {
	start, err := r.dates.Parse(startText)
	if err != nil {
		return nil, err
	}

	oldEventID, err := r.crm.EventIDForCard(ctx, cardID)
	if err != nil {
		r.logger.Warn().Err(err).Str("card_id", cardID).
			Msg("Could not read prior event id, skipping cleanup")
		oldEventID = ""
	}

	if oldEventID != "" {
		if err := r.cal.DeleteEvent(ctx, oldEventID); err != nil {
			r.logger.Warn().Err(err).Str("event_id", oldEventID).
				Msg("Failed to delete prior event, booking anyway")
		} else {
			r.logger.Info().Str("event_id", oldEventID).Msg("Prior event deleted")
		}
	}

	booked, err := r.book(ctx, name, email, cardID, start, durationHours)
	if err != nil {
		return nil, err
	}

	crmResult, err := r.crm.UpdateCardMeetingFields(ctx, cardID, booked.Link, booked.ISO, booked.EventID)
	if err != nil {
		// The event exists; surface the degraded record state instead of failing
		r.logger.Error().Err(err).Str("card_id", cardID).Msg("CRM update failed after booking")
		crmResult = &crm.MutationResult{Status: "failure", CardID: cardID, Message: err.Error()}
	}

	observability.RecordBookingOutcome("booked")
	return &Outcome{
		Status:      "booked",
		MeetingLink: booked.Link,
		MeetingISO:  booked.ISO,
		EventID:     booked.EventID,
		CRM:         crmResult,
	}, nil
}
