package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/calendar"
	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/crm"
	"github.com/elitedev/sdr-agent/internal/dates"
)

type interval struct {
	start time.Time
	end   time.Time
}

type fakeCalendar struct {
	busy      []interval
	listCalls int
	inserted  []*calendar.Event
	deleted   []string
	insertErr error
	deleteErr error
	listErr   error
}

func (f *fakeCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var events []calendar.Event
	for _, iv := range f.busy {
		if iv.start.Before(to) && from.Before(iv.end) {
			events = append(events, calendar.Event{ID: "busy"})
		}
	}
	return events, nil
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, event)
	created := *event
	created.ID = "evt-new"
	created.ConferenceData = &calendar.ConferenceData{
		EntryPoints: []calendar.EntryPoint{{EntryPointType: "video", URI: "https://meet.google.com/new"}},
	}
	return &created, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

type fakeCRM struct {
	card      *crm.Card
	created   []*crm.Lead
	updates   []string
	updateErr error
	eventID   string
	eventErr  error
}

func (f *fakeCRM) FindCardByEmail(ctx context.Context, email string) (*crm.Card, error) {
	return f.card, nil
}

func (f *fakeCRM) CreateLead(ctx context.Context, lead *crm.Lead) (*crm.MutationResult, error) {
	f.created = append(f.created, lead)
	return &crm.MutationResult{Status: "created", CardID: "card-new"}, nil
}

func (f *fakeCRM) UpdateCardMeetingFields(ctx context.Context, cardID, link, whenISO, eventID string) (*crm.MutationResult, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, cardID)
	return &crm.MutationResult{Status: "success", CardID: cardID}, nil
}

func (f *fakeCRM) EventIDForCard(ctx context.Context, cardID string) (string, error) {
	if f.eventErr != nil {
		return "", f.eventErr
	}
	return f.eventID, nil
}

func newTestResolver(t *testing.T, cal *fakeCalendar, crmAPI *fakeCRM) (*Resolver, *dates.Normalizer) {
	t.Helper()
	n, err := dates.NewNormalizer("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}
	r := NewResolver(cal, crmAPI, n, zerolog.Nop())
	r.now = func() time.Time {
		return time.Date(2025, 10, 14, 14, 30, 0, 0, n.Location())
	}
	r.newRequestID = func() string { return "meet-test" }
	return r, n
}

func defaultWindow() Window {
	return Window{DaysAhead: 7, Wanted: 3, DayStartHour: 9, DayEndHour: 18, DurationHours: 1}
}

func TestFindFreeSlots_EmptyCalendar(t *testing.T) {
	cal := &fakeCalendar{}
	r, n := newTestResolver(t, cal, &fakeCRM{})

	slots, err := r.FindFreeSlots(context.Background(), defaultWindow())
	if err != nil {
		t.Fatalf("FindFreeSlots failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(slots))
	}

	now := r.now().Truncate(time.Hour)
	horizon := now.AddDate(0, 0, 7)
	for i, s := range slots {
		if s.DurationHours != 1 {
			t.Errorf("Slot %d: expected 1 hour duration, got %d", i, s.DurationHours)
		}
		if s.Start.Before(now) || s.Start.After(horizon) {
			t.Errorf("Slot %d at %v outside [now, now+7d]", i, s.Start)
		}
		hour := s.Start.In(n.Location()).Hour()
		if hour < 9 || hour >= 18 {
			t.Errorf("Slot %d at hour %d outside [9, 18)", i, hour)
		}
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Errorf("Slots not chronological: %v then %v", slots[i-1].Start, s.Start)
		}
	}

	// First free slots on an empty calendar start at the current hour
	if slots[0].Start.Hour() != 14 {
		t.Errorf("Expected first slot at 14:00, got %v", slots[0].Start)
	}
}

func TestFindFreeSlots_SkipsBusyHours(t *testing.T) {
	cal := &fakeCalendar{}
	r, n := newTestResolver(t, cal, &fakeCRM{})

	// 14:00 and 15:00 today are taken
	busyStart := time.Date(2025, 10, 14, 14, 0, 0, 0, n.Location())
	cal.busy = []interval{{start: busyStart, end: busyStart.Add(2 * time.Hour)}}

	slots, err := r.FindFreeSlots(context.Background(), defaultWindow())
	if err != nil {
		t.Fatalf("FindFreeSlots failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 16 {
		t.Errorf("Expected first slot at 16:00 after busy block, got %v", slots[0].Start)
	}
}

func TestFindFreeSlots_Idempotent(t *testing.T) {
	cal := &fakeCalendar{}
	r, _ := newTestResolver(t, cal, &fakeCRM{})

	first, err := r.FindFreeSlots(context.Background(), defaultWindow())
	if err != nil {
		t.Fatalf("first FindFreeSlots failed: %v", err)
	}
	second, err := r.FindFreeSlots(context.Background(), defaultWindow())
	if err != nil {
		t.Fatalf("second FindFreeSlots failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) {
			t.Errorf("Slot %d differs: %v vs %v", i, first[i].Start, second[i].Start)
		}
	}
}

func TestFindFreeSlots_GatewayError(t *testing.T) {
	cal := &fakeCalendar{listErr: errors.New("calendar down")}
	r, _ := newTestResolver(t, cal, &fakeCRM{})

	if _, err := r.FindFreeSlots(context.Background(), defaultWindow()); err == nil {
		t.Error("Expected gateway error to propagate")
	}
}

func TestSuggestAlternatives_TrialOrder(t *testing.T) {
	cal := &fakeCalendar{}
	r, n := newTestResolver(t, cal, &fakeCRM{})

	proposed := time.Date(2025, 10, 15, 15, 0, 0, 0, n.Location())
	// Only the proposed hour is busy; everything around it is free
	cal.busy = []interval{{start: proposed, end: proposed.Add(time.Hour)}}

	suggestions, err := r.SuggestAlternatives(context.Background(), proposed, 1, 60, 3)
	if err != nil {
		t.Fatalf("SuggestAlternatives failed: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("Expected 3 suggestions, got %d", len(suggestions))
	}

	expected := []string{
		n.FormatISO(proposed.Add(time.Hour)),      // +60m
		n.FormatISO(proposed.Add(-time.Hour)),     // -60m
		n.FormatISO(proposed.Add(2 * time.Hour)),  // +120m
	}
	for i, want := range expected {
		if suggestions[i].ISO != want {
			t.Errorf("Suggestion %d: expected %s, got %s", i, want, suggestions[i].ISO)
		}
	}
}

func TestSuggestAlternatives_AttemptCap(t *testing.T) {
	cal := &fakeCalendar{}
	r, n := newTestResolver(t, cal, &fakeCRM{})

	// Everything is busy, on both sides, for days
	proposed := time.Date(2025, 10, 15, 15, 0, 0, 0, n.Location())
	cal.busy = []interval{{start: proposed.AddDate(0, 0, -30), end: proposed.AddDate(0, 0, 30)}}

	suggestions, err := r.SuggestAlternatives(context.Background(), proposed, 1, 60, 3)
	if err != nil {
		t.Fatalf("SuggestAlternatives failed: %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("Expected no suggestions, got %d", len(suggestions))
	}
	// Two candidates per attempt, 24 attempts max
	if cal.listCalls > 48 {
		t.Errorf("Expected at most 48 availability checks, got %d", cal.listCalls)
	}
}

func TestTryBookOrSuggest_BooksWhenFree(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{}
	r, _ := newTestResolver(t, cal, crmAPI)

	outcome, err := r.TryBookOrSuggest(context.Background(), BookingRequest{
		Name:          "João",
		Email:         "joao@techpro.com",
		Company:       "TechPro",
		Need:          "implementar ia",
		ProposedTime:  "2025-10-15T15:00:00",
		DurationHours: 1,
		StepMinutes:   60,
		Wanted:        3,
	})
	if err != nil {
		t.Fatalf("TryBookOrSuggest failed: %v", err)
	}

	if outcome.Status != "booked" {
		t.Errorf("Expected status 'booked', got %q", outcome.Status)
	}
	if outcome.MeetingLink != "https://meet.google.com/new" {
		t.Errorf("Unexpected meeting link %q", outcome.MeetingLink)
	}
	if outcome.MeetingISO != "2025-10-15T15:00:00" {
		t.Errorf("Unexpected meeting datetime %q", outcome.MeetingISO)
	}
	if outcome.EventID != "evt-new" {
		t.Errorf("Unexpected event id %q", outcome.EventID)
	}
	if len(cal.inserted) != 1 {
		t.Fatalf("Expected 1 inserted event, got %d", len(cal.inserted))
	}
	if cal.inserted[0].ConferenceData == nil || cal.inserted[0].ConferenceData.CreateRequest == nil {
		t.Error("Expected a conference create request on the event")
	}
	// No prior card, so a lead must be created
	if len(crmAPI.created) != 1 {
		t.Fatalf("Expected 1 created lead, got %d", len(crmAPI.created))
	}
	if crmAPI.created[0].MeetingLink != outcome.MeetingLink {
		t.Error("Lead must carry the meeting link")
	}
}

func TestTryBookOrSuggest_SimulatedCRMStillBooks(t *testing.T) {
	cal := &fakeCalendar{}
	n, err := dates.NewNormalizer("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	// A token-less client simulates; the URL is unreachable on purpose so
	// any real CRM traffic fails the test
	crmClient := crm.NewClient(&config.Config{
		PipefyURL:         "http://unreachable.invalid",
		PipefyAccessToken: "",
		PipefyPipeID:      "1",
	}, zerolog.Nop())

	r := NewResolver(cal, crmClient, n, zerolog.Nop())
	r.now = func() time.Time {
		return time.Date(2025, 10, 14, 14, 30, 0, 0, n.Location())
	}
	r.newRequestID = func() string { return "meet-test" }

	outcome, err := r.TryBookOrSuggest(context.Background(), BookingRequest{
		Name:          "João",
		Email:         "joao@techpro.com",
		ProposedTime:  "2025-10-15T15:00:00",
		DurationHours: 1,
		StepMinutes:   60,
		Wanted:        3,
	})
	if err != nil {
		t.Fatalf("TryBookOrSuggest failed: %v", err)
	}

	if outcome.Status != "booked" {
		t.Errorf("Expected status 'booked', got %q", outcome.Status)
	}
	if len(cal.inserted) != 1 {
		t.Fatalf("Expected 1 inserted event, got %d", len(cal.inserted))
	}
	if outcome.CRM == nil || outcome.CRM.Status != "simulated" {
		t.Errorf("Expected a simulated CRM result, got %+v", outcome.CRM)
	}
}

func TestTryBookOrSuggest_UpdatesExistingCard(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{card: &crm.Card{ID: "card-77"}}
	r, _ := newTestResolver(t, cal, crmAPI)

	outcome, err := r.TryBookOrSuggest(context.Background(), BookingRequest{
		Name: "João", Email: "joao@techpro.com",
		ProposedTime: "2025-10-15T15:00:00", DurationHours: 1, StepMinutes: 60, Wanted: 3,
	})
	if err != nil {
		t.Fatalf("TryBookOrSuggest failed: %v", err)
	}
	if outcome.Status != "booked" {
		t.Errorf("Expected booked, got %q", outcome.Status)
	}
	if len(crmAPI.created) != 0 {
		t.Error("Existing card must be updated, not recreated")
	}
	if len(crmAPI.updates) != 1 || crmAPI.updates[0] != "card-77" {
		t.Errorf("Expected update on card-77, got %v", crmAPI.updates)
	}
}

func TestTryBookOrSuggest_SuggestsWhenBusy(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{}
	r, n := newTestResolver(t, cal, crmAPI)

	proposed := time.Date(2025, 10, 15, 15, 0, 0, 0, n.Location())
	cal.busy = []interval{{start: proposed, end: proposed.Add(time.Hour)}}

	outcome, err := r.TryBookOrSuggest(context.Background(), BookingRequest{
		Name: "João", Email: "joao@techpro.com",
		ProposedTime: "2025-10-15T15:00:00", DurationHours: 1, StepMinutes: 60, Wanted: 3,
	})
	if err != nil {
		t.Fatalf("TryBookOrSuggest failed: %v", err)
	}

	if outcome.Status != "suggested" {
		t.Errorf("Expected status 'suggested', got %q", outcome.Status)
	}
	if len(outcome.Suggestions) != 3 {
		t.Errorf("Expected 3 suggestions, got %d", len(outcome.Suggestions))
	}
	// The busy path must not mutate anything
	if len(cal.inserted) != 0 {
		t.Error("No event may be created on the suggestion path")
	}
	if len(crmAPI.created) != 0 || len(crmAPI.updates) != 0 {
		t.Error("No CRM mutation may occur on the suggestion path")
	}
}

func TestTryBookOrSuggest_InvalidDate(t *testing.T) {
	r, _ := newTestResolver(t, &fakeCalendar{}, &fakeCRM{})

	_, err := r.TryBookOrSuggest(context.Background(), BookingRequest{
		ProposedTime: "not a date zz", DurationHours: 1, StepMinutes: 60, Wanted: 3,
	})
	if err == nil {
		t.Error("Expected validation error for malformed date")
	}
}

func TestRebook_DeleteFailureStillBooks(t *testing.T) {
	cal := &fakeCalendar{deleteErr: errors.New("delete refused")}
	crmAPI := &fakeCRM{eventID: "evt-old"}
	r, _ := newTestResolver(t, cal, crmAPI)

	outcome, err := r.Rebook(context.Background(), "card-1", "João", "joao@techpro.com", "2025-10-16T10:00:00", 1)
	if err != nil {
		t.Fatalf("Rebook failed: %v", err)
	}
	if outcome.Status != "booked" {
		t.Errorf("Expected booked despite delete failure, got %q", outcome.Status)
	}
	if len(cal.inserted) != 1 {
		t.Errorf("Expected the new event to be created, got %d inserts", len(cal.inserted))
	}
}

func TestRebook_DeletesPriorEvent(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{eventID: "evt-old"}
	r, _ := newTestResolver(t, cal, crmAPI)

	if _, err := r.Rebook(context.Background(), "card-1", "João", "joao@techpro.com", "2025-10-16T10:00:00", 1); err != nil {
		t.Fatalf("Rebook failed: %v", err)
	}
	if len(cal.deleted) != 1 || cal.deleted[0] != "evt-old" {
		t.Errorf("Expected evt-old deleted, got %v", cal.deleted)
	}
}

func TestRebook_NoAvailabilityCheck(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{}
	r, n := newTestResolver(t, cal, crmAPI)

	// The slot is busy; rebooking books it anyway
	start := time.Date(2025, 10, 16, 10, 0, 0, 0, n.Location())
	cal.busy = []interval{{start: start, end: start.Add(time.Hour)}}

	outcome, err := r.Rebook(context.Background(), "card-1", "João", "joao@techpro.com", "2025-10-16T10:00:00", 1)
	if err != nil {
		t.Fatalf("Rebook failed: %v", err)
	}
	if outcome.Status != "booked" {
		t.Errorf("Expected booked, got %q", outcome.Status)
	}
	if cal.listCalls != 0 {
		t.Errorf("Rebook must not check availability, made %d list calls", cal.listCalls)
	}
}

func TestRebook_CRMFailureDegradesOutcome(t *testing.T) {
	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{updateErr: errors.New("crm down")}
	r, _ := newTestResolver(t, cal, crmAPI)

	outcome, err := r.Rebook(context.Background(), "card-1", "João", "joao@techpro.com", "2025-10-16T10:00:00", 1)
	if err != nil {
		t.Fatalf("Rebook must not fail on CRM update error, got %v", err)
	}
	if outcome.Status != "booked" {
		t.Errorf("Expected booked, got %q", outcome.Status)
	}
	if outcome.CRM == nil || outcome.CRM.Status != "failure" {
		t.Errorf("Expected degraded CRM status, got %+v", outcome.CRM)
	}
	if !strings.Contains(outcome.CRM.Message, "crm down") {
		t.Errorf("Expected CRM failure message surfaced, got %q", outcome.CRM.Message)
	}
}

func TestOutcomeToMap(t *testing.T) {
	outcome := &Outcome{
		Status:      "booked",
		MeetingLink: "https://meet.google.com/x",
		MeetingISO:  "2025-10-15T15:00:00",
		EventID:     "evt-1",
		CRM:         &crm.MutationResult{Status: "created", CardID: "card-1"},
	}

	m := outcome.ToMap()
	if m["status"] != "booked" || m["meeting_link"] != "https://meet.google.com/x" {
		t.Errorf("Unexpected map %v", m)
	}
	if _, ok := m["suggestions"]; ok {
		t.Error("Empty suggestions must be omitted")
	}
}
