package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/calendar"
	"github.com/elitedev/sdr-agent/internal/crm"
	"github.com/elitedev/sdr-agent/internal/dates"
	"github.com/elitedev/sdr-agent/internal/schedule"
)

type fakeCalendar struct {
	listCalls int
	inserted  []*calendar.Event
	deleted   []string
}

func (f *fakeCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	f.listCalls++
	return nil, nil
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	f.inserted = append(f.inserted, event)
	created := *event
	created.ID = "evt-1"
	created.HangoutLink = "https://meet.google.com/abc"
	return &created, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

type fakeCRM struct {
	leads       []*crm.Lead
	updates     []string
	cardByEmail *crm.Card
	eventID     string
}

func (f *fakeCRM) FindCardByEmail(ctx context.Context, email string) (*crm.Card, error) {
	return f.cardByEmail, nil
}

func (f *fakeCRM) CreateLead(ctx context.Context, lead *crm.Lead) (*crm.MutationResult, error) {
	f.leads = append(f.leads, lead)
	return &crm.MutationResult{Status: "created", CardID: "card-1"}, nil
}

func (f *fakeCRM) UpdateCardMeetingFields(ctx context.Context, cardID, link, whenISO, eventID string) (*crm.MutationResult, error) {
	f.updates = append(f.updates, cardID)
	return &crm.MutationResult{Status: "success", CardID: cardID}, nil
}

func (f *fakeCRM) EventIDForCard(ctx context.Context, cardID string) (string, error) {
	return f.eventID, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeCalendar, *fakeCRM) {
	t.Helper()

	normalizer, err := dates.NewNormalizer("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	cal := &fakeCalendar{}
	crmAPI := &fakeCRM{}
	resolver := schedule.NewResolver(cal, crmAPI, normalizer, zerolog.Nop())

	defaults := Defaults{
		SearchDays:    7,
		SlotsWanted:   3,
		DayStartHour:  9,
		DayEndHour:    18,
		DurationHours: 1,
		StepMinutes:   60,
		Suggestions:   3,
	}

	return NewRegistry(resolver, crmAPI, normalizer, defaults), cal, crmAPI
}

func TestResolveKnownTools(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	for _, name := range []Name{RegisterLead, UpdateRecordWithMeeting, OfferSlots, BookMeeting} {
		tool, err := registry.Resolve(string(name))
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", name, err)
		}
		if tool.Name != name {
			t.Errorf("expected tool %s, got %s", name, tool.Name)
		}
		if tool.Declaration.Name != string(name) {
			t.Errorf("declaration name mismatch for %s: %s", name, tool.Declaration.Name)
		}
	}
}

func TestResolveUnknownTool(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	_, err := registry.Resolve("delete-everything")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestDeclarationsInRegistrationOrder(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	decls := registry.Declarations()
	want := []string{"register-lead", "update-record-with-meeting", "offer-slots", "book-meeting"}
	if len(decls) != len(want) {
		t.Fatalf("expected %d declarations, got %d", len(want), len(decls))
	}
	for i, name := range want {
		if decls[i].Name != name {
			t.Errorf("declaration %d: expected %s, got %s", i, name, decls[i].Name)
		}
	}
}

func TestRegisterLeadMissingRequiredArg(t *testing.T) {
	registry, _, crmAPI := newTestRegistry(t)

	tool, _ := registry.Resolve("register-lead")
	_, err := tool.Invoke(context.Background(), map[string]interface{}{
		"name":  "Ana",
		"email": "ana@example.com",
		// company and need missing
	})
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument, got %v", err)
	}
	if len(crmAPI.leads) != 0 {
		t.Errorf("no lead should be created on validation failure")
	}
}

func TestRegisterLeadNormalizesDatetime(t *testing.T) {
	registry, _, crmAPI := newTestRegistry(t)

	tool, _ := registry.Resolve("register-lead")
	result, err := tool.Invoke(context.Background(), map[string]interface{}{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"company":  "Acme",
		"need":     "Implementar IA",
		"datetime": "2025-10-20 15:00",
	})
	if err != nil {
		t.Fatalf("register-lead failed: %v", err)
	}
	if result["status"] != "created" {
		t.Errorf("expected status created, got %v", result["status"])
	}
	if len(crmAPI.leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(crmAPI.leads))
	}
	if got := crmAPI.leads[0].MeetingISO; got != "2025-10-20T15:00:00" {
		t.Errorf("expected normalized datetime, got %q", got)
	}
}

func TestUpdateRecordRequiresCardID(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	tool, _ := registry.Resolve("update-record-with-meeting")
	_, err := tool.Invoke(context.Background(), map[string]interface{}{
		"link": "https://meet.google.com/abc",
	})
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument, got %v", err)
	}
}

func TestUpdateRecordWritesMeetingFields(t *testing.T) {
	registry, _, crmAPI := newTestRegistry(t)

	tool, _ := registry.Resolve("update-record-with-meeting")
	result, err := tool.Invoke(context.Background(), map[string]interface{}{
		"card_id":  "card-42",
		"link":     "https://meet.google.com/abc",
		"datetime": "2025-10-20T15:00:00",
	})
	if err != nil {
		t.Fatalf("update-record-with-meeting failed: %v", err)
	}
	if result["status"] != "success" {
		t.Errorf("expected status success, got %v", result["status"])
	}
	if len(crmAPI.updates) != 1 || crmAPI.updates[0] != "card-42" {
		t.Errorf("expected update on card-42, got %v", crmAPI.updates)
	}
}

func TestOfferSlotsReturnsLabeledSlots(t *testing.T) {
	registry, cal, _ := newTestRegistry(t)

	tool, _ := registry.Resolve("offer-slots")
	result, err := tool.Invoke(context.Background(), map[string]interface{}{
		"days":   float64(2),
		"wanted": float64(2),
	})
	if err != nil {
		t.Fatalf("offer-slots failed: %v", err)
	}

	slots, ok := result["slots"].([]interface{})
	if !ok {
		t.Fatalf("expected slots list, got %T", result["slots"])
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	first, ok := slots[0].(map[string]interface{})
	if !ok {
		t.Fatalf("expected slot map, got %T", slots[0])
	}
	if first["label"] == "" || first["iso"] == "" {
		t.Errorf("slot should carry label and iso: %v", first)
	}
	if cal.listCalls == 0 {
		t.Errorf("offer-slots should consult the calendar")
	}
}

func TestBookMeetingWithoutCardChecksAvailability(t *testing.T) {
	registry, cal, crmAPI := newTestRegistry(t)

	tool, _ := registry.Resolve("book-meeting")
	result, err := tool.Invoke(context.Background(), map[string]interface{}{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"datetime": "2025-10-20T15:00:00",
		"company":  "Acme",
		"need":     "Outros",
	})
	if err != nil {
		t.Fatalf("book-meeting failed: %v", err)
	}
	if result["status"] != "booked" {
		t.Errorf("expected status booked, got %v", result["status"])
	}
	if cal.listCalls != 1 {
		t.Errorf("expected one availability check, got %d", cal.listCalls)
	}
	if len(crmAPI.leads) != 1 {
		t.Errorf("expected a lead to be registered, got %d", len(crmAPI.leads))
	}
}

func TestBookMeetingWithCardRebooks(t *testing.T) {
	registry, cal, crmAPI := newTestRegistry(t)
	crmAPI.eventID = "evt-old"

	tool, _ := registry.Resolve("book-meeting")
	result, err := tool.Invoke(context.Background(), map[string]interface{}{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"datetime": "2025-10-20T15:00:00",
		"card_id":  "card-42",
	})
	if err != nil {
		t.Fatalf("book-meeting failed: %v", err)
	}
	if result["status"] != "booked" {
		t.Errorf("expected status booked, got %v", result["status"])
	}
	if cal.listCalls != 0 {
		t.Errorf("rebooking must not check availability, got %d list calls", cal.listCalls)
	}
	if len(cal.deleted) != 1 || cal.deleted[0] != "evt-old" {
		t.Errorf("expected prior event deleted, got %v", cal.deleted)
	}
	if len(crmAPI.updates) != 1 || crmAPI.updates[0] != "card-42" {
		t.Errorf("expected meeting fields written to card-42, got %v", crmAPI.updates)
	}
}
