package tool

import (
	"context"

	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/crm"
	"github.com/elitedev/sdr-agent/internal/dates"
	"github.com/elitedev/sdr-agent/internal/model"
	"github.com/elitedev/sdr-agent/internal/schedule"
)

// Defaults are the scheduling parameters applied when the model omits them.
type Defaults struct {
	SearchDays    int
	SlotsWanted   int
	DayStartHour  int
	DayEndHour    int
	DurationHours int
	StepMinutes   int
	Suggestions   int
}

// DefaultsFromConfig reads the scheduling defaults from service config.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		SearchDays:    cfg.SlotSearchDays,
		SlotsWanted:   cfg.SlotSearchCount,
		DayStartHour:  cfg.SlotDayStartHour,
		DayEndHour:    cfg.SlotDayEndHour,
		DurationHours: cfg.SlotDurationHours,
		StepMinutes:   cfg.SuggestionStepMin,
		Suggestions:   cfg.SuggestionCount,
	}
}

// NewRegistry wires the four SDR tools over the resolver and the CRM.
func NewRegistry(resolver *schedule.Resolver, crmAPI schedule.CRMAPI, normalizer *dates.Normalizer, defaults Defaults) *Registry {
	return newRegistry(
		registerLeadTool(crmAPI, normalizer),
		updateRecordTool(crmAPI, normalizer),
		offerSlotsTool(resolver, defaults),
		bookMeetingTool(resolver, defaults),
	)
}

func registerLeadTool(crmAPI schedule.CRMAPI, normalizer *dates.Normalizer) Tool {
	return Tool{
		Name: RegisterLead,
		Declaration: model.FunctionDeclaration{
			Name:        string(RegisterLead),
			Description: "Registers a qualified lead in the CRM. Updates the existing record when the email is already known.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"name":    {Type: "string", Description: "Full name of the lead"},
					"email":   {Type: "string", Description: "Email address of the lead"},
					"company": {Type: "string", Description: "Company the lead works for"},
					"need":    {Type: "string", Description: "Main need or pain point reported by the lead"},
					"datetime": {
						Type:        "string",
						Description: "Meeting datetime in ISO 8601, when one was already agreed",
					},
					"meeting_link": {Type: "string", Description: "Meeting link, when one already exists"},
				},
				Required: []string{"name", "email", "company", "need"},
			},
		},
		Handler: func(ctx context.Context, args Args) (map[string]interface{}, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			email, err := args.String("email")
			if err != nil {
				return nil, err
			}
			company, err := args.String("company")
			if err != nil {
				return nil, err
			}
			need, err := args.String("need")
			if err != nil {
				return nil, err
			}

			lead := &crm.Lead{Name: name, Email: email, Company: company, Need: need}
			if when := args.OptionalString("datetime"); when != "" {
				iso, err := normalizer.Normalize(when)
				if err != nil {
					return nil, err
				}
				lead.MeetingISO = iso
			}
			lead.MeetingLink = args.OptionalString("meeting_link")

			result, err := crmAPI.CreateLead(ctx, lead)
			if err != nil {
				return nil, err
			}
			return result.ToMap(), nil
		},
	}
}

func updateRecordTool(crmAPI schedule.CRMAPI, normalizer *dates.Normalizer) Tool {
	return Tool{
		Name: UpdateRecordWithMeeting,
		Declaration: model.FunctionDeclaration{
			Name:        string(UpdateRecordWithMeeting),
			Description: "Writes the meeting link and datetime onto an existing CRM record.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"card_id":  {Type: "string", Description: "CRM record id"},
					"link":     {Type: "string", Description: "Meeting link"},
					"datetime": {Type: "string", Description: "Meeting datetime, ISO 8601"},
					"event_id": {Type: "string", Description: "Calendar event id backing the meeting"},
				},
				Required: []string{"card_id"},
			},
		},
		Handler: func(ctx context.Context, args Args) (map[string]interface{}, error) {
			cardID, err := args.String("card_id")
			if err != nil {
				return nil, err
			}

			whenISO := ""
			if when := args.OptionalString("datetime"); when != "" {
				whenISO, err = normalizer.Normalize(when)
				if err != nil {
					return nil, err
				}
			}

			result, err := crmAPI.UpdateCardMeetingFields(ctx, cardID, args.OptionalString("link"), whenISO, args.OptionalString("event_id"))
			if err != nil {
				return nil, err
			}
			return result.ToMap(), nil
		},
	}
}

func offerSlotsTool(resolver *schedule.Resolver, defaults Defaults) Tool {
	return Tool{
		Name: OfferSlots,
		Declaration: model.FunctionDeclaration{
			Name:        string(OfferSlots),
			Description: "Finds free meeting slots on the sales calendar over the coming days.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"days":   {Type: "integer", Description: "How many days ahead to search"},
					"wanted": {Type: "integer", Description: "How many slots to offer"},
				},
			},
		},
		Handler: func(ctx context.Context, args Args) (map[string]interface{}, error) {
			window := schedule.Window{
				DaysAhead:     args.OptionalInt("days", defaults.SearchDays),
				Wanted:        args.OptionalInt("wanted", defaults.SlotsWanted),
				DayStartHour:  defaults.DayStartHour,
				DayEndHour:    defaults.DayEndHour,
				DurationHours: defaults.DurationHours,
			}

			slots, err := resolver.FindFreeSlots(ctx, window)
			if err != nil {
				return nil, err
			}

			suggestions := resolver.SlotSuggestions(slots)
			payload := make([]interface{}, len(suggestions))
			for i, s := range suggestions {
				payload[i] = map[string]interface{}{"label": s.Label, "iso": s.ISO}
			}
			return map[string]interface{}{"slots": payload}, nil
		},
	}
}

func bookMeetingTool(resolver *schedule.Resolver, defaults Defaults) Tool {
	return Tool{
		Name: BookMeeting,
		Declaration: model.FunctionDeclaration{
			Name: string(BookMeeting),
			Description: "Books a meeting at the chosen time. With a card_id the record's previous meeting is replaced; " +
				"without one the slot is checked first and alternatives are suggested when it is taken.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"name":     {Type: "string", Description: "Full name of the client"},
					"email":    {Type: "string", Description: "Email address of the client"},
					"datetime": {Type: "string", Description: "Chosen meeting datetime, ISO 8601"},
					"card_id":  {Type: "string", Description: "CRM record id, when the lead is already registered"},
					"company":  {Type: "string", Description: "Company name, used when registering a new lead"},
					"need":     {Type: "string", Description: "Reported need, used when registering a new lead"},
				},
				Required: []string{"name", "email", "datetime"},
			},
		},
		Handler: func(ctx context.Context, args Args) (map[string]interface{}, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			email, err := args.String("email")
			if err != nil {
				return nil, err
			}
			when, err := args.String("datetime")
			if err != nil {
				return nil, err
			}

			var outcome *schedule.Outcome
			if cardID := args.OptionalString("card_id"); cardID != "" {
				outcome, err = resolver.Rebook(ctx, cardID, name, email, when, defaults.DurationHours)
			} else {
				outcome, err = resolver.TryBookOrSuggest(ctx, schedule.BookingRequest{
					Name:          name,
					Email:         email,
					Company:       args.OptionalString("company"),
					Need:          args.OptionalString("need"),
					ProposedTime:  when,
					DurationHours: defaults.DurationHours,
					StepMinutes:   defaults.StepMinutes,
					Wanted:        defaults.Suggestions,
				})
			}
			if err != nil {
				return nil, err
			}
			return outcome.ToMap(), nil
		},
	}
}
