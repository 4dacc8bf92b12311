package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/observability"
)

const pageSize = 50

// fieldLabels maps the CRM's start-form field labels to internal keys.
var fieldLabels = map[string]string{
	"Nome":                 "name",
	"Email":                "email",
	"Empresa":              "company",
	"Necessidade":          "need",
	"Interesse_confirmado": "interest",
	"Meeting_link":         "meeting_link",
	"Data Reuniao":         "meeting_date",
	"event_id":             "event_id",
}

// Client talks to the Pipefy GraphQL API for a single pipe.
//
// The start-form field-id cache is populated lazily and never invalidated;
// duplicate population under concurrency is harmless.
type Client struct {
	url        string
	token      string
	pipeID     string
	simulation bool
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	fieldIDs map[string]string
}

// NewClient creates a Pipefy client. An empty or placeholder token puts the
// client into simulation mode, where mutations return simulated payloads.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	simulation := cfg.PipefyAccessToken == "" ||
		strings.Contains(strings.ToUpper(cfg.PipefyAccessToken), "SIMULATION")

	return &Client{
		url:        cfg.PipefyURL,
		token:      cfg.PipefyAccessToken,
		pipeID:     cfg.PipefyPipeID,
		simulation: simulation,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// execute posts one GraphQL query/mutation and returns the data payload.
func (c *Client) execute(ctx context.Context, operation, query string, variables map[string]interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordCRMRequest(operation, false)
		return nil, fmt.Errorf("failed to reach CRM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordCRMRequest(operation, false)
		return nil, fmt.Errorf("CRM returned status %d", resp.StatusCode)
	}

	var gqlResp graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		observability.RecordCRMRequest(operation, false)
		return nil, fmt.Errorf("failed to decode CRM response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		observability.RecordCRMRequest(operation, false)
		return nil, fmt.Errorf("CRM returned errors: %s", gqlResp.Errors[0].Message)
	}

	observability.RecordCRMRequest(operation, true)
	return gqlResp.Data, nil
}

const fieldsQuery = `
query GetPipeFields($pipeId: ID!) {
  pipe(id: $pipeId) {
    start_form_fields {
      id
      label
    }
  }
}`

// fieldIDMap returns the cached start-form field ids, fetching them on
// first use. Population is idempotent; losing a race just repeats the fetch.
func (c *Client) fieldIDMap(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	cached := c.fieldIDs
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	data, err := c.execute(ctx, "fields", fieldsQuery, map[string]interface{}{"pipeId": c.pipeID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CRM field ids: %w", err)
	}

	var payload struct {
		Pipe struct {
			StartFormFields []struct {
				ID    string `json:"id"`
				Label string `json:"label"`
			} `json:"start_form_fields"`
		} `json:"pipe"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode CRM fields: %w", err)
	}
	if len(payload.Pipe.StartFormFields) == 0 {
		return nil, fmt.Errorf("no start form fields found on pipe %s", c.pipeID)
	}

	ids := make(map[string]string)
	for _, f := range payload.Pipe.StartFormFields {
		if key, ok := fieldLabels[f.Label]; ok {
			ids[key] = f.ID
		}
	}
	if len(ids) < len(fieldLabels) {
		c.logger.Warn().Int("found", len(ids)).Int("expected", len(fieldLabels)).
			Msg("Not all expected CRM fields were found")
	}

	c.mu.Lock()
	c.fieldIDs = ids
	c.mu.Unlock()
	return ids, nil
}

const cardsPageQuery = `
query FindCards($pipeId: ID!, $first: Int!, $after: String) {
  allCards(pipeId: $pipeId, first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        title
        fields {
          name
          value
        }
      }
    }
  }
}`

// FindCardByEmail scans all pages of the pipe for a card whose email field
// matches. Pagination is an explicit cursor loop bounded by hasNextPage.
// In simulation mode no lookup happens and no card is ever matched.
func (c *Client) FindCardByEmail(ctx context.Context, email string) (*Card, error) {
	if c.simulation {
		c.logger.Debug().Str("email", email).Msg("Simulation: skipping CRM card lookup")
		return nil, nil
	}

	email = strings.ToLower(strings.TrimSpace(email))

	var after *string
	for {
		variables := map[string]interface{}{
			"pipeId": c.pipeID,
			"first":  pageSize,
		}
		if after != nil {
			variables["after"] = *after
		}

		data, err := c.execute(ctx, "find_card", cardsPageQuery, variables)
		if err != nil {
			return nil, fmt.Errorf("failed to search CRM cards: %w", err)
		}

		var payload struct {
			AllCards struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Edges []struct {
					Node Card `json:"node"`
				} `json:"edges"`
			} `json:"allCards"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode CRM cards: %w", err)
		}

		for _, edge := range payload.AllCards.Edges {
			if strings.ToLower(strings.TrimSpace(edge.Node.FieldValue("email"))) == email {
				c.logger.Info().Str("email", email).Str("card_id", edge.Node.ID).
					Msg("Found existing CRM card")
				card := edge.Node
				return &card, nil
			}
		}

		if !payload.AllCards.PageInfo.HasNextPage {
			c.logger.Info().Str("email", email).Msg("No CRM card found")
			return nil, nil
		}
		cursor := payload.AllCards.PageInfo.EndCursor
		after = &cursor
	}
}

const createCardMutation = `
mutation CreateCard($input: CreateCardInput!) {
  createCard(input: $input) {
    card { id title }
  }
}`

// CreateLead creates a new card for the lead, or updates the existing card
// when one already holds the same email.
func (c *Client) CreateLead(ctx context.Context, lead *Lead) (*MutationResult, error) {
	if c.simulation {
		return &MutationResult{Status: "simulated", CardID: "SIM_CARD_12345", Message: "simulation: lead registered"}, nil
	}

	existing, err := c.FindCardByEmail(ctx, lead.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Info().Str("card_id", existing.ID).Msg("Lead exists, updating card")
		update, err := c.UpdateCardMeetingFields(ctx, existing.ID, lead.MeetingLink, lead.MeetingISO, lead.EventID)
		if err != nil {
			return nil, err
		}
		return &MutationResult{Status: "updated", CardID: existing.ID, Message: update.Message}, nil
	}

	ids, err := c.fieldIDMap(ctx)
	if err != nil {
		return nil, err
	}

	fields := []map[string]interface{}{
		{"field_id": ids["name"], "field_value": lead.Name},
		{"field_id": ids["email"], "field_value": lead.Email},
		{"field_id": ids["company"], "field_value": lead.Company},
		{"field_id": ids["need"], "field_value": NormalizeNeed(lead.Need)},
		{"field_id": ids["interest"], "field_value": "Sim"},
	}
	if lead.MeetingLink != "" {
		fields = append(fields, map[string]interface{}{"field_id": ids["meeting_link"], "field_value": lead.MeetingLink})
	}
	if lead.MeetingISO != "" {
		fields = append(fields, map[string]interface{}{"field_id": ids["meeting_date"], "field_value": lead.MeetingISO})
	}
	if lead.EventID != "" {
		fields = append(fields, map[string]interface{}{"field_id": ids["event_id"], "field_value": lead.EventID})
	}

	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"pipe_id":           c.pipeID,
			"fields_attributes": fields,
		},
	}

	data, err := c.execute(ctx, "create_card", createCardMutation, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to create CRM card: %w", err)
	}

	var payload struct {
		CreateCard struct {
			Card *Card `json:"card"`
		} `json:"createCard"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode created card: %w", err)
	}
	if payload.CreateCard.Card == nil {
		return &MutationResult{Status: "failure", Message: "CRM did not return a card"}, nil
	}

	return &MutationResult{Status: "created", CardID: payload.CreateCard.Card.ID, Message: "lead registered"}, nil
}

const updateFieldsMutation = `
mutation UpdateCardFields($input: UpdateFieldsValuesInput!) {
  updateFieldsValues(input: $input) {
    success
  }
}`

// UpdateCardMeetingFields writes the meeting link, datetime and calendar
// event id onto a card. Empty arguments are skipped.
func (c *Client) UpdateCardMeetingFields(ctx context.Context, cardID, link, whenISO, eventID string) (*MutationResult, error) {
	if cardID == "" {
		return nil, fmt.Errorf("card id is required")
	}

	if c.simulation {
		return &MutationResult{Status: "simulated", CardID: cardID, Message: "simulation: card updated"}, nil
	}

	ids, err := c.fieldIDMap(ctx)
	if err != nil {
		return nil, err
	}

	var values []map[string]interface{}
	if link != "" {
		if id, ok := ids["meeting_link"]; ok {
			values = append(values, map[string]interface{}{"fieldId": id, "value": link})
		}
	}
	if whenISO != "" {
		if id, ok := ids["meeting_date"]; ok {
			values = append(values, map[string]interface{}{"fieldId": id, "value": whenISO})
		}
	}
	if eventID != "" {
		if id, ok := ids["event_id"]; ok {
			values = append(values, map[string]interface{}{"fieldId": id, "value": eventID})
		}
	}

	if len(values) == 0 {
		return &MutationResult{Status: "nothing_to_update", CardID: cardID}, nil
	}

	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"nodeId": cardID,
			"values": values,
		},
	}

	data, err := c.execute(ctx, "update_card", updateFieldsMutation, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to update CRM card: %w", err)
	}

	var payload struct {
		UpdateFieldsValues struct {
			Success bool `json:"success"`
		} `json:"updateFieldsValues"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode card update: %w", err)
	}

	status := "success"
	if !payload.UpdateFieldsValues.Success {
		status = "failure"
	}
	return &MutationResult{Status: status, CardID: cardID}, nil
}

const cardQuery = `
query GetCard($cardId: ID!) {
  card(id: $cardId) {
    id
    fields {
      name
      value
    }
  }
}`

// EventIDForCard returns the calendar event id stored on a card, or empty
// when the card has none or the client is simulating.
func (c *Client) EventIDForCard(ctx context.Context, cardID string) (string, error) {
	if c.simulation {
		return "", nil
	}

	data, err := c.execute(ctx, "get_card", cardQuery, map[string]interface{}{"cardId": cardID})
	if err != nil {
		return "", fmt.Errorf("failed to fetch CRM card: %w", err)
	}

	var payload struct {
		Card *Card `json:"card"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("failed to decode CRM card: %w", err)
	}
	if payload.Card == nil {
		return "", nil
	}

	return payload.Card.FieldValue("event_id"), nil
}
