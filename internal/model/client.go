package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elitedev/sdr-agent/internal/config"
)

// Generator submits one prepared conversation to a model and returns its
// text and/or tool calls.
type Generator interface {
	Generate(ctx context.Context, modelID string, contents []Content, systemInstruction string, tools []FunctionDeclaration) (*Result, error)
}

// Client implements Generator against the Gemini generateContent REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Gemini REST client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		apiKey:     cfg.GeminiAPIKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Tools             []toolDeclaration `json:"tools,omitempty"`
}

type toolDeclaration struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate calls models/{modelID}:generateContent with the given contents,
// system instruction and tool declarations.
func (c *Client) Generate(ctx context.Context, modelID string, contents []Content, systemInstruction string, tools []FunctionDeclaration) (*Result, error) {
	reqBody := generateRequest{Contents: contents}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: systemInstruction}}}
	}
	if len(tools) > 0 {
		reqBody.Tools = []toolDeclaration{{FunctionDeclarations: tools}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != 0 {
			return nil, &APIError{
				Code:    errResp.Error.Code,
				Status:  errResp.Error.Status,
				Message: errResp.Error.Message,
			}
		}
		return nil, &APIError{Code: resp.StatusCode, Status: resp.Status, Message: string(body)}
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}

	return reduceResponse(&genResp), nil
}

// reduceResponse flattens the first candidate into text plus tool calls.
func reduceResponse(resp *generateResponse) *Result {
	result := &Result{}
	if len(resp.Candidates) == 0 {
		return result
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			result.FunctionCalls = append(result.FunctionCalls, *part.FunctionCall)
		}
	}
	result.Text = text.String()
	return result
}
