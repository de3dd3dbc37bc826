package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whatstasker/internal/core/ports"
)

// Client talks to the external reasoning service over HTTP. The service
// receives the full turn snapshot and answers with either a direct reply
// or a single tool call; this process never interprets free text itself.
type Client struct {
	url  string
	http *http.Client
}

var _ ports.Reasoner = (*Client)(nil)

const requestTimeout = 30 * time.Second

func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: requestTimeout},
	}
}

type turnPayload struct {
	Owner    string   `json:"owner"`
	Message  string   `json:"message"`
	History  []string `json:"history,omitempty"`
	Items    any      `json:"items,omitempty"`
	Calendar any      `json:"calendar,omitempty"`
	Prefs    any      `json:"prefs"`
}

type decisionPayload struct {
	Reply    string `json:"reply"`
	ToolCall *struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	} `json:"tool_call"`
}

func (c *Client) Decide(ctx context.Context, turn ports.Turn) (ports.Decision, error) {
	body, err := json.Marshal(turnPayload{
		Owner:    turn.Owner,
		Message:  turn.Message,
		History:  turn.History,
		Items:    turn.Items,
		Calendar: turn.Calendar,
		Prefs:    turn.Prefs,
	})
	if err != nil {
		return ports.Decision{}, fmt.Errorf("encode turn: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.Decision{}, fmt.Errorf("reasoning service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Decision{}, fmt.Errorf("reasoning service: unexpected status %d", resp.StatusCode)
	}

	var payload decisionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ports.Decision{}, fmt.Errorf("decode decision: %w", err)
	}

	decision := ports.Decision{Reply: payload.Reply}
	if payload.ToolCall != nil {
		decision.ToolCall = &ports.ToolCall{
			Name: payload.ToolCall.Name,
			Args: payload.ToolCall.Args,
		}
	}
	return decision, nil
}

// Static always answers with a fixed reply. It stands in when no
// reasoning service is configured, keeping the bridge loop functional.
type Static struct {
	Message string
}

var _ ports.Reasoner = Static{}

func (s Static) Decide(_ context.Context, _ ports.Turn) (ports.Decision, error) {
	return ports.Decision{Reply: s.Message}, nil
}
