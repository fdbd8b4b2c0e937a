package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	statesPath  = "/api/states"
	webhookPath = "/api/webhook/"

	CommandTurnOn  = "turn_on"
	CommandTurnOff = "turn_off"
)

// State is one record of the bulk states read.
type State struct {
	EntityID   string          `json:"entity_id"`
	Attributes StateAttributes `json:"attributes"`
}

type StateAttributes struct {
	FriendlyName string `json:"friendly_name"`
}

// Command is the webhook body sent for every resolved entity.
type Command struct {
	Command string `json:"command"`
	Target  string `json:"target"`
	User    string `json:"user"`
}

type Config struct {
	BaseURL        string
	Token          string
	WebhookID      string
	CatalogTimeout time.Duration
	CommandTimeout time.Duration
}

type Client struct {
	baseURL       string
	token         string
	webhookID     string
	catalogClient *http.Client
	commandClient *http.Client
}

func New(cfg Config) *Client {
	catalogTimeout := cfg.CatalogTimeout
	if catalogTimeout <= 0 {
		catalogTimeout = 12 * time.Second
	}
	commandTimeout := cfg.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = 10 * time.Second
	}
	webhookID := strings.TrimSpace(cfg.WebhookID)
	if webhookID == "" {
		webhookID = "discord_command_bot"
	}
	return &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:         strings.TrimSpace(cfg.Token),
		webhookID:     webhookID,
		catalogClient: &http.Client{Timeout: catalogTimeout},
		commandClient: &http.Client{Timeout: commandTimeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchStates reads every entity Home Assistant knows about.
func (c *Client) FetchStates(ctx context.Context) ([]State, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("home assistant base url is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.catalogClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request states: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("states request failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var states []State
	if err := json.NewDecoder(res.Body).Decode(&states); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	return states, nil
}

// SendCommand posts one command to the webhook and returns the HTTP status.
// Any status is returned as-is; deciding what counts as success is left to
// the caller. err is set only when no response was received.
func (c *Client) SendCommand(ctx context.Context, command Command) (int, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("home assistant base url is not configured")
	}
	payload, err := json.Marshal(command)
	if err != nil {
		return 0, fmt.Errorf("encode webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+webhookPath+c.webhookID, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.commandClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1024))
	return res.StatusCode, nil
}
