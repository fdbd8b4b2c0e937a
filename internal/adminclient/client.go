package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

// Client talks to the HTTP API of a running serve process.
type Client struct {
	baseURL string
	http    *http.Client
}

type CatalogRefresh struct {
	Trigger       string `json:"trigger"`
	Entities      int    `json:"entities"`
	Error         string `json:"error"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type CatalogStatus struct {
	Entities        int             `json:"entities"`
	Categories      map[string]int  `json:"categories"`
	RefreshedAtUnix int64           `json:"refreshed_at_unix"`
	LastRefresh     *CatalogRefresh `json:"last_refresh"`
}

type Candidate struct {
	EntityID string `json:"entity_id"`
	Label    string `json:"label"`
}

type Resolution struct {
	Phrase     string      `json:"phrase"`
	Source     string      `json:"source"`
	EntityIDs  []string    `json:"entity_ids"`
	Candidates []Candidate `json:"candidates"`
}

type ResolveResponse struct {
	Query string       `json:"query"`
	Items []Resolution `json:"items"`
	Count int          `json:"count"`
}

type Command struct {
	ID            string `json:"id"`
	IssuerID      string `json:"issuer_id"`
	IssuerName    string `json:"issuer_name"`
	Phrase        string `json:"phrase"`
	EntityID      string `json:"entity_id"`
	Command       string `json:"command"`
	Status        int    `json:"status"`
	Succeeded     bool   `json:"succeeded"`
	Error         string `json:"error"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type ListCommandsInput struct {
	EntityID   string
	FailedOnly bool
	Limit      int
}

type ListCommandsResponse struct {
	Items []Command `json:"items"`
	Count int       `json:"count"`
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if timeout < time.Second {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// BaseURLForAddr turns a listen address such as ":8080" into a loopback URL.
func BaseURLForAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func (c *Client) Heartbeat(ctx context.Context) (heartbeat.Snapshot, error) {
	var snapshot heartbeat.Snapshot
	if err := c.get(ctx, "/api/v1/heartbeat", nil, &snapshot); err != nil {
		return heartbeat.Snapshot{}, err
	}
	return snapshot, nil
}

func (c *Client) Catalog(ctx context.Context) (CatalogStatus, error) {
	var status CatalogStatus
	if err := c.get(ctx, "/api/v1/catalog", nil, &status); err != nil {
		return CatalogStatus{}, err
	}
	return status, nil
}

func (c *Client) Resolve(ctx context.Context, query string) (ResolveResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ResolveResponse{}, fmt.Errorf("query is required")
	}
	var response ResolveResponse
	if err := c.get(ctx, "/api/v1/resolve", url.Values{"q": {query}}, &response); err != nil {
		return ResolveResponse{}, err
	}
	return response, nil
}

func (c *Client) Commands(ctx context.Context, input ListCommandsInput) ([]Command, error) {
	params := url.Values{}
	if entityID := strings.TrimSpace(input.EntityID); entityID != "" {
		params.Set("entity_id", entityID)
	}
	if input.FailedOnly {
		params.Set("failed", "true")
	}
	if input.Limit > 0 {
		params.Set("limit", strconv.Itoa(input.Limit))
	}
	var response ListCommandsResponse
	if err := c.get(ctx, "/api/v1/commands", params, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
