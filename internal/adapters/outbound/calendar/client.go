package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// Event is the calendar record a batch gets annotated onto.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

func (c *Client) eventURL(id string) string {
	return fmt.Sprintf("%s/events/%s", c.baseURL, url.PathEscape(id))
}

// GetEvent fetches a calendar event by id.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.eventURL(id), nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("get event %s: status=%d", id, status)
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", id, err)
	}
	return &ev, nil
}

// UpdateEvent patches the title and description of a calendar event.
func (c *Client) UpdateEvent(ctx context.Context, id, title, description string) error {
	payload := map[string]string{
		"title":       title,
		"description": description,
	}
	body, status, err := c.do(ctx, http.MethodPatch, c.eventURL(id), payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("update event %s: status=%d body=%s", id, status, string(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload any) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal payload: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("calendar: %s %s -> %d (%s)", method, rawURL, resp.StatusCode, time.Since(start))
	return body, resp.StatusCode, nil
}
