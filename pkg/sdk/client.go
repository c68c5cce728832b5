package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps calls to the USSD engine backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the given base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doJSON is a helper to perform JSON requests to the backend
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend '%s %s' failed: %d: %s", method, path, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

// Simulate drives one keystroke of the admin simulator
func (c *Client) Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResponse, error) {
	var out ApiResponse[SimulateResponse]
	if err := c.doJSON(ctx, http.MethodPost, "/api/simulator/simulate", req, &out); err != nil {
		return nil, err
	}

	if out.Status != StatusSuccess {
		return nil, fmt.Errorf("simulate failed: %s", out.Message)
	}
	return &out.Data, nil
}

// SaveMenu creates or updates a menu screen
func (c *Client) SaveMenu(ctx context.Context, m *Menu) (*Menu, error) {
	var out ApiResponse[Menu]
	if err := c.doJSON(ctx, http.MethodPost, "/api/menus", m, &out); err != nil {
		return nil, err
	}

	if out.Status != StatusSuccess {
		return nil, fmt.Errorf("save menu failed: %s", out.Message)
	}
	return &out.Data, nil
}

// ListMenus returns every menu screen
func (c *Client) ListMenus(ctx context.Context) ([]Menu, error) {
	var out ApiResponse[[]Menu]
	if err := c.doJSON(ctx, http.MethodGet, "/api/menus", nil, &out); err != nil {
		return nil, err
	}

	return out.Data, nil
}

// DeleteMenu removes a menu screen by id
func (c *Client) DeleteMenu(ctx context.Context, id uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/menus/%d", id), nil, nil)
}

// SaveService creates or updates a service directory entry
func (c *Client) SaveService(ctx context.Context, svc *Service) (*Service, error) {
	var out ApiResponse[Service]
	if err := c.doJSON(ctx, http.MethodPost, "/api/services", svc, &out); err != nil {
		return nil, err
	}

	if out.Status != StatusSuccess {
		return nil, fmt.Errorf("save service failed: %s", out.Message)
	}
	return &out.Data, nil
}

// ListServices returns every service directory entry
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var out ApiResponse[[]Service]
	if err := c.doJSON(ctx, http.MethodGet, "/api/services", nil, &out); err != nil {
		return nil, err
	}

	return out.Data, nil
}
