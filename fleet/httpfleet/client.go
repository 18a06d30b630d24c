// Package httpfleet drives an external fleet controller over its JSON HTTP
// API.
package httpfleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"warehouse/fleet"
	"warehouse/orders"
)

// Response is the envelope every fleet endpoint returns.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
}

type PickRequest struct {
	Robot int           `json:"robot"`
	Order int64         `json:"order"`
	Lines []orders.Line `json:"lines"`
}

type PickResponse struct {
	Response
	Holding []orders.Line `json:"holding"`
}

type MoveRequest struct {
	Robot int `json:"robot"`
	Dock  int `json:"dock"`
}

type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ fleet.Backend = (*Client)(nil)

func (c *Client) Name() string { return "http fleet" }

func (c *Client) Ping(ctx context.Context) error {
	var resp Response
	if err := c.do(ctx, http.MethodGet, "/ping", nil, &resp); err != nil {
		return fmt.Errorf("%w: %w", fleet.ErrUnavailable, err)
	}
	return checkResponse(&resp)
}

func (c *Client) FulfillOrder(ctx context.Context, robot int, order orders.Order) ([]orders.Line, error) {
	req := PickRequest{Robot: robot, Order: order.Number, Lines: order.Lines}
	var resp PickResponse
	if err := c.do(ctx, http.MethodPost, "/pick", req, &resp); err != nil {
		return nil, err
	}
	if err := checkResponse(&resp.Response); err != nil {
		return nil, err
	}
	return resp.Holding, nil
}

func (c *Client) MoveTo(ctx context.Context, robot, dock int) error {
	var resp Response
	if err := c.do(ctx, http.MethodPost, "/move", MoveRequest{Robot: robot, Dock: dock}, &resp); err != nil {
		return err
	}
	return checkResponse(&resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fleet marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, bodyReader)
	if err != nil {
		return fmt.Errorf("fleet %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fleet %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fleet read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fleet HTTP %d: %s", resp.StatusCode, string(data))
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("fleet decode: %w", err)
		}
	}
	return nil
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Reconfigure updates the base URL and timeout.
func (c *Client) Reconfigure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	c.baseURL = baseURL
	c.httpClient.Timeout = timeout
	c.mu.Unlock()
}

func checkResponse(r *Response) error {
	if r.Code != 0 {
		return fmt.Errorf("fleet error %d: %s", r.Code, r.Msg)
	}
	return nil
}
