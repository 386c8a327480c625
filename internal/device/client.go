package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/version"
)

const (
	// DefaultTimeout bounds every request
	DefaultTimeout = 5 * time.Second

	// DefaultPort is the controller's HTTP port
	DefaultPort = 80

	maxBodySize = 64 << 10
)

// Client talks to the controller's HTTP API.
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.0.42")
	BaseURL string

	HTTPClient *http.Client
}

// NewClient creates a client for host:port
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// WebSocketURL returns the ws:// address of the push channel.
func (c *Client) WebSocketURL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return strings.Replace(c.BaseURL, "http", "ws", 1) + "/websocket"
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	return u.String()
}

// ReadSensors fetches the current readings. A response with any event tag
// other than "read-sensors" is a protocol error.
func (c *Client) ReadSensors(ctx context.Context) (*Readings, error) {
	var resp SensorsResponse
	if err := c.getJSON(ctx, "/readsensors", &resp); err != nil {
		return nil, err
	}
	if resp.Event != EventReadSensors {
		return nil, NewProtocolError(fmt.Sprintf("unexpected event %q from /readsensors", resp.Event))
	}
	return &resp.Data, nil
}

// FetchConfigs fetches the settings stored on the controller.
func (c *Client) FetchConfigs(ctx context.Context) (*Configs, error) {
	var resp configsResponse
	if err := c.getJSON(ctx, "/configs", &resp); err != nil {
		return nil, err
	}
	if resp.Configs == nil {
		return nil, NewDecodeError("response has no configs object", nil)
	}
	return resp.Configs, nil
}

// SaveConfigs stores new settings on the controller. The controller answers
// with a reload-config push once it has applied them.
func (c *Client) SaveConfigs(ctx context.Context, cfg *Configs) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configs: %w", err)
	}

	body := cfg.Form().Encode()
	req, err := c.newRequest(ctx, http.MethodPost, "/configs", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

// do sends req and turns transport failures and non-2xx statuses into
// *Error values. The caller closes the body on success.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logging.Debug("Controller request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return nil, NewNetworkError(fmt.Sprintf("%s %s failed", req.Method, req.URL.Path), err)
	}

	logging.LogHTTPRequest(req.URL.Host, req.Method, req.URL.Path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned %s", req.Method, req.URL.Path, resp.Status))
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return NewDecodeError(fmt.Sprintf("invalid JSON from %s", path), err)
	}
	return nil
}
