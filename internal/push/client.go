package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/version"
)

const (
	// Time allowed to write a message to the controller
	writeWait = 10 * time.Second

	// Time allowed for the websocket handshake
	handshakeTimeout = 5 * time.Second

	// Maximum message size accepted from the controller
	maxMessageSize = 8192
)

// ErrNotConnected is returned by Send while the connection is down.
var ErrNotConnected = errors.New("push channel not connected")

// Client keeps a websocket to the controller open, reconnecting with
// exponential backoff after a drop.
type Client struct {
	URL    string
	Dialer *websocket.Dialer

	// OnMessage receives every text payload, undecoded. Called from the
	// read goroutine.
	OnMessage func(data []byte)

	// OnState is called after each connect (err nil, connected true) and
	// each drop.
	OnState func(connected bool, err error)

	newBackOff func() backoff.BackOff

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for a ws:// or wss:// URL.
func NewClient(url string) *Client {
	return &Client{
		URL: url,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Run connects and reads until ctx is cancelled. It returns ctx.Err() on
// cancellation, or the last error if the backoff policy gives up.
func (c *Client) Run(ctx context.Context) error {
	b := c.newBackOff()
	b.Reset()

	for {
		err := c.session(ctx, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		logging.Info("Push channel down, reconnecting",
			zap.String("url", c.URL),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection to completion.
func (c *Client) session(ctx context.Context, b backoff.BackOff) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := c.Dialer.DialContext(ctx, c.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.notify(false, err)
		return err
	}
	b.Reset()

	conn.SetReadLimit(maxMessageSize)
	c.setConn(conn)
	logging.LogConnection(c.URL, "websocket_connected")
	c.notify(true, nil)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	defer func() {
		c.setConn(nil)
		_ = conn.Close()
		logging.LogConnection(c.URL, "websocket_closed")
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.notify(false, err)
			return err
		}
		logging.LogWebSocketMessage(c.URL, "received", msgType, data)
		if msgType != websocket.TextMessage {
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(data)
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) notify(connected bool, err error) {
	if c.OnState != nil {
		c.OnState(connected, err)
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one event.
func (c *Client) Send(ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	logging.LogWebSocketMessage(c.URL, "sent", websocket.TextMessage, data)
	return nil
}

// SendWaterNow asks the controller to water now.
func (c *Client) SendWaterNow() error {
	return c.Send(NewEvent(TypeWaterNowBtn))
}
