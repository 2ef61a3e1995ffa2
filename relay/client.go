package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/protonlink/webauth/proto"
)

const (
	defaultRetryDelay = time.Second
	maxNetworkRetries = 3
	maxMessageSize    = 1 << 20
)

// Waiter resolves with the first message published to a channel.
type Waiter interface {
	Wait(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error)
}

// Listener connects to a channel ahead of the Wait on it, so nothing
// published in between is missed. release drops a connection Wait never
// took.
type Listener interface {
	Listen(ctx context.Context, addr proto.ChannelAddress) (release func(), err error)
}

// Sender publishes a message to a channel.
type Sender interface {
	Send(ctx context.Context, body []byte, addr proto.ChannelAddress) error
}

// Client is a relay client. It is both a Waiter and a Sender.
type Client struct {
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	// UseWebSocket makes Wait listen on a socket instead of long-polling.
	UseWebSocket bool
	RetryDelay   time.Duration

	mu   sync.Mutex
	held map[string]*websocket.Conn
}

// NewClient returns a relay client with default settings.
func NewClient(useWebSocket bool) *Client {
	return &Client{
		HTTPClient:   &http.Client{},
		Dialer:       websocket.DefaultDialer,
		UseWebSocket: useWebSocket,
		RetryDelay:   defaultRetryDelay,
	}
}

// RelayError is a failure reported by the relay service.
type RelayError struct {
	Status  int
	Message string
}

// Error returns the relay's message.
func (e RelayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("relay error: %s", e.Message)
}

// Wait blocks until a message arrives on the channel and decodes it as a
// callback payload. A socket attached to the channel is read from instead
// of connecting anew.
func (c *Client) Wait(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
	var (
		b   []byte
		err error
	)
	switch conn := c.take(addr); {
	case conn != nil:
		b, err = readSocket(ctx, conn)
	case c.UseWebSocket:
		b, err = c.receiveSocket(ctx, addr)
	default:
		b, err = c.receivePoll(ctx, addr)
	}
	if err != nil {
		return nil, err
	}
	return decodePayload(b)
}

// Attach hands an already connected socket for addr to the next Wait on
// it. A socket attached earlier and not yet taken is closed.
func (c *Client) Attach(addr proto.ChannelAddress, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		c.held = make(map[string]*websocket.Conn)
	}
	if prev := c.held[addr.URL()]; prev != nil && prev != conn {
		_ = prev.Close()
	}
	c.held[addr.URL()] = conn
}

// Listen connects the socket of addr now and attaches it. Long-polling
// clients have nothing to connect; the relay keeps messages for them.
func (c *Client) Listen(ctx context.Context, addr proto.ChannelAddress) (func(), error) {
	if !c.UseWebSocket {
		return func() {}, nil
	}
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.Attach(addr, conn)
	return func() {
		c.mu.Lock()
		held := c.held[addr.URL()] == conn
		if held {
			delete(c.held, addr.URL())
		}
		c.mu.Unlock()
		if held {
			_ = conn.Close()
		}
	}, nil
}

// Attached reports whether a socket waits to be taken for addr.
func (c *Client) Attached(addr proto.ChannelAddress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[addr.URL()] != nil
}

func (c *Client) take(addr proto.ChannelAddress) *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.held[addr.URL()]
	delete(c.held, addr.URL())
	return conn
}

// Send publishes body on the channel.
func (c *Client) Send(ctx context.Context, body []byte, addr proto.ChannelAddress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr.URL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck
	if resp.StatusCode/100 != 2 {
		return relayError(resp)
	}
	return nil
}

func (c *Client) receivePoll(ctx context.Context, addr proto.ChannelAddress) ([]byte, error) {
	failures := 0
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr.URL(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures > maxNetworkRetries {
				return nil, err
			}
			log.Debug("relay poll failed, retrying", "channel", addr.Channel, "err", err)
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
			continue
		}
		failures = 0
		switch resp.StatusCode {
		case http.StatusOK:
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageSize))
			resp.Body.Close() // nolint:errcheck
			return b, err
		case http.StatusAccepted, http.StatusRequestTimeout, http.StatusGatewayTimeout:
			// Nothing yet; the relay held the request as long as it could.
			resp.Body.Close() // nolint:errcheck
		default:
			err := relayError(resp)
			resp.Body.Close() // nolint:errcheck
			return nil, err
		}
	}
}

func (c *Client) receiveSocket(ctx context.Context, addr proto.ChannelAddress) ([]byte, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return readSocket(ctx, conn)
}

func (c *Client) dial(ctx context.Context, addr proto.ChannelAddress) (*websocket.Conn, error) {
	d := c.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	conn, resp, err := d.DialContext(ctx, socketURL(addr.URL()), nil)
	if err != nil {
		if resp != nil && resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, relayError(resp)
		}
		return nil, err
	}
	return conn, nil
}

func readSocket(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	conn.SetReadLimit(maxMessageSize)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close() // nolint:errcheck
	for {
		mt, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return b, nil
		}
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) sleep(ctx context.Context) error {
	d := c.RetryDelay
	if d <= 0 {
		d = defaultRetryDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func socketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func decodePayload(b []byte) (*proto.CallbackPayload, error) {
	var p proto.CallbackPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("invalid callback payload: %w", err)
	}
	return &p, nil
}

func relayError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	re := RelayError{Status: resp.StatusCode}
	if len(bytes.TrimSpace(b)) > 0 {
		re.Message = proto.ErrorMessage(b)
	}
	return re
}
