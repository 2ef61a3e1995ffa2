// Package client logs users in and gets transactions signed through a
// remote wallet. Requests reach the wallet over a relay channel, as a deep
// link on the same device, or through the wallet's web app in a popup window.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/relay"
)

// Popup is the wallet web app running in a separate window.
type Popup interface {
	Login(ctx context.Context) (proto.PermissionLevel, error)
	Transact(ctx context.Context, tx proto.Transaction, params proto.PopupParams) (*proto.PopupTransactionResult, error)
}

// Navigator opens URLs on this device, waking up the wallet app.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(url string) error {
	return f(url)
}

// Client is the webauth client.
type Client struct {
	Config *Config

	prompter  proto.Prompter
	waiter    relay.Waiter
	sender    relay.Sender
	popup     Popup
	verifier  Verifier
	navigator Navigator
	store     SessionStore
	platform  PlatformHints
	now       func() time.Time

	sessionLock sync.Mutex
	session     *SessionData
}

// Option configures a Client.
type Option func(*Client)

// WithPrompter sets the service prompts are shown with.
func WithPrompter(p proto.Prompter) Option {
	return func(c *Client) {
		c.prompter = p
	}
}

// WithWaiter sets how responses are awaited on relay channels.
func WithWaiter(w relay.Waiter) Option {
	return func(c *Client) {
		c.waiter = w
	}
}

// WithSender sets how sealed requests are delivered to the wallet's channel.
func WithSender(s relay.Sender) Option {
	return func(c *Client) {
		c.sender = s
	}
}

// WithPopup enables logging in and signing through the wallet window.
func WithPopup(p Popup) Option {
	return func(c *Client) {
		c.popup = p
	}
}

// WithVerifier sets the verifier of relay login responses.
func WithVerifier(v Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

// WithNavigator sets how same-device URLs are opened.
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithSessionStore persists sessions in s.
func WithSessionStore(s SessionStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithPlatform sets the platform hints used for delivery decisions.
func WithPlatform(p PlatformHints) Option {
	return func(c *Client) {
		c.platform = p
	}
}

// WithNowTime sets the clock.
func WithNowTime(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSession starts the client with an existing session.
func WithSession(s *SessionData) Option {
	return func(c *Client) {
		c.session = s
	}
}

// NewClient creates a new client. Without options it talks to the configured
// relay and verifies logins with DefaultVerifier.
func NewClient(cfg *Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rc := relay.NewClient(cfg.UseWebSocket)
	c := &Client{
		Config:   cfg,
		waiter:   rc,
		sender:   rc,
		verifier: DefaultVerifier{},
		platform: PlatformHints{UserAgent: cfg.UserAgent},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithDefaults creates a client configured from the environment.
func NewClientWithDefaults(opts ...Option) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts...), nil
}

// Policy returns the delivery policy of the client.
func (c *Client) Policy() Policy {
	return Policy{Scheme: c.Config.Scheme, OfferPopup: c.popup != nil}
}

// Session returns a copy of the current session, loading it from the
// session store if needed.
func (c *Client) Session() (*SessionData, error) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	if c.session == nil && c.store != nil {
		s, err := c.store.LoadSession()
		if err != nil {
			return nil, err
		}
		c.session = s
	}
	if c.session == nil {
		return nil, proto.ErrMissingSession
	}
	s := *c.session
	return &s, nil
}

// Logout forgets the current session.
func (c *Client) Logout() error {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	c.session = nil
	if c.store == nil {
		return nil
	}
	if err := c.store.DeleteSession(); err != nil && !errors.Is(err, proto.ErrMissingSession) {
		return err
	}
	return nil
}

func (c *Client) setSession(s *SessionData) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	c.session = s
	if c.store == nil {
		return
	}
	if err := c.store.SaveSession(s); err != nil {
		log.Warn("could not save session", "err", err)
	}
}

// navigate is best effort.
func (c *Client) navigate(url string) {
	if c.navigator == nil {
		log.Debug("no navigator, not opening", "url", url)
		return
	}
	if err := c.navigator.Navigate(url); err != nil {
		log.Warn("could not open url", "url", url, "err", err)
	}
}
