// Package popup drives a wallet web app running in a separate browser
// window. Only one such window exists at a time; messages from the window are
// fed to the Transport through Receive.
package popup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/esr"
	"github.com/protonlink/webauth/proto"
)

// Wallet web app origins. Messages from any other origin are ignored.
const (
	ProductionOrigin = "https://webauth.com"
	TestnetOrigin    = "https://testnet.webauth.com"
)

// OpenSettings are the window features of every wallet window.
const OpenSettings = "menubar=1,resizable=1,width=400,height=600"

// DefaultPollInterval is how often an open window is checked for having been
// closed by the user.
const DefaultPollInterval = 500 * time.Millisecond

const supersededReason = "Trying to login"

// State is the state of the wallet window.
type State int

// Window states.
const (
	StateClosed State = iota
	StateOpening
	StateReady
	StateTransacting
	StateLoggingIn
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateTransacting:
		return "transacting"
	case StateLoggingIn:
		return "logging in"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type opKind int

const (
	opLogin opKind = iota
	opTransact
)

type outcome struct {
	auth   proto.PermissionLevel
	result *proto.PopupTransactionResult
	err    error
}

// pendingOp is the login or transaction waiting on the current window.
type pendingOp struct {
	kind    opKind
	payload *proto.PopupTransact
	sent    bool
	done    chan outcome
}

// Transport manages the wallet window and its message protocol.
type Transport struct {
	opener       Opener
	registry     *Registry
	scheme       string
	pollInterval time.Duration

	mu      sync.Mutex
	state   State
	win     Window
	op      *pendingOp
	polling bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithRegistry sets the registry owning the window.
func WithRegistry(r *Registry) Option {
	return func(t *Transport) {
		t.registry = r
	}
}

// WithScheme selects the wallet host. proton-dev uses the testnet wallet.
func WithScheme(scheme string) Option {
	return func(t *Transport) {
		t.scheme = scheme
	}
}

// WithPollInterval sets how often the window is checked for being closed.
func WithPollInterval(d time.Duration) Option {
	return func(t *Transport) {
		t.pollInterval = d
	}
}

// NewTransport returns a Transport opening windows through opener.
func NewTransport(opener Opener, opts ...Option) *Transport {
	t := &Transport{
		opener:       opener,
		registry:     DefaultRegistry,
		scheme:       esr.SchemeProton,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the wallet URL for path.
func (t *Transport) URL(path string) string {
	if t.scheme == esr.SchemeProtonDev {
		return TestnetOrigin + path
	}
	return ProductionOrigin + path
}

// AllowedOrigin reports whether messages from origin are accepted.
func AllowedOrigin(origin string) bool {
	return origin == ProductionOrigin || origin == TestnetOrigin
}

// State returns the current window state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Polling reports whether the close detection loop is running.
func (t *Transport) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polling
}

// Login opens the wallet's login page and waits for the user to log in.
func (t *Transport) Login(ctx context.Context) (proto.PermissionLevel, error) {
	op, err := t.begin(opLogin, "/login", nil)
	if err != nil {
		return proto.PermissionLevel{}, err
	}
	o := t.wait(ctx, op)
	return o.auth, o.err
}

// Transact opens the wallet's auth page, hands it the transaction once the
// page reports ready, and waits for the result.
func (t *Transport) Transact(ctx context.Context, tx proto.Transaction, params proto.PopupParams) (*proto.PopupTransactionResult, error) {
	op, err := t.begin(opTransact, "/auth", &proto.PopupTransact{Transaction: tx, Params: params})
	if err != nil {
		return nil, err
	}
	o := t.wait(ctx, op)
	return o.result, o.err
}

// Close tells the window to close, closes it, and rejects whatever was
// waiting on it.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.win != nil {
		b, _ := json.Marshal(proto.PopupMessage{Type: proto.PopupClose})
		err = t.win.PostMessage(string(b))
	}
	t.closeWindow()
	t.settle(outcome{err: proto.ErrPopupClosed})
	return err
}

func (t *Transport) begin(kind opKind, path string, payload *proto.PopupTransact) (*pendingOp, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeWindow()
	t.settle(outcome{err: proto.SupersededError{Reason: supersededReason}})

	w, err := t.opener.Open(t.URL(path), "_blank", OpenSettings)
	if err != nil {
		return nil, fmt.Errorf("could not open wallet window: %w", err)
	}
	t.registry.Replace(w, func() { t.revoke(w) })
	t.win = w
	t.state = StateOpening
	op := &pendingOp{
		kind:    kind,
		payload: payload,
		done:    make(chan outcome, 1),
	}
	t.op = op
	if !t.polling {
		t.polling = true
		go t.poll()
	}
	log.Debug("opened wallet window", "url", t.URL(path))
	return op, nil
}

func (t *Transport) wait(ctx context.Context, op *pendingOp) outcome {
	select {
	case o := <-op.done:
		return o
	case <-ctx.Done():
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.op == op {
			t.op = nil
			t.closeWindow()
		}
		// The window may have answered at the same instant.
		select {
		case o := <-op.done:
			return o
		default:
		}
		return outcome{err: ctx.Err()}
	}
}

// Receive handles a message posted by the wallet window. Messages from
// unknown origins, unparseable messages and unknown types are ignored.
func (t *Transport) Receive(origin string, data string) {
	if !AllowedOrigin(origin) {
		log.Debug("ignoring message from unknown origin", "origin", origin)
		return
	}
	var msg proto.PopupMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil || msg.Type == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch msg.Type {
	case proto.PopupIsReady:
		t.ready()
	case proto.PopupClose:
		t.closeWindow()
		t.settle(outcome{err: proto.ErrPopupClosed})
	case proto.PopupTransactionSuccess:
		t.closeWindow()
		if t.op == nil || t.op.kind != opTransact {
			return
		}
		if msg.HasError() {
			t.settle(outcome{err: proto.NewWalletError(msg.Error)})
			return
		}
		var res proto.PopupTransactionResult
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			t.settle(outcome{err: fmt.Errorf("invalid transaction result: %w", err)})
			return
		}
		t.settle(outcome{result: &res})
	case proto.PopupLoginSuccess:
		t.closeWindow()
		if t.op == nil || t.op.kind != opLogin {
			return
		}
		if msg.HasError() {
			t.settle(outcome{err: proto.NewWalletError(msg.Error)})
			return
		}
		var auth proto.PermissionLevel
		if err := json.Unmarshal(msg.Data, &auth); err != nil {
			t.settle(outcome{err: fmt.Errorf("invalid login result: %w", err)})
			return
		}
		t.settle(outcome{auth: auth})
	}
}

// ready handles isReady. The transaction is posted at most once per attempt.
func (t *Transport) ready() {
	if t.op == nil || t.win == nil {
		return
	}
	if t.state == StateOpening {
		t.state = StateReady
	}
	switch t.op.kind {
	case opLogin:
		t.state = StateLoggingIn
	case opTransact:
		if t.op.sent {
			return
		}
		t.op.sent = true
		data, err := json.Marshal(t.op.payload)
		if err != nil {
			t.closeWindow()
			t.settle(outcome{err: err})
			return
		}
		b, _ := json.Marshal(proto.PopupMessage{Type: proto.PopupTransaction, Data: data})
		if err := t.win.PostMessage(string(b)); err != nil {
			log.Warn("could not post transaction to wallet window", "err", err)
			t.closeWindow()
			t.settle(outcome{err: err})
			return
		}
		t.state = StateTransacting
	}
}

// poll detects windows closed by the user. It exits as soon as no window
// remains.
func (t *Transport) poll() {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		if t.win == nil {
			t.polling = false
			t.mu.Unlock()
			return
		}
		if t.win.Closed() {
			if t.registry.Owns(t.win) {
				log.Debug("wallet window was closed")
				t.registry.Release(t.win)
				t.settle(outcome{err: proto.ErrPopupClosed})
			} else {
				// Another transport took over the window.
				t.settle(outcome{err: proto.SupersededError{Reason: supersededReason}})
			}
			t.win = nil
			t.state = StateClosed
			t.polling = false
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
}

// revoke rejects the pending op once another transport replaced w.
func (t *Transport) revoke(w Window) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.win != w {
		return
	}
	log.Debug("wallet window taken over by another attempt")
	t.win = nil
	t.state = StateClosed
	t.settle(outcome{err: proto.SupersededError{Reason: supersededReason}})
}

// closeWindow must be called with mu held.
func (t *Transport) closeWindow() {
	if t.win != nil {
		t.registry.Dispose(t.win)
		t.win = nil
	}
	t.state = StateClosed
}

// settle must be called with mu held.
func (t *Transport) settle(o outcome) {
	if t.op == nil {
		return
	}
	op := t.op
	t.op = nil
	op.done <- o
}
