package popup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/protonlink/webauth/proto"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu     sync.Mutex
	url    string
	posted []string
	closed bool
}

func (w *fakeWindow) PostMessage(data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posted = append(w.posted, data)
	return nil
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Posted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.posted...)
}

type fakeOpener struct {
	mu      sync.Mutex
	windows []*fakeWindow
	opened  chan *fakeWindow
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opened: make(chan *fakeWindow, 8)}
}

func (o *fakeOpener) Open(url, target, features string) (Window, error) {
	w := &fakeWindow{url: url}
	o.mu.Lock()
	o.windows = append(o.windows, w)
	o.mu.Unlock()
	o.opened <- w
	return w, nil
}

func (o *fakeOpener) next(t *testing.T) *fakeWindow {
	t.Helper()
	select {
	case w := <-o.opened:
		return w
	case <-time.After(time.Second):
		t.Fatal("no window was opened")
	}
	return nil
}

func newTestTransport(o Opener, opts ...Option) *Transport {
	opts = append([]Option{WithRegistry(NewRegistry()), WithPollInterval(10 * time.Millisecond)}, opts...)
	return NewTransport(o, opts...)
}

func message(t *testing.T, typ string, data interface{}) string {
	t.Helper()
	m := proto.PopupMessage{Type: typ}
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		m.Data = b
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestURL(t *testing.T) {
	require.Equal(t, "https://webauth.com/login", NewTransport(nil).URL("/login"))
	require.Equal(t, "https://testnet.webauth.com/auth", NewTransport(nil, WithScheme("proton-dev")).URL("/auth"))
}

func TestLogin(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)

	type res struct {
		auth proto.PermissionLevel
		err  error
	}
	done := make(chan res, 1)
	go func() {
		auth, err := tr.Login(context.Background())
		done <- res{auth, err}
	}()

	w := o.next(t)
	require.Equal(t, "https://webauth.com/login", w.url)

	// Messages from other origins are dropped.
	tr.Receive("https://evil.example", message(t, proto.PopupLoginSuccess, proto.PermissionLevel{Actor: "mallory", Permission: "active"}))
	tr.Receive(ProductionOrigin, "not json")
	tr.Receive(ProductionOrigin, message(t, "somethingElse", nil))

	tr.Receive(ProductionOrigin, message(t, proto.PopupIsReady, nil))
	require.Equal(t, StateLoggingIn, tr.State())
	require.Empty(t, w.Posted())

	tr.Receive(ProductionOrigin, message(t, proto.PopupLoginSuccess, proto.PermissionLevel{Actor: "bob", Permission: "active"}))
	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, "bob@active", r.auth.String())
	require.True(t, w.Closed())
	require.Equal(t, StateClosed, tr.State())
	require.Eventually(t, func() bool { return !tr.Polling() }, time.Second, 5*time.Millisecond)
}

func TestTransact(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	tx := proto.Transaction{Actions: []proto.Action{{Account: "eosio.token", Name: "transfer"}}}

	type res struct {
		r   *proto.PopupTransactionResult
		err error
	}
	done := make(chan res, 1)
	go func() {
		r, err := tr.Transact(context.Background(), tx, proto.PopupParams{Broadcast: true})
		done <- res{r, err}
	}()

	w := o.next(t)
	require.Equal(t, "https://webauth.com/auth", w.url)

	tr.Receive(TestnetOrigin, message(t, proto.PopupIsReady, nil))
	tr.Receive(TestnetOrigin, message(t, proto.PopupIsReady, nil))
	posted := w.Posted()
	require.Len(t, posted, 1, "transaction must be posted once")
	require.Equal(t, StateTransacting, tr.State())

	var sent proto.PopupMessage
	require.NoError(t, json.Unmarshal([]byte(posted[0]), &sent))
	require.Equal(t, proto.PopupTransaction, sent.Type)
	var payload proto.PopupTransact
	require.NoError(t, json.Unmarshal(sent.Data, &payload))
	require.True(t, payload.Params.Broadcast)
	require.Equal(t, "transfer", payload.Transaction.Actions[0].Name)

	tr.Receive(TestnetOrigin, message(t, proto.PopupTransactionSuccess, map[string]interface{}{
		"signatures": []string{"SIG_K1_a"},
	}))
	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, []string{"SIG_K1_a"}, r.r.Signatures)
	require.True(t, w.Closed())
}

func TestTransactWalletError(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	done := make(chan error, 1)
	go func() {
		_, err := tr.Transact(context.Background(), proto.Transaction{}, proto.PopupParams{})
		done <- err
	}()
	w := o.next(t)
	tr.Receive(ProductionOrigin, message(t, proto.PopupIsReady, nil))
	tr.Receive(ProductionOrigin, `{"type":"transactionSuccess","error":"User rejected"}`)

	err := <-done
	var we proto.WalletError
	require.True(t, errors.As(err, &we), "expected wallet error, got %v", err)
	require.Equal(t, "User rejected", we.Message)
	require.True(t, w.Closed())
}

func TestClosedByUser(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	done := make(chan error, 1)
	go func() {
		_, err := tr.Login(context.Background())
		done <- err
	}()
	w := o.next(t)
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, proto.ErrPopupClosed)
	case <-time.After(time.Second):
		t.Fatal("closed window was not detected")
	}
	require.Eventually(t, func() bool { return !tr.Polling() }, time.Second, 5*time.Millisecond)
}

func TestCloseMessage(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	done := make(chan error, 1)
	go func() {
		_, err := tr.Login(context.Background())
		done <- err
	}()
	w := o.next(t)
	tr.Receive(ProductionOrigin, message(t, proto.PopupClose, nil))
	require.ErrorIs(t, <-done, proto.ErrPopupClosed)
	require.True(t, w.Closed())
}

func TestSupersede(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	first := make(chan error, 1)
	go func() {
		_, err := tr.Transact(context.Background(), proto.Transaction{}, proto.PopupParams{})
		first <- err
	}()
	w1 := o.next(t)

	second := make(chan error, 1)
	go func() {
		_, err := tr.Login(context.Background())
		second <- err
	}()
	w2 := o.next(t)

	err := <-first
	require.ErrorIs(t, err, proto.ErrSuperseded)
	require.True(t, w1.Closed())
	require.False(t, w2.Closed())

	tr.Receive(ProductionOrigin, message(t, proto.PopupLoginSuccess, proto.PermissionLevel{Actor: "bob", Permission: "owner"}))
	require.NoError(t, <-second)
}

func TestContextCancel(t *testing.T) {
	o := newFakeOpener()
	tr := newTestTransport(o)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tr.Login(ctx)
		done <- err
	}()
	w := o.next(t)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.True(t, w.Closed())
	require.Equal(t, StateClosed, tr.State())
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeWindow{}, &fakeWindow{}
	revoked := make(chan struct{})
	r.Replace(a, func() { close(revoked) })
	require.True(t, r.Owns(a))
	r.Replace(b, nil)
	require.True(t, a.Closed())
	require.False(t, r.Owns(a))
	select {
	case <-revoked:
	case <-time.After(time.Second):
		t.Fatal("previous owner was not revoked")
	}
	require.Equal(t, Window(b), r.Current())
	require.False(t, r.Dispose(a))
	require.True(t, r.Dispose(b))
	require.Nil(t, r.Current())
}

func TestSupersedeAcrossTransports(t *testing.T) {
	r := NewRegistry()
	o := newFakeOpener()
	// A slow poll makes the takeover visible through the registry first.
	a := NewTransport(o, WithRegistry(r), WithPollInterval(time.Hour))
	b := NewTransport(o, WithRegistry(r), WithPollInterval(10*time.Millisecond))

	first := make(chan error, 1)
	go func() {
		_, err := a.Transact(context.Background(), proto.Transaction{}, proto.PopupParams{})
		first <- err
	}()
	w1 := o.next(t)

	second := make(chan error, 1)
	go func() {
		_, err := b.Login(context.Background())
		second <- err
	}()
	w2 := o.next(t)

	select {
	case err := <-first:
		require.ErrorIs(t, err, proto.ErrSuperseded)
		require.False(t, errors.Is(err, proto.ErrPopupClosed))
	case <-time.After(time.Second):
		t.Fatal("first attempt was not superseded")
	}
	require.True(t, w1.Closed())
	require.False(t, w2.Closed())
	require.Equal(t, StateClosed, a.State())
	require.Equal(t, Window(w2), r.Current())

	b.Receive(ProductionOrigin, message(t, proto.PopupLoginSuccess, proto.PermissionLevel{Actor: "bob", Permission: "owner"}))
	require.NoError(t, <-second)
}
