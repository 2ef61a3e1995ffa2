package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/protonlink/webauth/crypt"
	"github.com/protonlink/webauth/esr"
	"github.com/protonlink/webauth/keygen"
	"github.com/protonlink/webauth/popup"
	"github.com/protonlink/webauth/proto"
	"github.com/stretchr/testify/require"
)

const testChain = "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"

type shownPrompt struct {
	args proto.PromptArgs
	c    *proto.Cancelable
}

type fakePrompter struct {
	mu       sync.Mutex
	prompts  []shownPrompt
	onPrompt func(args proto.PromptArgs, c *proto.Cancelable)
}

func (p *fakePrompter) Prompt(ctx context.Context, args proto.PromptArgs) *proto.Cancelable {
	c := proto.NewCancelable()
	p.mu.Lock()
	p.prompts = append(p.prompts, shownPrompt{args, c})
	hook := p.onPrompt
	p.mu.Unlock()
	if hook != nil {
		hook(args, c)
	}
	return c
}

func (p *fakePrompter) first(t *testing.T) shownPrompt {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.prompts)
	return p.prompts[0]
}

type waiterFunc func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error)

func (f waiterFunc) Wait(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
	return f(ctx, addr)
}

// blockingWaiter never receives anything and counts cancellations.
type blockingWaiter struct {
	canceled int32
}

func (w *blockingWaiter) Wait(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
	<-ctx.Done()
	atomic.AddInt32(&w.canceled, 1)
	return nil, ctx.Err()
}

type sent struct {
	body []byte
	addr proto.ChannelAddress
}

type fakeSender struct {
	sent chan sent
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan sent, 4)}
}

func (s *fakeSender) Send(ctx context.Context, body []byte, addr proto.ChannelAddress) error {
	s.sent <- sent{body, addr}
	return nil
}

type fakePopup struct {
	login    func(ctx context.Context) (proto.PermissionLevel, error)
	transact func(ctx context.Context, tx proto.Transaction) (*proto.PopupTransactionResult, error)
}

func (p *fakePopup) Login(ctx context.Context) (proto.PermissionLevel, error) {
	return p.login(ctx)
}

func (p *fakePopup) Transact(ctx context.Context, tx proto.Transaction, params proto.PopupParams) (*proto.PopupTransactionResult, error) {
	return p.transact(ctx, tx)
}

func singleChain() proto.LoginContext {
	return proto.LoginContext{
		AppName: "dapp",
		Chain:   &proto.ChainDefinition{ID: testChain, URL: "https://proton.greymass.com"},
	}
}

func clickButton(args proto.PromptArgs) {
	for _, e := range args.Elements {
		if e.Type == proto.ElementButton {
			e.OnClick()
		}
	}
}

func newWallet(t *testing.T) *keygen.KeyPair {
	t.Helper()
	kp, err := keygen.New()
	require.NoError(t, err)
	return kp
}

func TestLoginRelay(t *testing.T) {
	wallet := newWallet(t)
	var channel proto.ChannelAddress
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		channel = addr
		return &proto.CallbackPayload{
			SA:       "alice",
			SP:       "active",
			ChainID:  testChain,
			LinkCh:   "https://cb.anchor.link/wallet-channel",
			LinkKey:  wallet.PublicKeyString(),
			LinkName: "alice's phone",
			LinkMeta: &proto.LinkMeta{SameDevice: true, LaunchURL: "proton://link"},
		}, nil
	})
	prompter := &fakePrompter{}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(waiter))

	res, err := c.Login(context.Background(), singleChain())
	require.NoError(t, err)
	require.Equal(t, testChain, res.ChainID)
	require.Equal(t, "alice@active", res.Auth.String())
	require.False(t, res.InBrowser)

	s, err := c.Session()
	require.NoError(t, err)
	require.Equal(t, testChain, s.Chain)
	require.Equal(t, "alice", s.Auth.Actor)
	require.Equal(t, "active", s.Auth.Permission)
	require.False(t, s.InBrowser)
	require.Equal(t, "https://cb.anchor.link/wallet-channel", s.ChannelURL)
	require.Equal(t, wallet.PublicKeyString(), s.SignerKey)
	require.True(t, s.SameDevice)
	require.Equal(t, "proton://link", s.LaunchURL)

	kp, err := keygen.FromPrivateKey(s.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, s.RequestKey, kp.PublicKeyString())

	// The request shown to the user answers on the awaited channel.
	shown := prompter.first(t)
	require.Equal(t, proto.ElementQR, shown.args.Elements[0].Type)
	req, err := esr.Decode(shown.args.Elements[0].Data)
	require.NoError(t, err)
	require.Equal(t, channel.URL(), req.Callback)
	var link proto.LinkCreate
	ok, err := req.InfoKey(esr.InfoLink, &link)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.RequestKey, link.RequestKey)
	require.NoError(t, shown.c.Err(), "prompt must be dismissed without error")
}

func TestLoginPopup(t *testing.T) {
	waiter := &blockingWaiter{}
	prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
		clickButton(args)
	}}
	p := &fakePopup{login: func(ctx context.Context) (proto.PermissionLevel, error) {
		return proto.PermissionLevel{Actor: "bob", Permission: "owner"}, nil
	}}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(waiter), WithPopup(p))

	res, err := c.Login(context.Background(), singleChain())
	require.NoError(t, err)
	require.True(t, res.InBrowser)

	s, err := c.Session()
	require.NoError(t, err)
	require.True(t, s.InBrowser)
	require.Equal(t, "bob", s.Auth.Actor)
	require.Equal(t, "owner", s.Auth.Permission)
	require.Equal(t, testChain, s.Chain)
	require.Empty(t, s.ChannelURL)
	require.Empty(t, s.ChannelName)
	require.Empty(t, s.SignerKey)
	require.Empty(t, s.PrivateKey)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&waiter.canceled) == 1
	}, time.Second, 5*time.Millisecond, "relay wait must be torn down")
}

func TestLoginNoPopupButton(t *testing.T) {
	prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
		for _, e := range args.Elements {
			if e.Type == proto.ElementButton {
				t.Error("no popup is configured, no button expected")
			}
		}
		c.Cancel("closed")
	}}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(&blockingWaiter{}))
	_, err := c.Login(context.Background(), singleChain())
	require.ErrorIs(t, err, proto.ErrCanceled)
}

func TestLoginMissingFields(t *testing.T) {
	wallet := newWallet(t)
	full := proto.CallbackPayload{
		SA:       "alice",
		SP:       "active",
		ChainID:  testChain,
		LinkCh:   "https://cb.anchor.link/wallet-channel",
		LinkKey:  wallet.PublicKeyString(),
		LinkName: "phone",
	}
	tests := []struct {
		name  string
		strip func(p *proto.CallbackPayload)
	}{
		{"channel", func(p *proto.CallbackPayload) { p.LinkCh = "" }},
		{"signer key", func(p *proto.CallbackPayload) { p.LinkKey = "" }},
		{"channel name", func(p *proto.CallbackPayload) { p.LinkName = "" }},
		{"chain id", func(p *proto.CallbackPayload) { p.ChainID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := full
			tt.strip(&p)
			prompter := &fakePrompter{}
			c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(waiterFunc(
				func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
					return &p, nil
				})))

			_, err := c.Login(context.Background(), singleChain())
			require.ErrorIs(t, err, proto.ErrProtocol)

			shown := prompter.first(t)
			var ce proto.CanceledError
			require.True(t, errors.As(shown.c.Err(), &ce), "prompt must be cancelled")
			require.Equal(t, msgInvalidResponse, ce.Reason)

			_, err = c.Session()
			require.ErrorIs(t, err, proto.ErrMissingSession)
		})
	}
}

func TestLoginVerifierRejects(t *testing.T) {
	wallet := newWallet(t)
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		return &proto.CallbackPayload{
			SA: "alice", SP: "active", ChainID: "other-chain",
			LinkCh: "https://cb.anchor.link/x", LinkKey: wallet.PublicKeyString(), LinkName: "phone",
		}, nil
	})
	prompter := &fakePrompter{}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(waiter))
	_, err := c.Login(context.Background(), singleChain())
	require.ErrorIs(t, err, proto.ErrProtocol)
	require.ErrorIs(t, prompter.first(t).c.Err(), proto.ErrCanceled)
}

func TestLoginExactlyOneOutcome(t *testing.T) {
	// Relay and popup answer at the same time; only one may win.
	wallet := newWallet(t)
	for i := 0; i < 20; i++ {
		prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
			clickButton(args)
		}}
		waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
			return &proto.CallbackPayload{
				SA: "alice", SP: "active", ChainID: testChain,
				LinkCh: "https://cb.anchor.link/x", LinkKey: wallet.PublicKeyString(), LinkName: "phone",
			}, nil
		})
		p := &fakePopup{login: func(ctx context.Context) (proto.PermissionLevel, error) {
			return proto.PermissionLevel{Actor: "bob", Permission: "owner"}, nil
		}}
		c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(waiter), WithPopup(p))
		res, err := c.Login(context.Background(), singleChain())
		require.NoError(t, err)
		s, err := c.Session()
		require.NoError(t, err)
		if res.InBrowser {
			require.Equal(t, "bob", s.Auth.Actor)
			require.Empty(t, s.ChannelURL)
		} else {
			require.Equal(t, "alice", s.Auth.Actor)
			require.NotEmpty(t, s.ChannelURL)
		}
	}
}

func TestLoginErrors(t *testing.T) {
	t.Run("no chain", func(t *testing.T) {
		c := NewClient(DefaultConfig(), WithPrompter(&fakePrompter{}))
		_, err := c.Login(context.Background(), proto.LoginContext{AppName: "dapp"})
		require.ErrorIs(t, err, proto.ErrContext)
	})
	t.Run("no ui", func(t *testing.T) {
		_, err := NewClient(DefaultConfig()).Login(context.Background(), singleChain())
		require.ErrorIs(t, err, proto.ErrContext)
	})
	t.Run("timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LoginTimeout = 20 * time.Millisecond
		prompter := &fakePrompter{}
		c := NewClient(cfg, WithPrompter(prompter), WithWaiter(&blockingWaiter{}))
		_, err := c.Login(context.Background(), singleChain())
		require.ErrorIs(t, err, proto.ErrTimeout)
		var ce proto.CanceledError
		require.True(t, errors.As(prompter.first(t).c.Err(), &ce))
		require.Equal(t, msgExpired, ce.Reason)
	})
	t.Run("popup closed", func(t *testing.T) {
		prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
			clickButton(args)
		}}
		p := &fakePopup{login: func(ctx context.Context) (proto.PermissionLevel, error) {
			return proto.PermissionLevel{}, proto.ErrPopupClosed
		}}
		c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(&blockingWaiter{}), WithPopup(p))
		_, err := c.Login(context.Background(), singleChain())
		require.ErrorIs(t, err, proto.ErrProtocol)
		require.ErrorIs(t, err, proto.ErrPopupClosed)
	})
}

// relaySession returns a session bound to a channel on the wallet's key.
func relaySession(t *testing.T, wallet *keygen.KeyPair) *SessionData {
	t.Helper()
	kp := newWallet(t)
	return &SessionData{
		Chain:       testChain,
		Auth:        proto.PermissionLevel{Actor: "alice", Permission: "active"},
		RequestKey:  kp.PublicKeyString(),
		PrivateKey:  kp.PrivateKeyString(),
		ChannelURL:  "https://cb.anchor.link/wallet-channel",
		ChannelName: "alice's phone",
		SignerKey:   wallet.PublicKeyString(),
	}
}

func transfer(expiration time.Time) proto.ResolvedTransaction {
	return proto.ResolvedTransaction{
		ChainID: testChain,
		Signer:  proto.PermissionLevel{Actor: "alice", Permission: "active"},
		Transaction: proto.Transaction{
			Expiration: proto.NewTimePointSec(expiration),
			Actions: []proto.Action{{
				Account:       "eosio.token",
				Name:          "transfer",
				Authorization: []proto.PermissionLevel{{Actor: "alice", Permission: "active"}},
			}},
		},
	}
}

func TestSignRelay(t *testing.T) {
	wallet := newWallet(t)
	sender := newFakeSender()
	var channel proto.ChannelAddress
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		channel = addr
		return &proto.CallbackPayload{Sig: "SIG_K1_a", ExtraSigs: []string{"SIG_K1_b"}, SA: "alice", SP: "active", RBN: "42"}, nil
	})
	prompter := &fakePrompter{}
	c := NewClient(DefaultConfig(),
		WithPrompter(prompter), WithWaiter(waiter), WithSender(sender),
		WithSession(relaySession(t, wallet)))

	res, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, []string{"SIG_K1_a", "SIG_K1_b"}, res.Signatures)
	require.Equal(t, "alice@active", res.Signer.String())
	require.Equal(t, "42", res.BlockNum)
	require.Equal(t, "transfer", res.Transaction.Actions[0].Name)

	// The sealed request opens with the wallet's key and answers on the
	// awaited channel.
	var s sent
	select {
	case s = <-sender.sent:
	case <-time.After(time.Second):
		t.Fatal("request was not delivered")
	}
	require.Equal(t, "wallet-channel", s.addr.Channel)
	msg, err := crypt.Unmarshal(s.body)
	require.NoError(t, err)
	plain, err := crypt.Open(msg, wallet.PrivateKey())
	require.NoError(t, err)
	req, err := esr.Decode(string(plain))
	require.NoError(t, err)
	require.Equal(t, channel.URL(), req.Callback)
	require.True(t, req.Background)
	var info proto.LinkInfo
	ok, err := req.InfoKey(esr.InfoLink, &info)
	require.NoError(t, err)
	require.True(t, ok)

	shown := prompter.first(t)
	require.Equal(t, proto.ElementCountdown, shown.args.Elements[0].Type)
	require.NoError(t, shown.c.Err())
}

func TestSignNoSignatures(t *testing.T) {
	wallet := newWallet(t)
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		return &proto.CallbackPayload{SA: "alice", SP: "active"}, nil
	})
	prompter := &fakePrompter{}
	c := NewClient(DefaultConfig(),
		WithPrompter(prompter), WithWaiter(waiter), WithSender(newFakeSender()),
		WithSession(relaySession(t, wallet)))

	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.ErrorIs(t, err, proto.ErrProtocol)
	require.Equal(t, msgNotCompleted, err.Error())
	var ce proto.CanceledError
	require.True(t, errors.As(prompter.first(t).c.Err(), &ce))
	require.Equal(t, msgNotCompleted, ce.Reason)
}

func TestSignExpired(t *testing.T) {
	wallet := newWallet(t)
	prompter := &fakePrompter{}
	waiter := &blockingWaiter{}
	c := NewClient(DefaultConfig(),
		WithPrompter(prompter), WithWaiter(waiter), WithSender(newFakeSender()),
		WithSession(relaySession(t, wallet)))

	done := make(chan error, 1)
	go func() {
		_, err := c.Sign(context.Background(), transfer(time.Now().Add(-time.Minute)))
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, proto.ErrTimeout)
		require.Equal(t, msgExpired, err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("expired sign did not fail")
	}
	require.ErrorIs(t, prompter.first(t).c.Err(), proto.ErrCanceled)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&waiter.canceled) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSignWithoutChannel(t *testing.T) {
	var navigated []string
	var mu sync.Mutex
	nav := NavigatorFunc(func(url string) error {
		mu.Lock()
		defer mu.Unlock()
		navigated = append(navigated, url)
		return nil
	})
	sender := newFakeSender()
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		return &proto.CallbackPayload{Sig: "SIG_K1_a"}, nil
	})
	s := &SessionData{Chain: testChain, Auth: proto.PermissionLevel{Actor: "alice", Permission: "active"}}
	c := NewClient(DefaultConfig(),
		WithPrompter(&fakePrompter{}), WithWaiter(waiter), WithSender(sender),
		WithNavigator(nav), WithSession(s))

	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, sender.sent, 0)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, navigated, 1)
	req, err := esr.Decode(navigated[0])
	require.NoError(t, err)
	var same bool
	ok, err := req.InfoKey(esr.InfoSameDevice, &same)
	require.NoError(t, err)
	require.True(t, ok && same)
}

func TestSignSameDeviceLaunch(t *testing.T) {
	wallet := newWallet(t)
	s := relaySession(t, wallet)
	s.SameDevice = true
	s.LaunchURL = "proton://link"
	launched := make(chan string, 4)
	nav := NavigatorFunc(func(url string) error {
		launched <- url
		return nil
	})
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		return &proto.CallbackPayload{Sig: "SIG_K1_a"}, nil
	})
	c := NewClient(DefaultConfig(),
		WithPrompter(&fakePrompter{}), WithWaiter(waiter), WithSender(newFakeSender()),
		WithNavigator(nav), WithSession(s))
	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, "proton://link", <-launched)
}

func TestSignManually(t *testing.T) {
	wallet := newWallet(t)
	answer := make(chan struct{})
	waiter := waiterFunc(func(ctx context.Context, addr proto.ChannelAddress) (*proto.CallbackPayload, error) {
		select {
		case <-answer:
			return &proto.CallbackPayload{Sig: "SIG_K1_a"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	prompter := &fakePrompter{}
	prompter.onPrompt = func(args proto.PromptArgs, c *proto.Cancelable) {
		if args.Title == "Sign manually" {
			close(answer)
			return
		}
		go clickButton(args)
	}
	c := NewClient(DefaultConfig(),
		WithPrompter(prompter), WithWaiter(waiter), WithSender(newFakeSender()),
		WithSession(relaySession(t, wallet)))
	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.NoError(t, err)

	prompter.mu.Lock()
	defer prompter.mu.Unlock()
	require.Len(t, prompter.prompts, 2)
	manual := prompter.prompts[1]
	require.Equal(t, proto.ElementQR, manual.args.Elements[0].Type)
	require.Equal(t, manual.args.Elements[0].Data, manual.args.Elements[1].Href)
	select {
	case <-manual.c.Done():
	default:
		t.Error("manual prompt must be dismissed")
	}
}

func TestSignInBrowser(t *testing.T) {
	p := &fakePopup{transact: func(ctx context.Context, tx proto.Transaction) (*proto.PopupTransactionResult, error) {
		return &proto.PopupTransactionResult{
			Signatures:            []string{"SIG_K1_a"},
			SerializedTransaction: proto.Bytes{0x01, 0x02},
			Signer:                proto.PermissionLevel{Actor: "bob", Permission: "owner"},
		}, nil
	}}
	s := &SessionData{Chain: testChain, Auth: proto.PermissionLevel{Actor: "bob", Permission: "owner"}, InBrowser: true}
	c := NewClient(DefaultConfig(), WithPrompter(&fakePrompter{}), WithPopup(p), WithSession(s))
	res, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, []string{"SIG_K1_a"}, res.Signatures)
	require.Equal(t, proto.Bytes{0x01, 0x02}, res.SerializedTransaction)
	require.Equal(t, "bob@owner", res.Signer.String())
}

type testWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *testWindow) PostMessage(string) error { return nil }

func (w *testWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *testWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func TestSignCanceled(t *testing.T) {
	win := &testWindow{}
	opened := make(chan struct{})
	tr := popup.NewTransport(popup.OpenerFunc(func(url, target, features string) (popup.Window, error) {
		close(opened)
		return win, nil
	}), popup.WithRegistry(popup.NewRegistry()), popup.WithPollInterval(10*time.Millisecond))

	prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
		go func() {
			<-opened
			c.Cancel("closed by user")
		}()
	}}
	s := &SessionData{Chain: testChain, Auth: proto.PermissionLevel{Actor: "bob", Permission: "owner"}, InBrowser: true}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithPopup(tr), WithSession(s))

	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.ErrorIs(t, err, proto.ErrCanceled)
	require.Equal(t, "closed by user", err.Error())
	require.Eventually(t, win.Closed, time.Second, 5*time.Millisecond, "window must be closed")
	require.Eventually(t, func() bool { return !tr.Polling() }, time.Second, 5*time.Millisecond)
}

func TestSignWithoutSession(t *testing.T) {
	c := NewClient(DefaultConfig(), WithPrompter(&fakePrompter{}))
	_, err := c.Sign(context.Background(), transfer(time.Now().Add(time.Minute)))
	require.ErrorIs(t, err, proto.ErrMissingSession)
}

type memStore struct {
	s *SessionData
}

func (m *memStore) LoadSession() (*SessionData, error) {
	if m.s == nil {
		return nil, proto.ErrMissingSession
	}
	return m.s, nil
}

func (m *memStore) SaveSession(s *SessionData) error {
	m.s = s
	return nil
}

func (m *memStore) DeleteSession() error {
	m.s = nil
	return nil
}

func TestSessionStore(t *testing.T) {
	store := &memStore{}
	p := &fakePopup{login: func(ctx context.Context) (proto.PermissionLevel, error) {
		return proto.PermissionLevel{Actor: "bob", Permission: "owner"}, nil
	}}
	prompter := &fakePrompter{onPrompt: func(args proto.PromptArgs, c *proto.Cancelable) {
		clickButton(args)
	}}
	c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(&blockingWaiter{}), WithPopup(p), WithSessionStore(store))
	_, err := c.Login(context.Background(), singleChain())
	require.NoError(t, err)
	require.NotNil(t, store.s)

	// A fresh client picks the stored session up.
	s, err := NewClient(DefaultConfig(), WithSessionStore(store)).Session()
	require.NoError(t, err)
	require.Equal(t, "bob", s.Auth.Actor)

	require.NoError(t, c.Logout())
	require.Nil(t, store.s)
	_, err = c.Session()
	require.ErrorIs(t, err, proto.ErrMissingSession)
}

func TestCallerGivesUp(t *testing.T) {
	t.Run("login canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		prompter := &fakePrompter{onPrompt: func(proto.PromptArgs, *proto.Cancelable) { cancel() }}
		c := NewClient(DefaultConfig(), WithPrompter(prompter), WithWaiter(&blockingWaiter{}))
		_, err := c.Login(ctx, singleChain())
		require.ErrorIs(t, err, proto.ErrCanceled)
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, prompter.first(t).c.Err(), proto.ErrCanceled)
	})
	t.Run("sign deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		prompter := &fakePrompter{}
		c := NewClient(DefaultConfig(),
			WithPrompter(prompter), WithWaiter(&blockingWaiter{}), WithSender(newFakeSender()),
			WithSession(relaySession(t, newWallet(t))))
		_, err := c.Sign(ctx, transfer(time.Now().Add(time.Minute)))
		require.ErrorIs(t, err, proto.ErrTimeout)
		require.False(t, errors.Is(err, context.DeadlineExceeded))
		require.ErrorIs(t, prompter.first(t).c.Err(), proto.ErrCanceled)
	})
	t.Run("sign in browser canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		prompter := &fakePrompter{onPrompt: func(proto.PromptArgs, *proto.Cancelable) { cancel() }}
		p := &fakePopup{transact: func(ctx context.Context, tx proto.Transaction) (*proto.PopupTransactionResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		c := NewClient(DefaultConfig(), WithPrompter(prompter), WithPopup(p),
			WithSession(&SessionData{Chain: testChain, Auth: proto.PermissionLevel{Actor: "bob", Permission: "owner"}, InBrowser: true}))
		_, err := c.Sign(ctx, transfer(time.Now().Add(time.Minute)))
		require.ErrorIs(t, err, proto.ErrCanceled)
	})
}

func TestCallerError(t *testing.T) {
	cases := []struct {
		in     error
		target error
	}{
		{context.Canceled, proto.ErrCanceled},
		{context.DeadlineExceeded, proto.ErrTimeout},
		{proto.TimeoutError{Reason: msgExpired}, proto.ErrTimeout},
		{proto.ProtocolError{Reason: "boom"}, proto.ErrProtocol},
	}
	for _, c := range cases {
		require.ErrorIs(t, callerError(c.in), c.target)
	}
	user := proto.CanceledError{Reason: "dismissed"}
	require.Equal(t, error(user), callerError(user))
}
