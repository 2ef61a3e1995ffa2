package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/protonlink/webauth/client"
	"github.com/protonlink/webauth/crypt"
	"github.com/protonlink/webauth/esr"
	"github.com/protonlink/webauth/keygen"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/relay"
	"github.com/stretchr/testify/require"
)

const testChain = "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"

// wallet answers requests the way a wallet app on another device would.
type wallet struct {
	t       *testing.T
	key     *keygen.KeyPair
	channel proto.ChannelAddress
	errs    chan error
}

func newWallet(t *testing.T, relayURL string) *wallet {
	kp, err := keygen.New()
	require.NoError(t, err)
	return &wallet{
		t:       t,
		key:     kp,
		channel: relay.Allocate(relayURL),
		errs:    make(chan error, 4),
	}
}

func (w *wallet) post(url string, p map[string]interface{}) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b)) // nolint:gosec
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// link accepts the identity request shown in a prompt.
func (w *wallet) link(qr string) {
	req, err := esr.Decode(qr)
	if err != nil {
		w.errs <- err
		return
	}
	w.errs <- w.post(req.Callback, map[string]interface{}{
		"sa":        "alice",
		"sp":        "active",
		"cid":       testChain,
		"link_ch":   w.channel.URL(),
		"link_key":  w.key.PublicKeyString(),
		"link_name": "alice's phone",
	})
}

// sign waits for a sealed request on the wallet's channel and signs it.
func (w *wallet) sign(ctx context.Context) {
	var body []byte
	for body == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.channel.URL(), nil)
		if err != nil {
			w.errs <- err
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			w.errs <- err
			return
		}
		if resp.StatusCode == http.StatusOK {
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				w.errs <- err
				return
			}
		}
		_ = resp.Body.Close()
	}
	msg, err := crypt.Unmarshal(body)
	if err != nil {
		w.errs <- err
		return
	}
	plain, err := crypt.Open(msg, w.key.PrivateKey())
	if err != nil {
		w.errs <- err
		return
	}
	req, err := esr.Decode(string(plain))
	if err != nil {
		w.errs <- err
		return
	}
	w.errs <- w.post(req.Callback, map[string]interface{}{
		"sig":  "SIG_K1_first",
		"sig0": "SIG_K1_second",
		"sa":   "alice",
		"sp":   "active",
		"rbn":  "1234",
		"cid":  testChain,
	})
}

type walletPrompter struct {
	w *wallet
}

func (p walletPrompter) Prompt(ctx context.Context, args proto.PromptArgs) *proto.Cancelable {
	for _, e := range args.Elements {
		if e.Type == proto.ElementQR {
			go p.w.link(e.Data)
		}
	}
	return proto.NewCancelable()
}

func TestLoginAndSign(t *testing.T) {
	for _, ws := range []bool{false, true} {
		name := "poll"
		if ws {
			name = "socket"
		}
		t.Run(name, func(t *testing.T) {
			scfg := SetupTestServer(t)
			w := newWallet(t, scfg.URL())

			cfg := client.DefaultConfig()
			cfg.RelayURL = scfg.URL()
			cfg.UseWebSocket = ws
			cfg.LoginTimeout = 10 * time.Second
			c := client.NewClient(cfg, client.WithPrompter(walletPrompter{w}))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			res, err := c.Login(ctx, proto.LoginContext{
				AppName: "dapp",
				Chain:   &proto.ChainDefinition{ID: testChain, URL: "https://proton.greymass.com"},
			})
			require.NoError(t, err)
			require.NoError(t, <-w.errs)
			require.Equal(t, "alice@active", res.Auth.String())

			s, err := c.Session()
			require.NoError(t, err)
			require.True(t, s.HasChannel())
			require.Equal(t, w.channel.URL(), s.ChannelURL)

			go w.sign(ctx)
			expiration := time.Now().Add(time.Minute)
			signed, err := c.Sign(ctx, proto.ResolvedTransaction{
				ChainID: testChain,
				Signer:  res.Auth,
				Transaction: proto.Transaction{
					Expiration: proto.NewTimePointSec(expiration),
					Actions: []proto.Action{{
						Account:       "eosio.token",
						Name:          "transfer",
						Authorization: []proto.PermissionLevel{res.Auth},
					}},
				},
			})
			require.NoError(t, err)
			require.NoError(t, <-w.errs)
			require.Equal(t, []string{"SIG_K1_first", "SIG_K1_second"}, signed.Signatures)
			require.Equal(t, "1234", signed.BlockNum)
		})
	}
}

func TestListenAhead(t *testing.T) {
	cfg := SetupTestServer(t)
	rc := relay.NewClient(true)
	addr := relay.Allocate(cfg.URL())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	release, err := rc.Listen(ctx, addr)
	require.NoError(t, err)
	defer release()
	require.True(t, rc.Attached(addr))

	// Wait reads from the attached socket instead of connecting again.
	rc.Dialer = &websocket.Dialer{
		NetDialContext: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("unexpected dial")
		},
	}
	require.NoError(t, rc.Send(ctx, []byte(`{"sig":"SIG_K1_listen"}`), addr))
	p, err := rc.Wait(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, []string{"SIG_K1_listen"}, p.Signatures())
	require.False(t, rc.Attached(addr))
}

func TestListenRelease(t *testing.T) {
	cfg := SetupTestServer(t)
	rc := relay.NewClient(true)
	addr := relay.Allocate(cfg.URL())

	release, err := rc.Listen(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, rc.Attached(addr))
	release()
	require.False(t, rc.Attached(addr))

	// Long-polling clients have nothing to hold.
	poll := relay.NewClient(false)
	release, err = poll.Listen(context.Background(), addr)
	require.NoError(t, err)
	release()
	require.False(t, poll.Attached(addr))
}
