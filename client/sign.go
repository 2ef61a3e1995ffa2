package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/crypt"
	"github.com/protonlink/webauth/esr"
	"github.com/protonlink/webauth/keygen"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/race"
	"github.com/protonlink/webauth/relay"
)

// Sign asks the wallet of the current session to sign rt. The call is
// abandoned once the transaction expires.
func (c *Client) Sign(ctx context.Context, rt proto.ResolvedTransaction) (*proto.SignResponse, error) {
	if c.prompter == nil {
		return nil, proto.ContextError{Reason: msgNoUI}
	}
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	expiration := rt.Transaction.Expiration.Time
	// Already expired transactions fire right away.
	deadline := race.After[outcome](expiration.Sub(c.now()), proto.TimeoutError{Reason: msgExpired})
	if s.InBrowser {
		return c.signInBrowser(ctx, rt, expiration, deadline)
	}
	return c.signRelay(ctx, s, rt, expiration, deadline)
}

func (c *Client) signInBrowser(ctx context.Context, rt proto.ResolvedTransaction, expiration time.Time, deadline race.Source[outcome]) (*proto.SignResponse, error) {
	if c.popup == nil {
		return nil, proto.ContextError{Reason: "session signs in the browser but no wallet window is available"}
	}
	prompt := c.prompter.Prompt(ctx, proto.PromptArgs{
		Title: "Complete using WebAuth",
		Body:  "Please review and approve this transaction in the WebAuth window.",
		Elements: []proto.PromptElement{
			proto.Countdown("Waiting for response from WebAuth", expiration),
		},
	})
	transact := func(ctx context.Context) (outcome, error) {
		res, err := c.popup.Transact(ctx, rt.Transaction, proto.PopupParams{Broadcast: false})
		if err != nil {
			return outcome{}, transportError(err)
		}
		return outcome{via: viaPopup, result: res}, nil
	}
	out, err := race.First(ctx, transact, promptSource(prompt, true), deadline)
	if err != nil {
		return nil, fail(prompt, callerError(err))
	}
	return accept(prompt, out, rt)
}

func (c *Client) signRelay(ctx context.Context, s *SessionData, rt proto.ResolvedTransaction, expiration time.Time, deadline race.Source[outcome]) (*proto.SignResponse, error) {
	ch := relay.Allocate(c.Config.RelayURL)
	tr, err := BuildTransactionRequest(rt, ch, expiration, c.Config.ReturnPath)
	if err != nil {
		return nil, err
	}
	d := c.Policy().Decide(c.platform, s)
	cross, err := tr.Request.Encode(true, false, d.Scheme)
	if err != nil {
		return nil, err
	}
	same, err := tr.SameDeviceRequest.Encode(true, false, d.Scheme)
	if err != nil {
		return nil, err
	}

	release := listen(ctx, c.waiter, ch)
	defer release()

	var (
		body []byte
		addr proto.ChannelAddress
	)
	if s.HasChannel() {
		payload := cross
		if d.SameDevice {
			payload = same
		}
		body, addr, err = seal(s, payload)
		if err != nil {
			return nil, err
		}
	}

	if d.SameDevice && d.LaunchURL != "" {
		c.navigate(d.LaunchURL)
	}

	var (
		manualLock sync.Mutex
		manual     *proto.Cancelable
	)
	signManually := func() {
		if d.SameDevice {
			c.navigate(same)
			return
		}
		manualLock.Lock()
		defer manualLock.Unlock()
		if manual != nil {
			manual.Cancel("")
		}
		manual = c.prompter.Prompt(ctx, proto.PromptArgs{
			Title: "Sign manually",
			Body:  "Scan the QR-code with WebAuth on another device or use the button to open it here.",
			Elements: []proto.PromptElement{
				proto.QR(cross),
				proto.Link(cross, "Open WebAuth"),
			},
		})
	}
	defer func() {
		manualLock.Lock()
		defer manualLock.Unlock()
		if manual != nil {
			manual.Resolve(nil)
		}
	}()

	prompt := c.prompter.Prompt(ctx, proto.PromptArgs{
		Title: "Complete using WebAuth",
		Body:  fmt.Sprintf("Please open your WebAuth Wallet on %q to review and approve this transaction.", s.ChannelName),
		Elements: []proto.PromptElement{
			proto.Countdown("Waiting for response from WebAuth", expiration),
			proto.Button("Sign manually or with another device", signManually),
		},
	})

	if body != nil {
		go func() {
			if err := c.sender.Send(ctx, body, addr); err != nil {
				log.Warn("could not deliver request to wallet", "channel", s.ChannelName, "err", err)
			}
		}()
	} else {
		c.navigate(same)
	}

	log.Debug("waiting for signature", "channel", ch.URL(), "same_device", d.SameDevice, "expires", expiration)
	out, err := race.First(ctx, relaySource(c.waiter, ch), promptSource(prompt, true), deadline)
	if err != nil {
		return nil, fail(prompt, callerError(err))
	}
	return accept(prompt, out, rt)
}

// seal encrypts payload for the session's wallet and returns it along with
// the channel it goes to.
func seal(s *SessionData, payload string) ([]byte, proto.ChannelAddress, error) {
	addr, err := relay.ParseChannelURL(s.ChannelURL)
	if err != nil {
		return nil, addr, proto.ContextError{Reason: err.Error()}
	}
	kp, err := keygen.FromPrivateKey(s.PrivateKey)
	if err != nil {
		return nil, addr, proto.ContextError{Reason: "invalid session key"}
	}
	defer kp.Zero()
	peer, err := keygen.ParsePublicKey(s.SignerKey)
	if err != nil {
		return nil, addr, proto.ContextError{Reason: "invalid signer key"}
	}
	msg, err := crypt.Seal([]byte(payload), kp.PrivateKey(), peer)
	if err != nil {
		return nil, addr, err
	}
	b, err := msg.Marshal()
	if err != nil {
		return nil, addr, err
	}
	return b, addr, nil
}

// accept turns a winning outcome into a response. Outcomes without
// signatures fail.
func accept(prompt *proto.Cancelable, out outcome, rt proto.ResolvedTransaction) (*proto.SignResponse, error) {
	sigs := out.signatures()
	if len(sigs) == 0 {
		prompt.Cancel(msgNotCompleted)
		return nil, proto.ProtocolError{Reason: msgNotCompleted}
	}
	resp := &proto.SignResponse{
		Signatures:  sigs,
		ChainID:     rt.ChainID,
		Signer:      rt.Signer,
		Transaction: rt.Transaction,
	}
	switch out.via {
	case viaRelay:
		p := out.payload
		if p.ChainID != "" {
			resp.ChainID = p.ChainID
		}
		if signer := p.Signer(); !signer.IsZero() {
			resp.Signer = signer
		}
		resp.Request = p.Req
		resp.BlockNum = p.RBN
		if p.Req != "" {
			req, err := esr.Decode(p.Req)
			if err != nil {
				log.Debug("could not decode resolved request", "err", err)
			} else if req.Transaction != nil {
				resp.Transaction = *req.Transaction
			}
		}
	case viaPopup:
		r := out.result
		resp.SerializedTransaction = r.SerializedTransaction
		if !r.Signer.IsZero() {
			resp.Signer = r.Signer
		}
		if r.Transaction != nil {
			resp.Transaction = *r.Transaction
		}
	}
	prompt.Resolve(resp)
	return resp, nil
}
