package client

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/race"
	"github.com/protonlink/webauth/relay"
)

// Login asks the user to log in with their wallet. The user scans a QR code,
// follows a link on this device, or, when a popup is configured, logs in
// through the wallet window. Whichever answers first wins and every other
// path is torn down.
func (c *Client) Login(ctx context.Context, lc proto.LoginContext) (*proto.LoginResponse, error) {
	if c.prompter == nil {
		return nil, proto.ContextError{Reason: msgNoUI}
	}
	ch := relay.Allocate(c.Config.RelayURL)
	ir, err := BuildIdentityRequest(lc, ch, UserAgent(c.platform.UserAgent), c.Config.ReturnPath)
	if err != nil {
		return nil, err
	}
	// The keys only outlive a login that bound a channel.
	bound := false
	defer func() {
		if !bound {
			ir.PrivateKey.Zero()
		}
	}()

	d := c.Policy().Decide(c.platform, nil)
	cross, err := ir.Request.Encode(true, false, d.Scheme)
	if err != nil {
		return nil, err
	}
	href := cross
	if d.SameDevice {
		href, err = ir.SameDeviceRequest.Encode(true, false, d.Scheme)
		if err != nil {
			return nil, err
		}
	}

	release := listen(ctx, c.waiter, ch)
	defer release()

	elements := []proto.PromptElement{
		proto.QR(cross),
		proto.Link(href, "Launch WebAuth"),
	}
	clicked := make(chan struct{})
	if d.OfferPopup {
		var once sync.Once
		elements = append(elements, proto.Button("Sign in with browser", func() {
			once.Do(func() { close(clicked) })
		}))
	}
	prompt := c.prompter.Prompt(ctx, proto.PromptArgs{
		Title:    "Connect with WebAuth",
		Body:     "Scan with WebAuth on your mobile device or click the button below to open on this device.",
		Elements: elements,
	})

	timeout := c.Config.LoginTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().LoginTimeout
	}
	sources := []race.Source[outcome]{
		relaySource(c.waiter, ch),
		promptSource(prompt, false),
		race.After[outcome](timeout, proto.TimeoutError{Reason: msgExpired}),
	}
	if d.OfferPopup {
		sources = append(sources, c.popupLogin(clicked))
	}
	log.Debug("waiting for login", "channel", ch.URL(), "same_device", d.SameDevice)
	out, err := race.First(ctx, sources...)
	if err != nil {
		return nil, fail(prompt, callerError(err))
	}

	var s *SessionData
	switch out.via {
	case viaRelay:
		p := out.payload
		if !p.HasLoginFields() {
			prompt.Cancel(msgInvalidResponse)
			return nil, proto.ProtocolError{Reason: "Invalid response from WebAuth, must contain link_ch, link_key, link_name and cid flags."}
		}
		if err := c.verifier.VerifyLogin(p, lc); err != nil {
			return nil, fail(prompt, transportError(err))
		}
		s = &SessionData{
			Chain:       p.ChainID,
			Auth:        p.Signer(),
			RequestKey:  ir.RequestKey,
			PrivateKey:  ir.PrivateKey.PrivateKeyString(),
			ChannelURL:  p.LinkCh,
			ChannelName: p.LinkName,
			SignerKey:   p.LinkKey,
		}
		if m := p.LinkMeta; m != nil {
			s.SameDevice = m.SameDevice
			s.LaunchURL = m.LaunchURL
			s.TriggerURL = m.TriggerURL
		}
		bound = true
	case viaPopup:
		if out.auth.Actor == "" || out.auth.Permission == "" {
			prompt.Cancel(msgInvalidResponse)
			return nil, proto.ProtocolError{Reason: msgInvalidResponse}
		}
		s = &SessionData{
			Chain:     lc.ChainIDs()[0],
			Auth:      out.auth,
			InBrowser: true,
		}
	default:
		prompt.Cancel(msgInvalidResponse)
		return nil, proto.ProtocolError{Reason: msgInvalidResponse}
	}

	prompt.Resolve(s.Auth)
	c.setSession(s)
	log.Info("Logged in", "auth", s.Auth, "chain", s.Chain, "in_browser", s.InBrowser)
	return &proto.LoginResponse{ChainID: s.Chain, Auth: s.Auth, InBrowser: s.InBrowser}, nil
}

// popupLogin opens the wallet window once the user asks for it.
func (c *Client) popupLogin(clicked <-chan struct{}) race.Source[outcome] {
	return func(ctx context.Context) (outcome, error) {
		select {
		case <-clicked:
		case <-ctx.Done():
			return outcome{}, ctx.Err()
		}
		auth, err := c.popup.Login(ctx)
		if err != nil {
			return outcome{}, transportError(err)
		}
		return outcome{via: viaPopup, auth: auth}, nil
	}
}
