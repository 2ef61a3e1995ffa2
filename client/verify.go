package client

import (
	"github.com/protonlink/webauth/keygen"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/relay"
)

// Verifier checks a relay login response against the context the login was
// started with.
type Verifier interface {
	VerifyLogin(p *proto.CallbackPayload, lc proto.LoginContext) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(p *proto.CallbackPayload, lc proto.LoginContext) error

// VerifyLogin calls f.
func (f VerifierFunc) VerifyLogin(p *proto.CallbackPayload, lc proto.LoginContext) error {
	return f(p, lc)
}

// DefaultVerifier checks that the response answers for one of the requested
// chains and the requested permission, and that its channel and signer key
// are usable.
type DefaultVerifier struct{}

// VerifyLogin implements Verifier.
func (DefaultVerifier) VerifyLogin(p *proto.CallbackPayload, lc proto.LoginContext) error {
	known := false
	for _, id := range lc.ChainIDs() {
		if id == p.ChainID {
			known = true
			break
		}
	}
	if !known {
		return proto.Errorf("wallet answered for unknown chain %s", p.ChainID)
	}
	signer := p.Signer()
	if signer.Actor == "" || signer.Permission == "" {
		return proto.Errorf("wallet did not report a signer")
	}
	if lc.Permission != nil && *lc.Permission != signer {
		return proto.Errorf("wallet signed as %s instead of %s", signer, lc.Permission)
	}
	if _, err := keygen.ParsePublicKey(p.LinkKey); err != nil {
		return proto.ProtocolError{Reason: "invalid signer key", Err: err}
	}
	if _, err := relay.ParseChannelURL(p.LinkCh); err != nil {
		return proto.ProtocolError{Reason: "invalid channel", Err: err}
	}
	return nil
}
