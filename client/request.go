package client

import (
	"fmt"
	"time"

	"github.com/protonlink/webauth/esr"
	"github.com/protonlink/webauth/keygen"
	"github.com/protonlink/webauth/proto"
)

// Version is reported in the user agent. It is set at build time.
var Version = "dev"

// UserAgent returns the user agent sent to the wallet, with the platform's
// own user agent appended when known.
func UserAgent(platform string) string {
	ua := "WebAuthGo/" + Version
	if platform != "" {
		ua += " " + platform
	}
	return ua
}

// IdentityRequest is a login request, ready to be shown to the user.
type IdentityRequest struct {
	Request *esr.Request
	// SameDeviceRequest is launched directly on this device and navigates
	// back to the return path once done.
	SameDeviceRequest *esr.Request
	RequestKey        string
	PrivateKey        *keygen.KeyPair
}

// BuildIdentityRequest builds a login request answering on ch. A single chain
// scopes the request to that chain. Otherwise the request covers every
// candidate chain and ABIs are taken from the first one.
func BuildIdentityRequest(lc proto.LoginContext, ch proto.ChannelAddress, userAgent, returnPath string) (*IdentityRequest, error) {
	ids := lc.ChainIDs()
	if len(ids) == 0 {
		return nil, proto.ContextError{Reason: "login context needs a chain or a list of chains"}
	}
	kp, err := keygen.New()
	if err != nil {
		return nil, err
	}
	req, err := esr.NewIdentityRequest(lc.AppName, ids...)
	if err != nil {
		kp.Zero()
		return nil, proto.ContextError{Reason: err.Error()}
	}
	if lc.Permission != nil {
		p := *lc.Permission
		req.Identity.Permission = &p
	}
	link := proto.LinkCreate{
		SessionName: lc.AppName,
		RequestKey:  kp.PublicKeyString(),
		UserAgent:   userAgent,
	}
	if err := req.SetInfoKey(esr.InfoLink, link); err != nil {
		kp.Zero()
		return nil, err
	}
	if err := req.SetInfoKey(esr.InfoReqAccount, lc.AppName); err != nil {
		kp.Zero()
		return nil, err
	}
	req.SetCallback(ch.URL(), true)

	same, err := sameDevice(req, returnPath)
	if err != nil {
		kp.Zero()
		return nil, err
	}
	return &IdentityRequest{
		Request:           req,
		SameDeviceRequest: same,
		RequestKey:        kp.PublicKeyString(),
		PrivateKey:        kp,
	}, nil
}

// TransactionRequest is a signing request for a resolved transaction.
type TransactionRequest struct {
	Request           *esr.Request
	SameDeviceRequest *esr.Request
}

// BuildTransactionRequest builds a request to sign rt answering on ch. The
// expiration travels in the link info.
func BuildTransactionRequest(rt proto.ResolvedTransaction, ch proto.ChannelAddress, expiration time.Time, returnPath string) (*TransactionRequest, error) {
	req, err := esr.NewTransactionRequest(rt.ChainID, rt.Transaction)
	if err != nil {
		return nil, proto.ContextError{Reason: err.Error()}
	}
	req.SetCallback(ch.URL(), true)
	if err := req.SetInfoKey(esr.InfoLink, proto.LinkInfo{Expiration: proto.NewTimePointSec(expiration)}); err != nil {
		return nil, err
	}
	same, err := sameDevice(req, returnPath)
	if err != nil {
		return nil, err
	}
	return &TransactionRequest{Request: req, SameDeviceRequest: same}, nil
}

func sameDevice(req *esr.Request, returnPath string) (*esr.Request, error) {
	same := req.Clone()
	if err := same.SetInfoKey(esr.InfoSameDevice, true); err != nil {
		return nil, err
	}
	if err := same.SetInfoKey(esr.InfoReturnPath, returnPath); err != nil {
		return nil, fmt.Errorf("could not set return path: %w", err)
	}
	return same, nil
}
