// Package esr builds and encodes signing requests handed to a wallet.
//
// A request travels as a URI: a scheme prefix followed by the base64url
// encoding of a one byte header and the JSON body. The header carries the
// protocol version and, in its high bit, whether the body is raw deflate
// compressed.
package esr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/protonlink/webauth/proto"
)

// Version is the protocol version written to the request header.
const Version = 2

const compressedFlag = 1 << 7

// MaxDecodedSize bounds the inflated body of a decoded request.
const MaxDecodedSize = 4 << 20

// Supported schemes.
const (
	SchemeESR       = "esr"
	SchemeProton    = "proton"
	SchemeProtonDev = "proton-dev"
)

// Info keys set by this package's callers.
const (
	InfoLink       = "link"
	InfoReqAccount = "req_account"
	InfoReturnPath = "return_path"
	InfoSameDevice = "same_device"
)

// ErrInvalidRequest is returned when a request string can't be decoded.
var ErrInvalidRequest = errors.New("invalid signing request")

// ErrNoChain is returned when a request is built without any chain id.
var ErrNoChain = errors.New("request needs at least one chain id")

// Identity asks the wallet to prove control of an account.
type Identity struct {
	Scope      string                 `json:"scope,omitempty"`
	Permission *proto.PermissionLevel `json:"permission,omitempty"`
}

// Request is a signing request.
type Request struct {
	ChainID     string                     `json:"chain_id,omitempty"`
	ChainIDs    []string                   `json:"chain_ids,omitempty"`
	Identity    *Identity                  `json:"identity,omitempty"`
	Transaction *proto.Transaction         `json:"transaction,omitempty"`
	Callback    string                     `json:"callback,omitempty"`
	Background  bool                       `json:"background,omitempty"`
	Broadcast   bool                       `json:"broadcast"`
	Info        map[string]json.RawMessage `json:"info,omitempty"`
}

// NewIdentityRequest returns an identity request. With a single chain id the
// request is scoped to that chain, otherwise it is a multi-chain request.
func NewIdentityRequest(scope string, chainIDs ...string) (*Request, error) {
	r := &Request{Identity: &Identity{Scope: scope}}
	if err := r.setChains(chainIDs); err != nil {
		return nil, err
	}
	return r, nil
}

// NewTransactionRequest returns a request to sign tx on chainID.
func NewTransactionRequest(chainID string, tx proto.Transaction) (*Request, error) {
	r := &Request{Transaction: &tx}
	if err := r.setChains([]string{chainID}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Request) setChains(ids []string) error {
	switch {
	case len(ids) == 1 && ids[0] != "":
		r.ChainID = ids[0]
	case len(ids) > 1:
		r.ChainIDs = append([]string(nil), ids...)
	default:
		return ErrNoChain
	}
	return nil
}

// IsMultiChain reports whether the request targets more than one chain.
func (r *Request) IsMultiChain() bool {
	return r.ChainID == "" && len(r.ChainIDs) > 0
}

// IsIdentity reports whether this is an identity request.
func (r *Request) IsIdentity() bool {
	return r.Identity != nil
}

// SetCallback sets the URL the wallet must report back to. With background
// set the wallet delivers the response itself instead of navigating there.
func (r *Request) SetCallback(url string, background bool) {
	r.Callback = url
	r.Background = background
}

// SetInfoKey attaches a JSON encoded value to the request's info field.
func (r *Request) SetInfoKey(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode info key %s: %w", key, err)
	}
	if r.Info == nil {
		r.Info = make(map[string]json.RawMessage)
	}
	r.Info[key] = b
	return nil
}

// InfoKey decodes an info value into v. It reports whether the key was set.
func (r *Request) InfoKey(key string, v interface{}) (bool, error) {
	b, ok := r.Info[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	c.ChainIDs = append([]string(nil), r.ChainIDs...)
	if r.Identity != nil {
		id := *r.Identity
		if id.Permission != nil {
			p := *id.Permission
			id.Permission = &p
		}
		c.Identity = &id
	}
	if r.Transaction != nil {
		tx := *r.Transaction
		c.Transaction = &tx
	}
	if r.Info != nil {
		c.Info = make(map[string]json.RawMessage, len(r.Info))
		for k, v := range r.Info {
			c.Info[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Encode returns the request as a URI. With slashes the scheme is followed
// by "//". An empty scheme defaults to esr.
func (r *Request) Encode(compress bool, slashes bool, scheme string) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	header := byte(Version)
	if compress {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return "", err
		}
		if _, err := w.Write(body); err != nil {
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
		// Keep the raw form when compression doesn't pay off.
		if buf.Len() < len(body) {
			body = buf.Bytes()
			header |= compressedFlag
		}
	}
	data := append([]byte{header}, body...)
	if scheme == "" {
		scheme = SchemeESR
	}
	scheme = strings.TrimSuffix(scheme, ":")
	sep := ":"
	if slashes {
		sep = "://"
	}
	return scheme + sep + base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a request URI produced by Encode. The scheme prefix is
// optional.
func Decode(s string) (*Request, error) {
	if i := strings.Index(s, ":"); i >= 0 {
		s = strings.TrimPrefix(s[i+1:], "//")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidRequest)
	}
	header, body := data[0], data[1:]
	if v := header &^ compressedFlag; v != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidRequest, v)
	}
	if header&compressedFlag != 0 {
		fr := flate.NewReader(bytes.NewReader(body))
		body, err = io.ReadAll(io.LimitReader(fr, MaxDecodedSize+1))
		_ = fr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}
		if len(body) > MaxDecodedSize {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidRequest, MaxDecodedSize)
		}
	}
	var r Request
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	return &r, nil
}
