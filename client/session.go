package client

import (
	"github.com/protonlink/webauth/proto"
)

// SessionData is what a login leaves behind for later sign calls. A session
// is either bound to a relay channel or, with InBrowser set, to the wallet
// window; never both.
type SessionData struct {
	Chain string                `json:"chain"`
	Auth  proto.PermissionLevel `json:"auth"`

	// Ephemeral request keys, kept for the session's lifetime to seal
	// channel traffic.
	RequestKey string `json:"request_key,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`

	ChannelURL  string `json:"channel_url,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	SignerKey   string `json:"signer_key,omitempty"`

	SameDevice bool   `json:"same_device,omitempty"`
	LaunchURL  string `json:"launch_url,omitempty"`
	TriggerURL string `json:"trigger_url,omitempty"`

	InBrowser bool `json:"in_browser,omitempty"`
}

// HasChannel reports whether the session remembers a relay channel.
func (s *SessionData) HasChannel() bool {
	return s.ChannelURL != "" && s.SignerKey != "" && s.PrivateKey != ""
}

// SessionStore persists the session between processes.
type SessionStore interface {
	// LoadSession returns proto.ErrMissingSession when nothing is stored.
	LoadSession() (*SessionData, error)
	SaveSession(s *SessionData) error
	DeleteSession() error
}
