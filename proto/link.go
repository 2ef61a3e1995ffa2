package proto

import (
	"strings"
	"time"
)

// ChannelAddress is the address of a relay mailbox.
type ChannelAddress struct {
	Service string `json:"service"`
	Channel string `json:"channel"`
}

// URL returns the address as service/channel.
func (a ChannelAddress) URL() string {
	return strings.TrimRight(a.Service, "/") + "/" + a.Channel
}

// IsZero reports whether the address is unset.
func (a ChannelAddress) IsZero() bool {
	return a.Service == "" && a.Channel == ""
}

// LinkCreate is attached to identity requests under the "link" info key so
// the wallet can open a session channel back to us.
type LinkCreate struct {
	SessionName string `json:"session_name"`
	RequestKey  string `json:"request_key"`
	UserAgent   string `json:"user_agent,omitempty"`
}

// LinkInfo is attached to transaction requests under the "link" info key.
type LinkInfo struct {
	Expiration TimePointSec `json:"expiration"`
}

// LinkMeta carries hints from the wallet on how to reach it directly the next
// time.
type LinkMeta struct {
	SameDevice bool   `json:"sameDevice,omitempty"`
	LaunchURL  string `json:"launchUrl,omitempty"`
	TriggerURL string `json:"triggerUrl,omitempty"`
}

// TimePointSec is a second-precision UTC timestamp, serialized without a
// zone suffix.
type TimePointSec struct {
	time.Time
}

const timePointSecLayout = "2006-01-02T15:04:05"

// NewTimePointSec truncates t to a TimePointSec.
func NewTimePointSec(t time.Time) TimePointSec {
	return TimePointSec{t.UTC().Truncate(time.Second)}
}

// MarshalJSON implements json.Marshaler.
func (t TimePointSec) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timePointSecLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimePointSec) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSuffix(s, "Z")
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	v, err := time.ParseInLocation(timePointSecLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}
