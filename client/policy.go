package client

import (
	"regexp"

	"github.com/protonlink/webauth/esr"
)

var handheld = regexp.MustCompile(`iPhone|iPad|iPod|Android|Mobile`)

// PlatformHints describe the device the user is on.
type PlatformHints struct {
	UserAgent string
}

// Handheld reports whether the user agent is a phone or tablet.
func (p PlatformHints) Handheld() bool {
	return handheld.MatchString(p.UserAgent)
}

// Delivery is how a request reaches the wallet.
type Delivery struct {
	SameDevice bool
	// LaunchURL wakes the wallet app up on this device, if known.
	LaunchURL  string
	Scheme     string
	OfferPopup bool
}

// Policy decides the delivery of each login and sign attempt.
type Policy struct {
	Scheme     string
	OfferPopup bool
}

// Decide picks the delivery for the given platform and session. s may be nil
// when no session exists yet.
func (p Policy) Decide(hints PlatformHints, s *SessionData) Delivery {
	scheme := p.Scheme
	if scheme == "" {
		scheme = esr.SchemeProton
	}
	d := Delivery{Scheme: scheme, OfferPopup: p.OfferPopup}
	mobile := hints.Handheld()
	d.SameDevice = mobile || (s != nil && s.SameDevice)
	switch {
	case s != nil && s.LaunchURL != "":
		d.LaunchURL = s.LaunchURL
	case mobile:
		d.LaunchURL = scheme + "://link"
	}
	return d
}
