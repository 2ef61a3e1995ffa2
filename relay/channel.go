// Package relay talks to the relay service: it allocates channel addresses,
// waits for the wallet's response on a channel, and delivers sealed requests
// to a wallet's channel.
package relay

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/protonlink/webauth/proto"
)

// Allocate returns a fresh channel address on service. The channel id is a
// random version 4 UUID.
func Allocate(service string) proto.ChannelAddress {
	return proto.ChannelAddress{
		Service: strings.TrimRight(service, "/"),
		Channel: uuid.New().String(),
	}
}

// ParseChannelURL splits a channel URL into the service origin and the
// channel path.
func ParseChannelURL(s string) (proto.ChannelAddress, error) {
	u, err := url.Parse(s)
	if err != nil {
		return proto.ChannelAddress{}, fmt.Errorf("invalid channel url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return proto.ChannelAddress{}, fmt.Errorf("invalid channel url %q", s)
	}
	ch := strings.Trim(u.Path, "/")
	if ch == "" {
		return proto.ChannelAddress{}, fmt.Errorf("channel url %q has no channel", s)
	}
	return proto.ChannelAddress{
		Service: u.Scheme + "://" + u.Host,
		Channel: ch,
	}, nil
}
