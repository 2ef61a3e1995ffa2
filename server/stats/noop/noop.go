// Package noop provides a stats impl that does nothing.
// nolint:revive
package noop

import (
	"context"

	"github.com/protonlink/webauth/server/stats"
)

// Stats is a stats implementation that does nothing.
type Stats struct{}

var _ stats.Stats = Stats{}

func (Stats) MessagePosted(_ int)              {}
func (Stats) MessageDelivered()                {}
func (Stats) MessageStored()                   {}
func (Stats) MessagesExpired(_ int64)          {}
func (Stats) WaitTimedOut()                    {}
func (Stats) SocketOpened()                    {}
func (Stats) SocketClosed()                    {}
func (Stats) Start() error                     { return nil }
func (Stats) Close() error                     { return nil }
func (Stats) Shutdown(_ context.Context) error { return nil }
