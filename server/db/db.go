// Package db defines the storage the relay keeps undelivered messages in.
package db

import (
	"errors"
	"time"
)

// ErrNoMessage is returned when a channel has no pending message.
var ErrNoMessage = errors.New("no pending message")

// DB specifies the methods a datastore must implement to hold messages
// posted to channels nobody is listening on.
type DB interface {
	// PutMessage stores body for channel until expiresAt.
	PutMessage(channel string, body []byte, expiresAt time.Time) error
	// TakeMessage removes and returns the oldest unexpired message of
	// channel.
	TakeMessage(channel string, now time.Time) ([]byte, error)
	// ExpireMessages deletes messages that expired before now.
	ExpireMessages(now time.Time) (int64, error)
	MessageCount() (int, error)
	Close() error
}
