package stats

import "context"

// Stats provides an interface that different stats backend can implement to
// track relay usage.
type Stats interface {
	Start() error
	Shutdown(context.Context) error
	MessagePosted(size int)
	MessageDelivered()
	MessageStored()
	MessagesExpired(n int64)
	WaitTimedOut()
	SocketOpened()
	SocketClosed()
	Close() error
}
