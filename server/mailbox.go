package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/server/db"
	"github.com/protonlink/webauth/server/stats"
)

// mailbox hands messages to the clients waiting on a channel. Messages
// posted while nobody waits are stored until they expire.
type mailbox struct {
	db    db.DB
	stats stats.Stats
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	waiters map[string]map[chan []byte]struct{}
}

func newMailbox(d db.DB, s stats.Stats, ttl time.Duration) *mailbox {
	return &mailbox{
		db:      d,
		stats:   s,
		ttl:     ttl,
		now:     time.Now,
		waiters: make(map[string]map[chan []byte]struct{}),
	}
}

// deliver passes body to every current waiter of channel. It reports
// whether anybody got it; if not the message is stored.
func (m *mailbox) deliver(channel string, body []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.MessagePosted(len(body))
	return m.handOff(channel, body)
}

// restore puts back a message that was taken but never reached its client.
func (m *mailbox) restore(channel string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.handOff(channel, body); err != nil {
		log.Warn("could not restore message", "channel", channel, "err", err)
		return
	}
	log.Debug("restored undelivered message", "channel", channel)
}

// handOff must be called with mu held.
func (m *mailbox) handOff(channel string, body []byte) (bool, error) {
	ws := m.waiters[channel]
	if len(ws) == 0 {
		if err := m.db.PutMessage(channel, body, m.now().Add(m.ttl)); err != nil {
			return false, err
		}
		m.stats.MessageStored()
		log.Debug("stored message", "channel", channel, "size", len(body))
		return false, nil
	}
	for w := range ws {
		w <- body
		m.stats.MessageDelivered()
	}
	delete(m.waiters, channel)
	log.Debug("delivered message", "channel", channel, "waiters", len(ws))
	return true, nil
}

// wait returns a stored message for channel or blocks until one is posted
// or ctx is done.
func (m *mailbox) wait(ctx context.Context, channel string) ([]byte, error) {
	m.mu.Lock()
	body, err := m.db.TakeMessage(channel, m.now())
	switch {
	case err == nil:
		m.mu.Unlock()
		m.stats.MessageDelivered()
		return body, nil
	case !errors.Is(err, db.ErrNoMessage):
		m.mu.Unlock()
		return nil, err
	}
	w := m.register(channel)
	m.mu.Unlock()
	return m.await(ctx, channel, w)
}

// register must be called with mu held.
func (m *mailbox) register(channel string) chan []byte {
	w := make(chan []byte, 1)
	if m.waiters[channel] == nil {
		m.waiters[channel] = make(map[chan []byte]struct{})
	}
	m.waiters[channel][w] = struct{}{}
	return w
}

func (m *mailbox) await(ctx context.Context, channel string, w chan []byte) ([]byte, error) {
	select {
	case body := <-w:
		return body, nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws := m.waiters[channel]; ws != nil {
		delete(ws, w)
		if len(ws) == 0 {
			delete(m.waiters, channel)
		}
	}
	// A message handed over at the same instant goes back to the channel;
	// whoever waited for it is gone.
	select {
	case body := <-w:
		if _, err := m.handOff(channel, body); err != nil {
			log.Warn("could not restore message", "channel", channel, "err", err)
		}
	default:
	}
	return nil, ctx.Err()
}

// waiting returns the number of clients waiting on channel.
func (m *mailbox) waiting(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters[channel])
}

func (m *mailbox) expire(now time.Time) {
	n, err := m.db.ExpireMessages(now)
	if err != nil {
		log.Warn("could not expire messages", "err", err)
		return
	}
	if n > 0 {
		m.stats.MessagesExpired(n)
		log.Debug("expired messages", "count", n)
	}
}
