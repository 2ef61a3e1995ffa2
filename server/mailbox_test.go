package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/protonlink/webauth/server/db"
	"github.com/protonlink/webauth/server/db/sqlite"
	"github.com/protonlink/webauth/server/stats/noop"
	"github.com/stretchr/testify/require"
)

func setupMailbox(t *testing.T) *mailbox {
	t.Helper()
	d, err := sqlite.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return newMailbox(d, noop.Stats{}, time.Minute)
}

func TestMailboxCanceledWaiterKeepsMessage(t *testing.T) {
	m := setupMailbox(t)
	const ch = "4e0a9d3c-2b1f-4c5e-9d8a-7f6e5d4c3b2a"

	// The message lands in the waiter's hands just as its client goes
	// away. It is either returned or put back, never dropped.
	for i := 0; i < 20; i++ {
		m.mu.Lock()
		w := m.register(ch)
		m.mu.Unlock()
		delivered, err := m.deliver(ch, []byte(`{"sig":"SIG_K1_a"}`))
		require.NoError(t, err)
		require.True(t, delivered)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		body, err := m.await(ctx, ch, w)
		if err == nil {
			require.Equal(t, `{"sig":"SIG_K1_a"}`, string(body))
			continue
		}
		require.ErrorIs(t, err, context.Canceled)
		body, err = m.db.TakeMessage(ch, time.Now())
		require.NoError(t, err)
		require.Equal(t, `{"sig":"SIG_K1_a"}`, string(body))
	}
	require.Zero(t, m.waiting(ch))
}

func TestMailboxRestore(t *testing.T) {
	m := setupMailbox(t)
	const ch = "8b7a6c5d-4e3f-4a1b-9c0d-1e2f3a4b5c6d"

	m.restore(ch, []byte("stored"))
	body, err := m.wait(context.Background(), ch)
	require.NoError(t, err)
	require.Equal(t, "stored", string(body))

	// A client already waiting gets a restored message right away.
	done := make(chan []byte, 1)
	go func() {
		body, _ := m.wait(context.Background(), ch)
		done <- body
	}()
	require.Eventually(t, func() bool { return m.waiting(ch) == 1 }, time.Second, 5*time.Millisecond)
	m.restore(ch, []byte("handed"))
	require.Equal(t, "handed", string(<-done))

	_, err = m.db.TakeMessage(ch, time.Now())
	require.True(t, errors.Is(err, db.ErrNoMessage))
}
