package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/protonlink/webauth/server/db"
	"github.com/protonlink/webauth/server/stats"
)

var _ stats.Stats = &Stats{}

// Stats contains all of the calls to track metrics.
type Stats struct {
	messagesPosted    prometheus.Counter
	messageBytes      prometheus.Counter
	messagesDelivered prometheus.Counter
	messagesStored    prometheus.Counter
	messagesExpired   prometheus.Counter
	waitTimeouts      prometheus.Counter
	socketsOpened     prometheus.Counter
	openSockets       prometheus.Gauge
	pendingMessages   prometheus.Gauge
	registry          *prometheus.Registry
	db                db.DB
	port              int
	interval          time.Duration
	server            *http.Server
	done              chan struct{}
	stopOnce          sync.Once
}

// Start starts the PrometheusStats HTTP server.
func (ps *Stats) Start() error {
	// collect pending messages every interval
	go func() {
		t := time.NewTicker(ps.interval)
		defer t.Stop()
		for {
			ps.collect()
			select {
			case <-t.C:
			case <-ps.done:
				return
			}
		}
	}()
	log.Info("Starting Stats HTTP server", "addr", ps.server.Addr)
	err := ps.server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown shuts down the Stats HTTP server.
func (ps *Stats) Shutdown(ctx context.Context) error {
	ps.stop()
	return ps.server.Shutdown(ctx)
}

// Close immediately closes the Stats HTTP server.
func (ps *Stats) Close() error {
	ps.stop()
	return ps.server.Close()
}

// Handler serves the collected metrics.
func (ps *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{})
}

// NewStats returns a new Stats HTTP server configured to
// the supplied port.
func NewStats(db db.DB, port int) *Stats {
	reg := prometheus.NewRegistry()
	ps := &Stats{
		registry: reg,
		db:       db,
		port:     port,
		interval: time.Minute,
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", ps.Handler())
	ps.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	f := promauto.With(reg)
	ps.messagesPosted = newCounter(f, "webauth_relay_messages_posted_total", "Total messages posted")
	ps.messageBytes = newCounter(f, "webauth_relay_message_bytes_total", "Total bytes posted")
	ps.messagesDelivered = newCounter(f, "webauth_relay_messages_delivered_total", "Total messages handed to a waiter")
	ps.messagesStored = newCounter(f, "webauth_relay_messages_stored_total", "Total messages stored for later delivery")
	ps.messagesExpired = newCounter(f, "webauth_relay_messages_expired_total", "Total stored messages that expired undelivered")
	ps.waitTimeouts = newCounter(f, "webauth_relay_wait_timeouts_total", "Total long-poll waits that timed out")
	ps.socketsOpened = newCounter(f, "webauth_relay_sockets_opened_total", "Total websocket waits")
	ps.openSockets = newGauge(f, "webauth_relay_sockets_open", "Currently open websocket waits")
	ps.pendingMessages = newGauge(f, "webauth_relay_messages_pending", "Stored messages waiting for delivery")
	return ps
}

// MessagePosted counts a posted message of size bytes.
func (ps *Stats) MessagePosted(size int) {
	ps.messagesPosted.Inc()
	ps.messageBytes.Add(float64(size))
}

// MessageDelivered increments the number of messages handed to a waiter.
func (ps *Stats) MessageDelivered() {
	ps.messagesDelivered.Inc()
}

// MessageStored increments the number of stored messages.
func (ps *Stats) MessageStored() {
	ps.messagesStored.Inc()
}

// MessagesExpired adds n expired messages.
func (ps *Stats) MessagesExpired(n int64) {
	ps.messagesExpired.Add(float64(n))
}

// WaitTimedOut increments the number of long-poll timeouts.
func (ps *Stats) WaitTimedOut() {
	ps.waitTimeouts.Inc()
}

// SocketOpened tracks a new websocket wait.
func (ps *Stats) SocketOpened() {
	ps.socketsOpened.Inc()
	ps.openSockets.Inc()
}

// SocketClosed tracks the end of a websocket wait.
func (ps *Stats) SocketClosed() {
	ps.openSockets.Dec()
}

func (ps *Stats) collect() {
	c, err := ps.db.MessageCount()
	if err != nil {
		log.Warn("could not count pending messages", "err", err)
		return
	}
	ps.pendingMessages.Set(float64(c))
}

func (ps *Stats) stop() {
	ps.stopOnce.Do(func() { close(ps.done) })
}

func newCounter(f promauto.Factory, name string, help string) prometheus.Counter {
	return f.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func newGauge(f promauto.Factory, name string, help string) prometheus.Gauge {
	return f.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}
