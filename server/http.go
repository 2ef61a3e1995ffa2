package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/meowgorithm/babylogger"
	"github.com/protonlink/webauth/proto"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/sync/errgroup"
)

const maxMessageSize = 1 << 20

// Delivery header values.
const (
	DeliveryHeader    = "X-Relay-Delivery"
	DeliveryDelivered = "delivered"
	DeliveryStored    = "stored"
)

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,128}$`)

// HTTPServer is the HTTP server of the relay.
type HTTPServer struct {
	cfg      *Config
	mailbox  *mailbox
	server   *http.Server
	health   *http.Server
	upgrader websocket.Upgrader
}

// NewHTTPServer returns a new *HTTPServer with the specified Config. The
// Config must carry a DB and Stats.
func NewHTTPServer(cfg *Config) *HTTPServer {
	healthMux := http.NewServeMux()
	// No auth health check endpoint
	healthMux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "We live!")
	}))
	health := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: time.Minute,
	}
	s := &HTTPServer{
		cfg:     cfg,
		mailbox: newMailbox(cfg.DB, cfg.Stats, cfg.MessageTTL),
		health:  health,
		upgrader: websocket.Upgrader{
			// Wallet web apps connect from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Minute,
	}
	return s
}

// Handler returns the relay's routes.
func (s *HTTPServer) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Use(RequestLogMiddleware)
	mux.Use(CORSMiddleware)
	mux.HandleFunc(pat.Post("/:channel"), s.handlePostMessage)
	mux.HandleFunc(pat.Get("/:channel"), s.handleGetMessage)
	mux.HandleFunc(pat.Options("/:channel"), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Start start the HTTP and health servers on the ports specified in the Config.
func (s *HTTPServer) Start() error {
	errg, _ := errgroup.WithContext(context.Background())
	errg.Go(func() error {
		log.Info("Starting health server", "addr", s.health.Addr)
		if err := s.health.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	errg.Go(func() error {
		log.Info("Starting relay server", "addr", s.server.Addr, "version", Version)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return errg.Wait()
}

// Shutdown gracefully shut down the HTTP and health servers.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	log.Info("Stopping relay server", "addr", s.server.Addr)
	log.Info("Stopping health server", "addr", s.health.Addr)
	if err := s.health.Shutdown(ctx); err != nil {
		return err
	}
	return s.server.Shutdown(ctx)
}

// Close immediately closes the HTTP and health servers.
func (s *HTTPServer) Close() error {
	if err := s.health.Close(); err != nil {
		return err
	}
	return s.server.Close()
}

// RequestLogMiddleware logs plain requests. Websocket upgrades are passed
// through untouched since they need the original ResponseWriter to hijack
// the connection.
func RequestLogMiddleware(h http.Handler) http.Handler {
	logged := babylogger.Middleware(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			log.Debug("websocket upgrade", "path", r.URL.Path)
			h.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

// CORSMiddleware lets browser wallets reach the relay.
func CORSMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		h.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) renderError(w http.ResponseWriter) {
	s.renderCustomError(w, "internal error", http.StatusInternalServerError)
}

func (s *HTTPServer) renderCustomError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(proto.Message{Message: msg})
}

func (s *HTTPServer) channel(w http.ResponseWriter, r *http.Request) (string, bool) {
	ch := pat.Param(r, "channel")
	if !channelPattern.MatchString(ch) {
		s.renderCustomError(w, "invalid channel", http.StatusBadRequest)
		return "", false
	}
	return ch, true
}

func (s *HTTPServer) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.renderCustomError(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.renderCustomError(w, "could not read message", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		s.renderCustomError(w, "empty message", http.StatusBadRequest)
		return
	}
	delivered, err := s.mailbox.deliver(ch, body)
	if err != nil {
		log.Error("could not deliver message", "channel", ch, "err", err)
		s.renderError(w)
		return
	}
	if delivered {
		w.Header().Set(DeliveryHeader, DeliveryDelivered)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set(DeliveryHeader, DeliveryStored)
	w.WriteHeader(http.StatusAccepted)
}

func (s *HTTPServer) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	if websocket.IsWebSocketUpgrade(r) {
		s.serveSocket(w, r, ch)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.WaitTimeout)
	defer cancel()
	body, err := s.mailbox.wait(ctx, ch)
	switch {
	case err == nil:
		if r.Context().Err() != nil {
			s.mailbox.restore(ch, body)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(body); err != nil {
			s.mailbox.restore(ch, body)
		}
	case errors.Is(err, context.DeadlineExceeded):
		// Nothing arrived in time; the client polls again.
		s.cfg.Stats.WaitTimedOut()
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		log.Error("could not wait for message", "channel", ch, "err", err)
		s.renderError(w)
	}
}

// serveSocket sends the channel's next message over a websocket and closes
// it. The wait ends early when the client hangs up.
func (s *HTTPServer) serveSocket(w http.ResponseWriter, r *http.Request, ch string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "channel", ch, "err", err)
		return
	}
	defer conn.Close() // nolint:errcheck
	s.cfg.Stats.SocketOpened()
	defer s.cfg.Stats.SocketClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	body, err := s.mailbox.wait(ctx, ch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("could not wait for message", "channel", ch, "err", err)
		}
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		log.Warn("could not write message to socket", "channel", ch, "err", err)
		s.mailbox.restore(ch, body)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
