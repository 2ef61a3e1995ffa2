// Package server provides the relay mailbox service wallets and clients
// exchange messages through. A message posted to a channel goes to whoever
// is waiting on it, or is kept for a while if nobody is.
package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/server/db"
	"github.com/protonlink/webauth/server/db/sqlite"
	"github.com/protonlink/webauth/server/stats"
	"github.com/protonlink/webauth/server/stats/noop"
	"github.com/protonlink/webauth/server/stats/prometheus"
	"golang.org/x/sync/errgroup"
)

// Version is the version of the relay server. This is set at build time by
// main.go.
var Version = ""

// Config is the configuration for the relay server.
type Config struct {
	BindAddr    string        `env:"WEBAUTH_SERVER_BIND_ADDR" envDefault:""`
	Host        string        `env:"WEBAUTH_SERVER_HOST" envDefault:"localhost"`
	HTTPPort    int           `env:"WEBAUTH_SERVER_HTTP_PORT" envDefault:"35364"`
	HealthPort  int           `env:"WEBAUTH_SERVER_HEALTH_PORT" envDefault:"35365"`
	StatsPort   int           `env:"WEBAUTH_SERVER_STATS_PORT" envDefault:"35366"`
	DataDir     string        `env:"WEBAUTH_SERVER_DATA_DIR" envDefault:"data"`
	WaitTimeout time.Duration `env:"WEBAUTH_SERVER_WAIT_TIMEOUT" envDefault:"30s"`
	MessageTTL  time.Duration `env:"WEBAUTH_SERVER_MESSAGE_TTL" envDefault:"2m"`
	EnableStats bool          `env:"WEBAUTH_SERVER_ENABLE_STATS" envDefault:"false"`
	DB          db.DB
	Stats       stats.Stats
}

// DefaultConfig returns a Config with the values populated with the defaults
// or specified environment variables.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatal("could not read environment", "err", err)
	}
	return cfg
}

// WithDB returns a Config with the provided DB interface implementation.
func (cfg *Config) WithDB(db db.DB) *Config {
	cfg.DB = db
	return cfg
}

// WithStats returns a Config with the provided Stats implementation.
func (cfg *Config) WithStats(s stats.Stats) *Config {
	cfg.Stats = s
	return cfg
}

// URL returns the public base URL of the relay.
func (cfg *Config) URL() string {
	return fmt.Sprintf("http://%s:%d", cfg.Host, cfg.HTTPPort)
}

// Server is the relay server with its health and stats endpoints.
type Server struct {
	Config *Config
	http   *HTTPServer
	done   chan struct{}
	once   sync.Once
}

// NewServer returns a *Server with the specified Config. A SQLite database
// in the data directory is used unless the Config carries a DB.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.DB == nil {
		dp := filepath.Join(cfg.DataDir, "db")
		if err := os.MkdirAll(dp, 0o700); err != nil {
			return nil, fmt.Errorf("could not init sqlite path: %w", err)
		}
		d, err := sqlite.NewDB(dp)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithDB(d)
	}
	if cfg.Stats == nil {
		if cfg.EnableStats {
			cfg = cfg.WithStats(prometheus.NewStats(cfg.DB, cfg.StatsPort))
		} else {
			cfg = cfg.WithStats(noop.Stats{})
		}
	}
	return &Server{
		Config: cfg,
		http:   NewHTTPServer(cfg),
		done:   make(chan struct{}),
	}, nil
}

// Start starts the HTTP, health and stats servers. It blocks until one of
// them fails or all of them are shut down.
func (srv *Server) Start() error {
	errg, _ := errgroup.WithContext(context.Background())
	errg.Go(func() error {
		return srv.http.Start()
	})
	errg.Go(func() error {
		return srv.Config.Stats.Start()
	})
	go srv.expireLoop()
	return errg.Wait()
}

// Shutdown gracefully shuts down the servers.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.stop()
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return srv.http.Shutdown(ctx)
	})
	errg.Go(func() error {
		return srv.Config.Stats.Shutdown(ctx)
	})
	if err := errg.Wait(); err != nil {
		return err
	}
	return srv.Config.DB.Close()
}

// Close immediately closes the servers and the database.
func (srv *Server) Close() error {
	srv.stop()
	if err := srv.http.Close(); err != nil {
		return err
	}
	if err := srv.Config.Stats.Close(); err != nil {
		return err
	}
	return srv.Config.DB.Close()
}

func (srv *Server) stop() {
	srv.once.Do(func() { close(srv.done) })
}

// expireLoop drops stored messages nobody came for.
func (srv *Server) expireLoop() {
	every := srv.Config.MessageTTL / 2
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			srv.http.mailbox.expire(time.Now())
		case <-srv.done:
			return
		}
	}
}
