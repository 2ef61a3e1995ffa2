package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/protonlink/webauth/server/db/sqlite"
	"github.com/protonlink/webauth/server/stats/noop"
	"github.com/protonlink/webauth/server/stats/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("WEBAUTH_SERVER_HTTP_PORT", "4000")
	t.Setenv("WEBAUTH_SERVER_WAIT_TIMEOUT", "10s")
	cfg := DefaultConfig()
	require.Equal(t, 4000, cfg.HTTPPort)
	require.Equal(t, 35365, cfg.HealthPort)
	require.Equal(t, 10*time.Second, cfg.WaitTimeout)
	require.Equal(t, 2*time.Minute, cfg.MessageTTL)
	require.Equal(t, "http://localhost:4000", cfg.URL())
}

func TestNewServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		s, err := NewServer(cfg)
		require.NoError(t, err)
		defer s.Close() // nolint:errcheck
		require.IsType(t, &sqlite.DB{}, s.Config.DB)
		require.IsType(t, noop.Stats{}, s.Config.Stats)
		_, err = os.Stat(filepath.Join(cfg.DataDir, "db", sqlite.DbName))
		require.NoError(t, err)
	})
	t.Run("stats", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.EnableStats = true
		s, err := NewServer(cfg)
		require.NoError(t, err)
		defer s.Close() // nolint:errcheck
		require.IsType(t, &prometheus.Stats{}, s.Config.Stats)
	})
}
