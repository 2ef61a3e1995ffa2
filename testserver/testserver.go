// Package testserver runs a relay server for tests.
package testserver

import (
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/protonlink/webauth/server"
)

// SetupTestServer starts a relay server on random ports and waits for it to
// come up. It is closed when the test ends.
func SetupTestServer(tb testing.TB) *server.Config {
	tb.Helper()

	td := tb.TempDir()
	cfg := server.DefaultConfig()
	cfg.DataDir = filepath.Join(td, ".data")
	cfg.HTTPPort = randomPort(tb)
	cfg.HealthPort = randomPort(tb)
	cfg.StatsPort = randomPort(tb)
	cfg.WaitTimeout = time.Second

	s, err := server.NewServer(cfg)
	if err != nil {
		tb.Fatalf("new server error: %s", err)
	}

	go func() { _ = s.Start() }()

	resp, err := FetchURL(fmt.Sprintf("http://localhost:%d", cfg.HealthPort), 3)
	if err != nil {
		tb.Fatalf("server likely failed to start: %s", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	tb.Log("relay ready!")

	tb.Cleanup(func() {
		if err := s.Close(); err != nil {
			tb.Error("failed to close server:", err)
		}
	})
	return s.Config
}

// Fetch the given URL with N retries.
func FetchURL(url string, retries int) (*http.Response, error) {
	resp, err := http.Get(url) // nolint:gosec
	if err != nil {
		if retries > 0 {
			time.Sleep(time.Second)
			return FetchURL(url, retries-1)
		}
		return nil, err
	}
	if resp.StatusCode != 200 {
		return resp, fmt.Errorf("bad http status code: %d", resp.StatusCode)
	}
	return resp, nil
}

func randomPort(tb testing.TB) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("could not get a random port: %s", err)
	}
	_ = listener.Close()

	addr := listener.Addr().String()

	p, _ := strconv.Atoi(addr[strings.LastIndex(addr, ":")+1:])
	return p
}
