package client

import (
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/protonlink/webauth/esr"
)

// DefaultRelayURL is the public relay service.
const DefaultRelayURL = "https://cb.anchor.link"

// Config contains the webauth client configuration.
type Config struct {
	RelayURL     string        `env:"WEBAUTH_RELAY_URL" envDefault:"https://cb.anchor.link"`
	Scheme       string        `env:"WEBAUTH_SCHEME" envDefault:"proton"`
	LoginTimeout time.Duration `env:"WEBAUTH_LOGIN_TIMEOUT" envDefault:"5m"`
	// ReturnPath is where a same-device wallet navigates back to once done.
	ReturnPath   string `env:"WEBAUTH_RETURN_PATH"`
	UserAgent    string `env:"WEBAUTH_USER_AGENT"`
	UseWebSocket bool   `env:"WEBAUTH_USE_WEBSOCKET" envDefault:"false"`
	DataDir      string `env:"WEBAUTH_DATA_DIR"`
	// StoreKey is a hex encoded 32 byte key sessions are encrypted with at
	// rest.
	StoreKey string `env:"WEBAUTH_STORE_KEY"`
	Debug    bool   `env:"WEBAUTH_DEBUG" envDefault:"false"`
	Logfile  string `env:"WEBAUTH_LOGFILE"`
}

// DefaultConfig returns the configuration used when nothing is set in the
// environment.
func DefaultConfig() *Config {
	return &Config{
		RelayURL:     DefaultRelayURL,
		Scheme:       esr.SchemeProton,
		LoginTimeout: 5 * time.Minute,
	}
}

// ConfigFromEnv loads the configuration from the environment.
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DataPath returns the directory sessions are stored in. DataDir wins over
// the per-user data directory; a leading ~ is expanded.
func (cfg *Config) DataPath() (string, error) {
	if cfg.DataDir != "" {
		return homedir.Expand(cfg.DataDir)
	}
	scope := gap.NewScope(gap.User, "webauth")
	dataPath, err := scope.DataPath("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dataPath, cfg.Scheme), nil
}
