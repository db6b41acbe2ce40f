package app

import (
	"errors"
	"path/filepath"
)

// Config holds everything an App instance needs to run.
type Config struct {
	APIID   int32
	APIHash string

	// BotToken, when set, overrides the persisted inline bot token.
	BotToken string

	DataDir    string
	ModulesDir string // built-in manifests
	CustomDir  string // user manifests

	HotReload bool
	TestMode  bool

	LogFormat string
	LogLevel  string
	// LogFile disables file logging when empty.
	LogFile string
}

// NewConfig validates cfg and fills the derived paths.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.APIID == 0 {
		return nil, errors.New("APIID is required: pass --api-id or set OOLONG_API_ID")
	}
	if cfg.APIHash == "" {
		return nil, errors.New("APIHash is required: pass --api-hash or set OOLONG_API_HASH")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.ModulesDir == "" {
		cfg.ModulesDir = filepath.Join(cfg.DataDir, "modules")
	}
	if cfg.CustomDir == "" {
		cfg.CustomDir = filepath.Join(cfg.DataDir, "custom_modules")
	}
	return &cfg, nil
}

// StorePath is the key-value store file location.
func (c *Config) StorePath() string { return filepath.Join(c.DataDir, "store.json") }

// SessionPath is the MTProto session file location.
func (c *Config) SessionPath() string { return filepath.Join(c.DataDir, "oolong.session") }
