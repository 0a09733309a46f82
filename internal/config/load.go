package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	configFileName = "ragline.json"

	defaultServerURL         = "ws://localhost:8000/ws/chat"
	defaultRAGType           = "hybrid"
	defaultReconnectAttempts = 5
	defaultReconnectDelayMS  = 2000

	// Environment overrides, applied after file values.
	envServerURL = "RAGLINE_SERVER_URL"
	envDebug     = "RAGLINE_DEBUG"
)

// Load reads the global configuration file, applies defaults for any
// missing fields, and applies environment overrides. A missing file is
// not an error; the result is the default configuration.
func Load() (*Config, error) {
	return LoadFromFile(GlobalConfigPath())
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	if cfg.RAGType == "" {
		cfg.RAGType = defaultRAGType
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecJSON
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageFile
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = &Reconnect{}
	}
	if cfg.Reconnect.Attempts == 0 {
		cfg.Reconnect.Attempts = defaultReconnectAttempts
	}
	if cfg.Reconnect.DelayMS == 0 {
		cfg.Reconnect.DelayMS = defaultReconnectDelayMS
	}
	if cfg.Options == nil {
		cfg.Options = &Options{}
	}
	if cfg.Options.DataDir == "" {
		cfg.Options.DataDir = defaultDataDir()
	}
}

func applyEnv(cfg *Config) {
	if url := os.Getenv(envServerURL); url != "" {
		cfg.ServerURL = url
	}
	if os.Getenv(envDebug) != "" {
		cfg.Options.Debug = true
	}
}

// GlobalConfigPath returns the path to the global configuration file.
func GlobalConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}

func defaultDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}
