// Package config provides configuration management for the ragline CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/sjson"
)

const appName = "ragline"

// Storage backend names.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Codec names accepted by the "codec" field.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// Reconnect controls the transport's bounded reconnection loop.
type Reconnect struct {
	Attempts int `json:"attempts,omitempty"`
	DelayMS  int `json:"delay_ms,omitempty"`
}

// Options holds optional configuration settings.
type Options struct {
	DataDir string `json:"data_directory,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
}

// Config is the top-level configuration structure.
type Config struct {
	ServerURL   string     `json:"server_url"`
	WorkspaceID int64      `json:"workspace_id,omitempty"`
	RAGType     string     `json:"rag_type,omitempty"`
	Codec       string     `json:"codec,omitempty"`
	Storage     string     `json:"storage,omitempty"`
	Reconnect   *Reconnect `json:"reconnect,omitempty"`
	Options     *Options   `json:"options,omitempty"`
}

// NewConfig creates a new Config with initialized nested structs.
func NewConfig() *Config {
	return &Config{
		Reconnect: &Reconnect{},
		Options:   &Options{},
	}
}

// DataDir returns the data directory path from configuration.
func (c *Config) DataDir() string {
	if c.Options != nil && c.Options.DataDir != "" {
		return c.Options.DataDir
	}
	return defaultDataDir()
}

// SessionsPath returns the path of the JSON session blob for the file
// storage backend.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.DataDir(), "sessions.json")
}

// DatabasePath returns the sqlite database path for the sqlite storage
// backend.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "ragline.db")
}

// Validate checks the fields that only accept a closed set of values.
func (c *Config) Validate() error {
	switch c.Codec {
	case CodecJSON, CodecCBOR:
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	switch c.Storage {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	return nil
}

// SetField updates a single field in a config file using JSON path
// notation. This uses sjson for surgical updates - only the specified
// field is modified, and unknown fields in the file are preserved.
func SetField(path, key string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("{}")
		} else {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	newData, err := sjson.Set(string(data), key, value)
	if err != nil {
		return fmt.Errorf("setting config field %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(newData), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// SetGlobalField updates a single field in the global config file.
func SetGlobalField(key string, value any) error {
	return SetField(GlobalConfigPath(), key, value)
}
