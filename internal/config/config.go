// Package config loads the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/emberhq/embersync/internal/protocol/frame"
	"github.com/emberhq/embersync/internal/server"
)

type DaemonConfig struct {
	Name        string   `toml:"name"`
	SyncAddr    string   `toml:"sync_addr"`
	AdminAddr   string   `toml:"admin_addr"`
	CorsOrigins []string `toml:"cors_origins"`

	DrainTimeoutMS    int64 `toml:"drain_timeout_ms"`
	NavigateTimeoutMS int64 `toml:"navigate_timeout_ms"`
	ReadTimeoutMS     int64 `toml:"read_timeout_ms"`
	WriteTimeoutMS    int64 `toml:"write_timeout_ms"`

	MaxPayloadBytes    uint32 `toml:"max_payload_bytes"`
	DispatchQueueDepth int    `toml:"dispatch_queue_depth"`
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Name:               "embersyncd",
		SyncAddr:           "127.0.0.1:50058",
		AdminAddr:          "",
		DrainTimeoutMS:     30_000,
		NavigateTimeoutMS:  10_000,
		ReadTimeoutMS:      0,
		WriteTimeoutMS:     10_000,
		MaxPayloadBytes:    frame.DefaultLimits().MaxPayloadBytes,
		DispatchQueueDepth: 64,
	}
}

func (c DaemonConfig) withDefaults() DaemonConfig {
	def := DefaultDaemonConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = def.Name
	}
	if strings.TrimSpace(c.SyncAddr) == "" {
		c.SyncAddr = def.SyncAddr
	}
	if c.DrainTimeoutMS <= 0 {
		c.DrainTimeoutMS = def.DrainTimeoutMS
	}
	if c.NavigateTimeoutMS <= 0 {
		c.NavigateTimeoutMS = def.NavigateTimeoutMS
	}
	if c.WriteTimeoutMS <= 0 {
		c.WriteTimeoutMS = def.WriteTimeoutMS
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = def.MaxPayloadBytes
	}
	if c.DispatchQueueDepth <= 0 {
		c.DispatchQueueDepth = def.DispatchQueueDepth
	}
	return c
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("daemon config missing name")
	}
	if strings.TrimSpace(cfg.SyncAddr) == "" {
		return fmt.Errorf("daemon config missing sync_addr")
	}
	if strings.HasPrefix(strings.TrimSpace(cfg.SyncAddr), ":") {
		return fmt.Errorf("daemon config sync_addr must include a host; the sync port is loopback-only")
	}
	if cfg.ReadTimeoutMS < 0 {
		return fmt.Errorf("daemon config read_timeout_ms must not be negative")
	}
	return nil
}

// ServerConfig converts the loaded file into the listener's runtime config.
func (c DaemonConfig) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:      c.SyncAddr,
		DrainTimeout:    time.Duration(c.DrainTimeoutMS) * time.Millisecond,
		NavigateTimeout: time.Duration(c.NavigateTimeoutMS) * time.Millisecond,
		ReadTimeout:     time.Duration(c.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:    time.Duration(c.WriteTimeoutMS) * time.Millisecond,
		Limits:          frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes},
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
