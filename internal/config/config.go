// Package config provides configuration management for the milter daemon.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/arnej/rmilter"
)

// Config holds the complete milter daemon configuration.
type Config struct {
	Listen   ListenConfig   `toml:"listen"`
	LogLevel string         `toml:"log_level"`
	Skip     SkipConfig     `toml:"skip"`
	Metrics  MetricsConfig  `toml:"metrics"`
	DNSBL    DNSBLConfig    `toml:"dnsbl"`
	Greylist GreylistConfig `toml:"greylist"`
}

// ListenConfig defines where the daemon accepts MTA connections.
type ListenConfig struct {
	Network string `toml:"network"` // "tcp" or "unix"
	Address string `toml:"address"`
}

// SkipConfig selects the protocol steps the MTA is asked not to send.
type SkipConfig struct {
	Connect   bool `toml:"connect"`
	Helo      bool `toml:"helo"`
	MailFrom  bool `toml:"mail_from"`
	Recipient bool `toml:"recipient"`
	Body      bool `toml:"body"`
	Headers   bool `toml:"headers"`
	EOH       bool `toml:"eoh"`
}

// Bits converts the skip selection to the protocol bits announced during
// option negotiation.
func (s SkipConfig) Bits() rmilter.OptProtocol {
	var bits rmilter.OptProtocol
	if s.Connect {
		bits |= rmilter.OptNoConnect
	}
	if s.Helo {
		bits |= rmilter.OptNoHelo
	}
	if s.MailFrom {
		bits |= rmilter.OptNoMailFrom
	}
	if s.Recipient {
		bits |= rmilter.OptNoRecipient
	}
	if s.Body {
		bits |= rmilter.OptNoBody
	}
	if s.Headers {
		bits |= rmilter.OptNoHeaders
	}
	if s.EOH {
		bits |= rmilter.OptNoEOH
	}
	return bits
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// DNSBLConfig holds configuration for DNS blocklist lookups at connect time.
type DNSBLConfig struct {
	Enabled     bool     `toml:"enabled"`
	Zones       []string `toml:"zones"`
	Nameservers []string `toml:"nameservers"`
	Timeout     string   `toml:"timeout"`
}

// GreylistConfig holds configuration for Redis-backed greylisting.
type GreylistConfig struct {
	Enabled   bool   `toml:"enabled"`
	RedisAddr string `toml:"redis_addr"`
	Delay     string `toml:"delay"`
	Window    string `toml:"window"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			Network: "tcp",
			Address: "127.0.0.1:10025",
		},
		LogLevel: "info",
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
		DNSBL: DNSBLConfig{
			Timeout: "3s",
		},
		Greylist: GreylistConfig{
			RedisAddr: "127.0.0.1:6379",
			Delay:     "5m",
			Window:    "24h",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	switch c.Listen.Network {
	case "tcp", "unix":
	default:
		return fmt.Errorf("listen network %q: must be tcp or unix", c.Listen.Network)
	}
	if c.Listen.Address == "" {
		return errors.New("listen address is required")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	if c.DNSBL.Enabled {
		if len(c.DNSBL.Zones) == 0 {
			return errors.New("at least one dnsbl zone is required when dnsbl is enabled")
		}
		if _, err := time.ParseDuration(c.DNSBL.Timeout); err != nil {
			return fmt.Errorf("dnsbl timeout: %w", err)
		}
	}

	if c.Greylist.Enabled {
		if c.Greylist.RedisAddr == "" {
			return errors.New("redis address is required when greylisting is enabled")
		}
		if _, err := time.ParseDuration(c.Greylist.Delay); err != nil {
			return fmt.Errorf("greylist delay: %w", err)
		}
		if _, err := time.ParseDuration(c.Greylist.Window); err != nil {
			return fmt.Errorf("greylist window: %w", err)
		}
	}

	return nil
}
