package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath  string
	Network     string
	Listen      string
	LogLevel    string
	MetricsAddr string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./rmilterd.toml", "Path to configuration file")
	flag.StringVar(&f.Network, "network", "", "Listen network (tcp or unix)")
	flag.StringVar(&f.Listen, "listen", "", "Listen address")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus listen address (enables metrics)")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig Config
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return mergeConfig(cfg, fileConfig), nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Network != "" {
		cfg.Listen.Network = f.Network
	}
	if f.Listen != "" {
		cfg.Listen.Address = f.Listen
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.MetricsAddr
	}
	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Listen.Network != "" {
		dst.Listen.Network = src.Listen.Network
	}
	if src.Listen.Address != "" {
		dst.Listen.Address = src.Listen.Address
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	// Skip bits only come from the file; false is a meaningful value, so the
	// whole section is taken as written.
	dst.Skip = src.Skip

	if src.Metrics.Enabled {
		dst.Metrics.Enabled = true
	}
	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}
	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	if src.DNSBL.Enabled {
		dst.DNSBL.Enabled = true
	}
	if len(src.DNSBL.Zones) > 0 {
		dst.DNSBL.Zones = src.DNSBL.Zones
	}
	if len(src.DNSBL.Nameservers) > 0 {
		dst.DNSBL.Nameservers = src.DNSBL.Nameservers
	}
	if src.DNSBL.Timeout != "" {
		dst.DNSBL.Timeout = src.DNSBL.Timeout
	}

	if src.Greylist.Enabled {
		dst.Greylist.Enabled = true
	}
	if src.Greylist.RedisAddr != "" {
		dst.Greylist.RedisAddr = src.Greylist.RedisAddr
	}
	if src.Greylist.Delay != "" {
		dst.Greylist.Delay = src.Greylist.Delay
	}
	if src.Greylist.Window != "" {
		dst.Greylist.Window = src.Greylist.Window
	}

	return dst
}
