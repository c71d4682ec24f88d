package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Fanout   FanoutConfig   `yaml:"fanout"`
	Backfill BackfillConfig `yaml:"backfill"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	// FastIntakeAddr, when set, starts an additional fasthttp listener that
	// accepts webhook POSTs only. Empty disables it.
	FastIntakeAddr string    `yaml:"fast_intake_addr"`
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig holds webhook intake tunables.
type IngestConfig struct {
	// MaxBodyBytes caps a single webhook payload. Zero means the default
	// (5MB), matching typical provider limits.
	MaxBodyBytes SizeBytes `yaml:"max_body_bytes"`
}

// FanoutConfig controls realtime delivery of applied changes.
type FanoutConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig holds JetStream publishing settings. Disabled by default; the
// in-process websocket hub always runs.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// BackfillConfig holds configuration for the directory replay runner.
type BackfillConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Cron    string `yaml:"cron"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "5MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }
