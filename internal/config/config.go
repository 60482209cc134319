// Package config loads the RuntimeConfig struct the core reads: listener
// ports, the optional retriever flag, galaxy-at-war tuning, and logging
// level. CLI parsing itself is out of scope (SPEC_FULL.md §6.4); cmd/*
// binaries parse no flags and load this from a fixed path that the
// BLAZERELAY_CONFIG environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the single struct the core consumes, per spec.md §6
// "CLI / config".
type RuntimeConfig struct {
	// Network
	RedirectorPort int    `yaml:"redirector_port"`
	MainPort       int    `yaml:"main_port"`
	TelemetryPort  int    `yaml:"telemetry_port"`
	QosPort        int    `yaml:"qos_port"`
	HTTPPort       int    `yaml:"http_port"`
	ExternalHost   string `yaml:"external_host"`

	// TLS material for the redirector and, when Retriever.Enabled, the
	// upstream connection.
	TLS TLSConfig `yaml:"tls"`

	// Retriever is the optional upstream proxy to the original publisher
	// servers.
	Retriever RetrieverConfig `yaml:"retriever"`

	// Galaxy-at-war tuning.
	GaWDecay       float32 `yaml:"gaw_decay"`
	GaWPromotions  bool    `yaml:"gaw_promotions"`

	// MenuMessage supports {v} (version), {n} (player count), {ip}
	// placeholders, substituted by the login/menu handler.
	MenuMessage string `yaml:"menu_message"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	LogLevel string `yaml:"log_level"`
}

// TLSConfig points at the cert/key pair the redirector (and optionally the
// retriever client) use.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// RetrieverConfig toggles and targets the optional upstream Blaze client.
type RetrieverConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns          int32  `yaml:"max_conns"`
	MinConns          int32  `yaml:"min_conns"`
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`
	HealthCheckPeriod string `yaml:"health_check_period"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params string
	add := func(k, v string) {
		if v == "" {
			return
		}
		params += fmt.Sprintf("&%s=%s", k, v)
	}
	if d.MaxConns > 0 {
		add("pool_max_conns", fmt.Sprintf("%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		add("pool_min_conns", fmt.Sprintf("%d", d.MinConns))
	}
	add("pool_max_conn_lifetime", d.MaxConnLifetime)
	add("pool_max_conn_idle_time", d.MaxConnIdleTime)
	add("pool_health_check_period", d.HealthCheckPeriod)

	return base + params
}

// Default returns a RuntimeConfig with sensible defaults for local
// development, the same shape as the teacher's DefaultLoginServer.
func Default() RuntimeConfig {
	return RuntimeConfig{
		RedirectorPort: 42127,
		MainPort:       14219,
		TelemetryPort:  9988,
		QosPort:        17499,
		HTTPPort:       80,
		ExternalHost:   "127.0.0.1",
		GaWDecay:       0,
		GaWPromotions:  true,
		MenuMessage:    "Blaze relay v{v} ({n} players online, connecting via {ip})",
		LogLevel:       "info",
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "blazerelay",
			Password: "blazerelay",
			DBName:  "blazerelay",
			SSLMode: "disable",
		},
	}
}

// Load reads RuntimeConfig from a YAML file. If the file doesn't exist,
// returns defaults.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
