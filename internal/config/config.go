package config

import (
	"errors"
	"time"
)

// Config holds warden configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	ServiceDomain      string        `mapstructure:"service_domain" yaml:"service_domain"`
	HealthRoomPrefixes []string      `mapstructure:"health_room_prefixes" yaml:"health_room_prefixes"`

	Admin       AdminConfig       `mapstructure:"admin" yaml:"admin"`
	RoomServer  RoomServerConfig  `mapstructure:"room_server" yaml:"room_server"`
	Entitlement EntitlementConfig `mapstructure:"entitlement" yaml:"entitlement"`
	Election    ElectionConfig    `mapstructure:"election" yaml:"election"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
}

// AdminConfig configures the operator-facing API tokens.
type AdminConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
}

// RoomServerConfig points the warden at the room server it supervises.
type RoomServerConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	ChatWSURL      string        `mapstructure:"chat_ws_url" yaml:"chat_ws_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret      string        `mapstructure:"api_secret" yaml:"api_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// EntitlementConfig points the warden at the entitlement oracle.
type EntitlementConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ElectionConfig tunes host election and room teardown timing.
type ElectionConfig struct {
	DestroyDelay    time.Duration `mapstructure:"destroy_delay" yaml:"destroy_delay"`
	GraceDelay      time.Duration `mapstructure:"grace_delay" yaml:"grace_delay"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval" yaml:"recheck_interval"`
}

// NotifyConfig tunes the system-chat notifier.
type NotifyConfig struct {
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	QueueSize   int    `mapstructure:"queue_size" yaml:"queue_size"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8090",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		DatabasePath:       "warden.db",
		ServiceDomain:      "auth.wiremeet.local",
		HealthRoomPrefixes: []string{"__healthcheck"},
		Admin: AdminConfig{
			JWTIssuer:   "wiremeet-warden",
			JWTAudience: "warden-admin",
			JWTTTL:      24 * time.Hour,
		},
		RoomServer: RoomServerConfig{
			BaseURL:        "http://localhost:8080",
			ChatWSURL:      "ws://localhost:8080/system-chat",
			RequestTimeout: 3 * time.Second,
		},
		Entitlement: EntitlementConfig{
			BaseURL: "http://localhost:9200",
			Timeout: 3 * time.Second,
		},
		Election: ElectionConfig{
			DestroyDelay:    2 * time.Minute,
			GraceDelay:      2 * time.Second,
			RecheckInterval: time.Second,
		},
		Notify: NotifyConfig{
			DisplayName: "Wiremeet",
			QueueSize:   64,
		},
	}
}

// Validate reports configuration the server cannot start without.
func (c *Config) Validate() error {
	if c.RoomServer.APIKey == "" || c.RoomServer.APISecret == "" {
		return errors.New("room_server.api_key and room_server.api_secret are required")
	}
	if c.Election.DestroyDelay <= 0 {
		return errors.New("election.destroy_delay must be positive")
	}
	if c.Election.RecheckInterval <= 0 {
		return errors.New("election.recheck_interval must be positive")
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
