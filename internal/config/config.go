package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	// AuthToken is the fixed bearer token held by headsets and service clients.
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`

	// SocketURL is the realtime endpoint advertised in pairing tickets.
	SocketURL   string   `mapstructure:"socket_url" yaml:"socket_url"`
	FrontendURL string   `mapstructure:"frontend_url" yaml:"frontend_url"`
	StoragePath string   `mapstructure:"storage_path" yaml:"storage_path"`
	STUNServers []string `mapstructure:"stun_servers" yaml:"stun_servers"`

	TicketTTL time.Duration `mapstructure:"ticket_ttl" yaml:"ticket_ttl"`

	MaxMessageBytes   int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	CommandsPerSecond float64 `mapstructure:"commands_per_second" yaml:"commands_per_second"`
	CommandBurst      int     `mapstructure:"command_burst" yaml:"command_burst"`

	// RedisAddr enables the shared pin redemption limiter when set.
	RedisAddr       string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedeemPerMinute int    `mapstructure:"redeem_per_minute" yaml:"redeem_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
// Secrets and endpoints are left empty and must be provided.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "arview.db",
		JWTIssuer:         "arview",
		JWTAudience:       "arview",
		JWTTTL:            24 * time.Hour,
		FrontendURL:       "http://localhost:5173",
		StoragePath:       "storage",
		TicketTTL:         time.Hour,
		MaxMessageBytes:   1 << 20,
		CommandsPerSecond: 60,
		CommandBurst:      120,
		RedeemPerMinute:   30,
	}
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

// Validate reports every missing or malformed value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.AuthToken == "" {
		errs = append(errs, errors.New("auth_token is required"))
	}
	if c.SocketURL == "" {
		errs = append(errs, errors.New("socket_url is required"))
	} else if _, err := url.Parse(c.SocketURL); err != nil {
		errs = append(errs, fmt.Errorf("socket_url: %w", err))
	}
	if len(c.STUNServers) == 0 {
		errs = append(errs, errors.New("stun_servers is required"))
	}
	for _, raw := range c.STUNServers {
		if _, err := stun.ParseURI(strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("stun_servers %q: %w", raw, err))
		}
	}
	if c.TicketTTL <= 0 {
		errs = append(errs, errors.New("ticket_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// ICEServers converts the configured STUN URLs into the list handed to
// peers when a stream starts. All URLs share one entry.
func (c *Config) ICEServers() []webrtc.ICEServer {
	urls := make([]string, 0, len(c.STUNServers))
	for _, raw := range c.STUNServers {
		if s := strings.TrimSpace(raw); s != "" {
			urls = append(urls, s)
		}
	}
	if len(urls) == 0 {
		return []webrtc.ICEServer{}
	}
	return []webrtc.ICEServer{{URLs: urls}}
}
