// Package config provides configuration management for the Passerelle gateway.
// It handles loading and parsing the YAML configuration file, overlaying .env
// values, and provides structured access to application settings including the
// listen address, backend base URL, OAuth provider wiring, session storage and
// logging behavior.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider delivery modes. Direct providers redirect back with a ready bearer
// token; exchange providers redirect back with an authorization code that the
// backend exchanges server-side.
const (
	DeliveryToken = "token"
	DeliveryCode  = "code"
)

// Config represents the gateway's configuration, loaded from a YAML file.
type Config struct {
	// Addr is the listen address for the gateway HTTP server.
	Addr string `yaml:"addr" json:"addr"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// RequestLog enables detailed request logging functionality.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// LoggingToFile routes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory used for rotating log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// Backend configures the publication backend the gateway fronts.
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// Session configures the browser session and credential storage.
	Session SessionConfig `yaml:"session" json:"session"`

	// Audit configures the optional Postgres audit trail for the OAuth lifecycle.
	Audit AuditConfig `yaml:"audit" json:"audit"`

	// Providers lists the third-party platforms users can connect.
	Providers []ProviderConfig `yaml:"providers" json:"providers"`

	// Routes configures the gateway-side navigation targets.
	Routes RoutesConfig `yaml:"routes" json:"routes"`

	// ConnectionsCacheTTLSeconds bounds the read-through cache for platform
	// connections. <= 0 falls back to the default of 30 seconds.
	ConnectionsCacheTTLSeconds int `yaml:"connections-cache-ttl-seconds,omitempty" json:"connections-cache-ttl-seconds,omitempty"`
}

// BackendConfig holds the REST backend endpoints consumed by the gateway.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. "http://localhost:8080". All REST
	// paths in this file are resolved against BaseURL + "/api".
	BaseURL string `yaml:"base-url" json:"base-url"`

	// TimeoutSeconds bounds every outbound backend call. <= 0 means 15 seconds.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`
}

// SessionConfig holds browser session behavior.
type SessionConfig struct {
	// CookieName is the opaque session cookie name.
	CookieName string `yaml:"cookie-name" json:"cookie-name"`

	// TTLSeconds is how long an idle session credential is retained. <= 0
	// means 24 hours.
	TTLSeconds int `yaml:"ttl-seconds,omitempty" json:"ttl-seconds,omitempty"`

	// Store selects the credential store backend: "memory" (default) or "redis".
	Store string `yaml:"store" json:"store"`

	// Redis configures the redis credential store when Store is "redis".
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// CookieSecure marks the session cookie Secure; enable behind TLS.
	CookieSecure bool `yaml:"cookie-secure" json:"cookie-secure"`
}

// RedisConfig holds redis connection settings for the session store.
type RedisConfig struct {
	// Addr is the redis host:port.
	Addr string `yaml:"addr" json:"addr"`
	// Password is the redis AUTH password, empty for none.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	// DB is the redis database index.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`
}

// AuditConfig holds the optional Postgres audit sink settings.
type AuditConfig struct {
	// Enabled turns the audit trail on. When false the gateway runs without
	// a database.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// Table is the audit table name. Empty means "oauth_audit".
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
}

// ProviderConfig describes one third-party platform connection flow.
type ProviderConfig struct {
	// Name is the canonical provider key: "google", "x", "facebook".
	Name string `yaml:"name" json:"name"`

	// Delivery is the callback credential delivery mode, "token" or "code".
	Delivery string `yaml:"delivery" json:"delivery"`

	// AuthorizeURL is the fixed backend redirect route for direct providers.
	// Exchange providers leave it empty and use InitiatePath instead.
	AuthorizeURL string `yaml:"authorize-url,omitempty" json:"authorize-url,omitempty"`

	// InitiatePath is the backend path that mints the authorization URL and
	// CSRF state for exchange providers, e.g. "/auth/facebook/initiate".
	InitiatePath string `yaml:"initiate-path,omitempty" json:"initiate-path,omitempty"`

	// ExchangePath is the backend path that swaps {code, state} for a token.
	ExchangePath string `yaml:"exchange-path,omitempty" json:"exchange-path,omitempty"`

	// ErrorDelaySeconds is how long the failure page is displayed before
	// redirecting back to the login page. Clamped to the 1-5 second range.
	ErrorDelaySeconds int `yaml:"error-delay-seconds,omitempty" json:"error-delay-seconds,omitempty"`
}

// RoutesConfig holds gateway navigation targets.
type RoutesConfig struct {
	// Landing is where successful authentication navigates to.
	Landing string `yaml:"landing" json:"landing"`
	// Login is where failed or expired sessions navigate to.
	Login string `yaml:"login" json:"login"`
}

// Default fallbacks applied after load.
const (
	defaultAddr              = ":8317"
	defaultCookieName        = "passerelle_session"
	defaultSessionTTL        = 24 * time.Hour
	defaultBackendTimeout    = 15 * time.Second
	defaultConnectionsTTL    = 30 * time.Second
	defaultLandingRoute      = "/dashboard"
	defaultLoginRoute        = "/login"
	defaultAuditTable        = "oauth_audit"
	defaultErrorDelaySeconds = 3
)

// LoadConfig reads the configuration file at path, overlaying values from a
// .env file in the working directory when present. Secrets (backend URL,
// redis password, audit DSN) may be supplied through the environment instead
// of the YAML file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("PASSERELLE_BACKEND_URL")); v != "" {
		c.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PASSERELLE_REDIS_ADDR")); v != "" {
		c.Session.Redis.Addr = v
	}
	if v := os.Getenv("PASSERELLE_REDIS_PASSWORD"); v != "" {
		c.Session.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("PASSERELLE_AUDIT_DSN")); v != "" {
		c.Audit.DSN = v
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = defaultAddr
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		c.Session.CookieName = defaultCookieName
	}
	if strings.TrimSpace(c.Session.Store) == "" {
		c.Session.Store = "memory"
	}
	if strings.TrimSpace(c.Routes.Landing) == "" {
		c.Routes.Landing = defaultLandingRoute
	}
	if strings.TrimSpace(c.Routes.Login) == "" {
		c.Routes.Login = defaultLoginRoute
	}
	if strings.TrimSpace(c.Audit.Table) == "" {
		c.Audit.Table = defaultAuditTable
	}
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("config: backend.base-url is required")
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			return fmt.Errorf("config: session.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown session store %q", c.Session.Store)
	}
	if c.Audit.Enabled && strings.TrimSpace(c.Audit.DSN) == "" {
		return fmt.Errorf("config: audit.dsn is required when audit is enabled")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return fmt.Errorf("config: providers[%d].name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("config: duplicate provider %q", name)
		}
		seen[name] = true
		switch p.Delivery {
		case DeliveryToken:
			if strings.TrimSpace(p.AuthorizeURL) == "" {
				return fmt.Errorf("config: provider %q: authorize-url is required for token delivery", name)
			}
		case DeliveryCode:
			if strings.TrimSpace(p.InitiatePath) == "" || strings.TrimSpace(p.ExchangePath) == "" {
				return fmt.Errorf("config: provider %q: initiate-path and exchange-path are required for code delivery", name)
			}
		default:
			return fmt.Errorf("config: provider %q: unknown delivery mode %q", name, p.Delivery)
		}
	}
	return nil
}

// Provider returns the configuration for the named provider, nil when absent.
func (c *Config) Provider(name string) *ProviderConfig {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range c.Providers {
		if strings.EqualFold(c.Providers[i].Name, name) {
			return &c.Providers[i]
		}
	}
	return nil
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	if c.Session.TTLSeconds > 0 {
		return time.Duration(c.Session.TTLSeconds) * time.Second
	}
	return defaultSessionTTL
}

// BackendTimeout returns the outbound call timeout.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds > 0 {
		return time.Duration(c.Backend.TimeoutSeconds) * time.Second
	}
	return defaultBackendTimeout
}

// ConnectionsCacheTTL returns the read-through cache lifetime for connections.
func (c *Config) ConnectionsCacheTTL() time.Duration {
	if c.ConnectionsCacheTTLSeconds > 0 {
		return time.Duration(c.ConnectionsCacheTTLSeconds) * time.Second
	}
	return defaultConnectionsTTL
}

// ErrorDelay returns the failure-page display delay for a provider, clamped to
// the 1-5 second range the product tolerates.
func (p *ProviderConfig) ErrorDelay() time.Duration {
	secs := p.ErrorDelaySeconds
	if secs <= 0 {
		secs = defaultErrorDelaySeconds
	}
	if secs < 1 {
		secs = 1
	}
	if secs > 5 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}
