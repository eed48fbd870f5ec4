// ABOUTME: Configuration loading and parsing for oneblock-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	DefaultHTTPAddr         = "0.0.0.0:8080"
	DefaultDriver           = "sqlite"
	DefaultChallenge        = "login Oneblock"
	DefaultTokenTTL         = 24 * time.Hour
	DefaultCookieName       = "oneblock_session"
	DefaultInitialStudentID = "1799"
	DefaultStudentIDWidth   = 4
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"

	// MinJWTSecretLength matches the session manager's HS256 requirement.
	MinJWTSecretLength = 32
)

// Environment variables that override file values.
const (
	EnvConfigPath       = "ONEBLOCK_CONFIG"
	EnvDBPath           = "ONEBLOCK_DB_PATH"
	EnvJWTSecret        = "ONEBLOCK_JWT_SECRET"
	EnvInitialStudentID = "INITIAL_STUDENT_ID"
)

// Config represents the complete oneblock-gateway configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Tailscale    TailscaleConfig    `yaml:"tailscale" toml:"tailscale"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
	Registration RegistrationConfig `yaml:"registration" toml:"registration"`
	Guard        GuardConfig        `yaml:"guard" toml:"guard"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"` // empty disables gRPC unless tailscale is on
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path" toml:"path"`     // sqlite file
	DSN    string `yaml:"dsn" toml:"dsn"`       // postgres connection string
}

// AuthConfig holds wallet login and session configuration
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret" toml:"jwt_secret"`
	Challenge    string        `yaml:"challenge" toml:"challenge"`
	TokenTTL     time.Duration `yaml:"-" toml:"-"`
	CookieName   string        `yaml:"cookie_name" toml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure" toml:"cookie_secure"`

	// Raw string value for unmarshaling
	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// RegistrationConfig controls student id allocation
type RegistrationConfig struct {
	InitialStudentID string `yaml:"initial_student_id" toml:"initial_student_id"`
	StudentIDWidth   int    `yaml:"student_id_width" toml:"student_id_width"`

	// Baseline is InitialStudentID parsed during Load.
	Baseline int64 `yaml:"-" toml:"-"`
}

// GuardConfig lists the protected path prefixes
type GuardConfig struct {
	Routes []RouteConfig `yaml:"routes" toml:"routes"`
}

// RouteConfig protects one path prefix
type RouteConfig struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	Kind   string `yaml:"kind" toml:"kind"` // "page" or "api"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish applies overrides and defaults, parses derived fields and validates.
func (c *Config) finish() error {
	c.applyEnvOverrides()
	c.applyDefaults()

	if err := parseDerived(c); err != nil {
		return fmt.Errorf("parsing config values: %w", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvInitialStudentID); v != "" {
		c.Registration.InitialStudentID = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Auth.Challenge == "" {
		c.Auth.Challenge = DefaultChallenge
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = DefaultCookieName
	}
	if c.Registration.InitialStudentID == "" {
		c.Registration.InitialStudentID = DefaultInitialStudentID
	}
	if c.Registration.StudentIDWidth == 0 {
		c.Registration.StudentIDWidth = DefaultStudentIDWidth
	}
	if len(c.Guard.Routes) == 0 {
		c.Guard.Routes = DefaultRoutes()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// DefaultRoutes returns the protected prefixes used when guard.routes is empty.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Prefix: "/dashboard", Kind: "page"},
		{Prefix: "/api/file", Kind: "api"},
		{Prefix: "/api/save", Kind: "api"},
		{Prefix: "/api/me", Kind: "api"},
	}
}

// parseDerived converts raw strings into typed values
func parseDerived(cfg *Config) error {
	cfg.Auth.TokenTTL = DefaultTokenTTL
	if cfg.Auth.TokenTTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
		cfg.Auth.TokenTTL = ttl
	}

	baseline, err := strconv.ParseInt(strings.TrimSpace(cfg.Registration.InitialStudentID), 10, 64)
	if err != nil || baseline < 0 {
		return fmt.Errorf("initial_student_id %q must be a non-negative integer", cfg.Registration.InitialStudentID)
	}
	cfg.Registration.Baseline = baseline

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if strings.TrimSpace(c.Auth.Challenge) == "" {
		return fmt.Errorf("auth.challenge must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Registration.StudentIDWidth < 1 || c.Registration.StudentIDWidth > 12 {
		return fmt.Errorf("registration.student_id_width must be between 1 and 12")
	}

	for i, r := range c.Guard.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("guard.routes[%d].prefix %q must start with /", i, r.Prefix)
		}
		if r.Kind != "page" && r.Kind != "api" {
			return fmt.Errorf("guard.routes[%d].kind must be page or api, got %q", i, r.Kind)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}
