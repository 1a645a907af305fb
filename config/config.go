// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/prognoshealth/destproxy/proxy"
)

// configSearchPaths lists paths checked in order when no explicit config is
// given. Inside lambda the deployment package root is checked first.
var configSearchPaths = []string{
	"/etc/destproxy/config.toml",
	"configs/destproxy.toml",
}

// CLI holds command-line arguments and environment variables parsed by Kong.
type CLI struct {
	Config      string   `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Routes      []string `kong:"help='Comma separated route prefixes served by the pipeline (overrides config).',env='ROUTES'"`
	ErrorPrefix string   `kong:"help='Prefix for locally generated error messages (overrides config).',env='ERROR_PREFIX'"`
	LogLevel    string   `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	LogFormat   string   `kong:"help='Log format: json|console (overrides config).',env='LOG_FORMAT'"`

	Region          string `kong:"help='AWS region for heartbeat lookups.',env='AWS_REGION'"`
	SecurityGroupID string `kong:"help='Security group of the function network interfaces.',env='HEARTBEAT_SECURITY_GROUP_ID'"`
	SubnetID        string `kong:"help='Subnet of the function network interfaces.',env='HEARTBEAT_SUBNET_ID'"`
	CheckIPURL      string `kong:"help='URL answering with the caller public ip.',env='HEARTBEAT_CHECKIP_URL'"`
	LockTable       string `kong:"help='DynamoDB table used to deduplicate scheduled events.',env='HEARTBEAT_LOCK_TABLE'"`

	Host string `kong:"help='Local gateway listen host (overrides config).',env='HOST'"`
	Port int    `kong:"short='p',help='Local gateway listen port (overrides config).',env='PORT'"`
}

// Config is the top-level application configuration.
type Config struct {
	Routes    []RouteConfig   `toml:"routes"`
	Forward   ForwardConfig   `toml:"forward"`
	Log       LogConfig       `toml:"log"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`
	Local     LocalConfig     `toml:"local"`

	filePath string // resolved config file path (unexported)
}

// RouteConfig is one entry of the static route table.
type RouteConfig struct {
	Prefix string `toml:"prefix"`
	Method string `toml:"method"`
}

// ForwardConfig holds settings of the forwarding pipeline.
type ForwardConfig struct {
	ErrorPrefix string `toml:"error_prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// HeartbeatConfig holds settings of the scheduled keep-warm invocation.
type HeartbeatConfig struct {
	Region          string `toml:"region"`
	SecurityGroupID string `toml:"security_group_id"`
	SubnetID        string `toml:"subnet_id"`
	CheckIPURL      string `toml:"checkip_url"`
	LockTable       string `toml:"lock_table"`
	LockTTLSeconds  int64  `toml:"lock_ttl_seconds"`
}

// LocalConfig holds settings of the local api gateway emulator.
type LocalConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"`
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
	Metrics      MetricsConfig   `toml:"metrics"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Parse parses args and the environment into a CLI.
func Parse(name, description string, args []string) (*CLI, error) {
	var cli CLI

	parser, err := kong.New(&cli, kong.Name(name), kong.Description(description))
	if err != nil {
		return nil, errors.Wrap(err, "config: build parser")
	}

	if _, err := parser.Parse(args); err != nil {
		return nil, errors.Wrap(err, "config: parse arguments")
	}

	return &cli, nil
}

// Load reads the TOML config file, when there is one, and applies CLI
// overrides. When no explicit path is given (via --config or CONFIG_PATH) the
// search paths are tried; finding no file is not an error.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}

		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}

		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "config: validate")
	}

	cfg.setDefaults()
	return &cfg, nil
}

// FilePath returns the config file that was loaded, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if len(cli.Routes) > 0 {
		c.Routes = nil
		for _, prefix := range cli.Routes {
			prefix = strings.TrimSpace(prefix)
			if prefix != "" {
				c.Routes = append(c.Routes, RouteConfig{Prefix: prefix})
			}
		}
	}
	if cli.ErrorPrefix != "" {
		c.Forward.ErrorPrefix = cli.ErrorPrefix
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		c.Log.Format = cli.LogFormat
	}
	if cli.Region != "" {
		c.Heartbeat.Region = cli.Region
	}
	if cli.SecurityGroupID != "" {
		c.Heartbeat.SecurityGroupID = cli.SecurityGroupID
	}
	if cli.SubnetID != "" {
		c.Heartbeat.SubnetID = cli.SubnetID
	}
	if cli.CheckIPURL != "" {
		c.Heartbeat.CheckIPURL = cli.CheckIPURL
	}
	if cli.LockTable != "" {
		c.Heartbeat.LockTable = cli.LockTable
	}
	if cli.Host != "" {
		c.Local.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Local.Port = cli.Port
	}
}

func (c *Config) validate() error {
	seen := map[string]bool{}
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("routes[%d].prefix must start with '/'; got %q", i, r.Prefix)
		}
		if r.Method != "" {
			if _, err := proxy.ParseHttpMethod(r.Method); err != nil {
				return fmt.Errorf("routes[%d].method: %w", i, err)
			}
		}
		key := strings.ToUpper(r.Method) + " " + r.Prefix
		if seen[key] {
			return fmt.Errorf("routes[%d] duplicates %q", i, key)
		}
		seen[key] = true
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, console; got %q", c.Log.Format)
	}

	if c.Heartbeat.CheckIPURL != "" {
		u, err := url.Parse(c.Heartbeat.CheckIPURL)
		if err != nil {
			return fmt.Errorf("heartbeat.checkip_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("heartbeat.checkip_url must use http or https; got %q", c.Heartbeat.CheckIPURL)
		}
	}
	if (c.Heartbeat.SecurityGroupID == "") != (c.Heartbeat.SubnetID == "") {
		return fmt.Errorf("heartbeat.security_group_id and heartbeat.subnet_id must be set together")
	}
	if c.Heartbeat.LockTTLSeconds < 0 {
		return fmt.Errorf("heartbeat.lock_ttl_seconds must be non-negative; got %d", c.Heartbeat.LockTTLSeconds)
	}

	if c.Local.Port < 0 || c.Local.Port > 65535 {
		return fmt.Errorf("local.port must be 0-65535; got %d", c.Local.Port)
	}
	if c.Local.BodyMaxBytes < 0 {
		return fmt.Errorf("local.body_max_bytes must be non-negative; got %d", c.Local.BodyMaxBytes)
	}
	if c.Local.RateLimit.Enabled && c.Local.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("local.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Local.RateLimit.RequestsPerSecond)
	}
	if p := c.Local.Metrics.Path; c.Local.Metrics.Enabled && p != "" {
		if p[0] != '/' {
			return fmt.Errorf("local.metrics.path must start with '/'; got %q", p)
		}
		if p == "/healthz" {
			return fmt.Errorf("local.metrics.path %q conflicts with the health route", p)
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with defaults.
func (c *Config) setDefaults() {
	for i := range c.Routes {
		if c.Routes[i].Method == "" {
			c.Routes[i].Method = proxy.ANY.String()
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Heartbeat.LockTTLSeconds == 0 {
		c.Heartbeat.LockTTLSeconds = 300
	}
	if c.Local.Host == "" {
		c.Local.Host = "127.0.0.1"
	}
	if c.Local.Port == 0 {
		c.Local.Port = 3000
	}
	if c.Local.BodyMaxBytes == 0 {
		c.Local.BodyMaxBytes = 10 * 1024 * 1024 // api gateway payload limit
	}
	if c.Local.Metrics.Path == "" {
		c.Local.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	paths := configSearchPaths
	if root := os.Getenv("LAMBDA_TASK_ROOT"); root != "" {
		paths = append([]string{filepath.Join(root, "destproxy.toml")}, paths...)
	}
	return findConfigInPaths(paths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the local gateway listen address as host:port.
func (c *LocalConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
