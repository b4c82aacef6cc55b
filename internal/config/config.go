package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/s3fs"
	"github.com/duduk-dev/duduk/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "duduk.json"

	// EnvFileName is loaded next to the configuration file when present.
	EnvFileName = ".env"

	// DefaultPort is the default server port.
	DefaultPort = 8000

	// DefaultHost is the default server host.
	DefaultHost = "127.0.0.1"

	// DefaultDist is the default compiled application directory.
	DefaultDist = "dist"

	// DefaultMetricsPath is where metrics are served when enabled.
	DefaultMetricsPath = "/metrics"

	// DefaultRenderTimeout bounds a single server render.
	DefaultRenderTimeout = "10s"

	// DefaultProgramCache is the number of compiled modules kept.
	DefaultProgramCache = 512

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = "30s"
)

// Config represents duduk.json, overlaid by the environment.
type Config struct {
	// Host is the interface to listen on.
	Host string `json:"host,omitempty" env:"HOST"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" env:"PORT,strict"`

	// Dist is the compiled application directory, relative to the
	// configuration file. Ignored when modules come from S3.
	Dist string `json:"dist,omitempty" env:"DUDUK_DIST"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "30s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" env:"DUDUK_SHUTDOWN_TIMEOUT"`

	// TrustedProxies lists proxy IPs or CIDRs. In the environment they
	// are separated by semicolons.
	TrustedProxies []string `json:"trustedProxies,omitempty" env:"DUDUK_TRUSTED_PROXIES"`

	// Render contains server rendering configuration.
	Render RenderConfig `json:"render,omitempty"`

	// Modules contains the application source configuration.
	Modules ModulesConfig `json:"modules,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Locales contains translation configuration.
	Locales LocalesConfig `json:"locales,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RenderConfig contains server rendering settings.
type RenderConfig struct {
	// Timeout bounds a single render (e.g., "10s").
	Timeout string `json:"timeout,omitempty" env:"DUDUK_RENDER_TIMEOUT"`

	// ProgramCache is the number of compiled modules kept in memory.
	ProgramCache int `json:"programCache,omitempty" env:"DUDUK_PROGRAM_CACHE,strict"`
}

// ModulesConfig selects where the compiled application is read from.
type ModulesConfig struct {
	// S3 reads the application from a bucket when Bucket is set.
	S3 S3Config `json:"s3,omitempty"`
}

// S3Config locates the application in an S3 bucket. Credentials are
// only read from the environment.
type S3Config struct {
	Bucket    string `json:"bucket,omitempty" env:"DUDUK_S3_BUCKET"`
	Prefix    string `json:"prefix,omitempty" env:"DUDUK_S3_PREFIX"`
	Region    string `json:"region,omitempty" env:"AWS_REGION"`
	Endpoint  string `json:"endpoint,omitempty" env:"DUDUK_S3_ENDPOINT"`
	PathStyle bool   `json:"pathStyle,omitempty" env:"DUDUK_S3_PATH_STYLE,strict"`

	AccessKeyID     string `json:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `json:"-" env:"AWS_SESSION_TOKEN"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled serves metrics and instruments requests.
	Enabled bool `json:"enabled,omitempty" env:"DUDUK_METRICS,strict"`

	// Path is the metrics endpoint.
	Path string `json:"path,omitempty" env:"DUDUK_METRICS_PATH"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"DUDUK_LOG_LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"DUDUK_LOG_FORMAT"`
}

// LocalesConfig contains translation settings.
type LocalesConfig struct {
	// Default is the fallback locale. It defaults to the first
	// dictionary in name order.
	Default string `json:"default,omitempty" env:"DUDUK_DEFAULT_LOCALE"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Dist:            DefaultDist,
		ShutdownTimeout: DefaultShutdownTimeout,
		Render: RenderConfig{
			Timeout:      DefaultRenderTimeout,
			ProgramCache: DefaultProgramCache,
		},
		Metrics: MetricsConfig{
			Path: DefaultMetricsPath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration for the project in dir. A missing
// duduk.json yields the defaults. A .env file in dir is loaded into the
// process environment without overriding variables already set, then
// the environment is applied on top of the file.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.CodeConfig).
				WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
				WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.New(errors.CodeConfig).Wrap(err)
	}

	envPath := filepath.Join(filepath.Dir(path), EnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, errors.New(errors.CodeConfig).
				WithDetailf("loading %s", envPath).
				Wrap(err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overlays the process environment. Numeric and boolean
// variables that fail to parse are errors.
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.New(errors.CodeConfig).
			WithDetail("invalid environment").
			Wrap(err)
	}
	return nil
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := New()
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.Dist == "" {
		c.Dist = defaults.Dist
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.Render.Timeout == "" {
		c.Render.Timeout = defaults.Render.Timeout
	}
	if c.Render.ProgramCache == 0 {
		c.Render.ProgramCache = defaults.Render.ProgramCache
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New(errors.CodeConfig).
			WithDetail("Port must be between 0 and 65535")
	}
	for name, value := range map[string]string{
		"shutdownTimeout": c.ShutdownTimeout,
		"render.timeout":  c.Render.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.New(errors.CodeConfig).
				WithDetailf("%s %q is not a duration", name, value).
				WithSuggestion(`Use a Go duration such as "10s" or "1m"`)
		}
		if d <= 0 {
			return errors.New(errors.CodeConfig).WithDetailf("%s must be positive", name)
		}
	}
	if c.Render.ProgramCache < 0 {
		return errors.New(errors.CodeConfig).WithDetail("render.programCache must not be negative")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New(errors.CodeConfig).
			WithDetailf("metrics.path %q must start with /", c.Metrics.Path)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New(errors.CodeConfig).
			WithDetailf("log.format %q must be text or json", c.Log.Format)
	}
	if c.Modules.S3.Bucket == "" && (c.Modules.S3.Prefix != "" || c.Modules.S3.Endpoint != "") {
		return errors.New(errors.CodeConfig).
			WithDetail("modules.s3 is configured without a bucket")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New(errors.CodeConfig).
			WithDetailf("log.level %q must be debug, info, warn or error", s)
	}
	return level, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DistPath returns the absolute path to the compiled application.
func (c *Config) DistPath() string {
	if filepath.IsAbs(c.Dist) {
		return c.Dist
	}
	return filepath.Join(c.Dir(), c.Dist)
}

// UsesS3 reports whether the application is read from a bucket.
func (c *Config) UsesS3() bool {
	return c.Modules.S3.Bucket != ""
}

// S3 returns the bucket settings.
func (c *Config) S3() s3fs.Config {
	s := c.Modules.S3
	return s3fs.Config{
		Bucket:          s.Bucket,
		Prefix:          s.Prefix,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		PathStyle:       s.PathStyle,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
	}
}

// RenderTimeout returns the parsed render timeout. Call Validate first.
func (c *Config) RenderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Render.Timeout)
	return d
}

// ServerConfig returns the HTTP server settings.
func (c *Config) ServerConfig() *server.ServerConfig {
	sc := server.DefaultServerConfig().WithHostPort(c.Host, c.Port)
	if d, err := time.ParseDuration(c.ShutdownTimeout); err == nil {
		sc.ShutdownTimeout = d
	}
	// Leave room for a render that runs up to its timeout.
	if rt := c.RenderTimeout(); rt+10*time.Second > sc.WriteTimeout {
		sc.WriteTimeout = rt + 10*time.Second
	}
	if c.Metrics.Enabled {
		sc.MetricsPath = c.Metrics.Path
	}
	sc.TrustedProxies = append([]string(nil), c.TrustedProxies...)
	return sc
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
