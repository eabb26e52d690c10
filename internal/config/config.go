package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validAuthModes = []string{"token", "app"}
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Crawl     CrawlConfig
	Engine    EngineConfig
	Store     StoreConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures GitHub API interactions.
type GitHubConfig struct {
	APIBaseURL        string
	WebBaseURL        string
	AuthMode          string
	Token             string
	AppID             int64
	InstallationID    int64
	PrivateKeyPath    string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	OAuth             OAuthConfig
}

// OAuthConfig configures the GitHub OAuth web login exchange.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	FrontendURL  string `yaml:"frontend_url"`
}

// RateLimitConfig configures crawl pacing from rate-limit headers.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// CrawlConfig configures the paginated issue crawler.
type CrawlConfig struct {
	PerPage      int
	FullScanPage int
	MaxPages     int
}

// EngineConfig configures the assignee activity classification engine.
type EngineConfig struct {
	RecentWindow     time.Duration
	TotalWindow      time.Duration
	GracePeriod      time.Duration
	IssueConcurrency int
}

// StoreConfig configures the report cache.
type StoreConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if !slices.Contains(validAuthModes, c.GitHub.AuthMode) {
		errs = append(errs, "github.auth_mode must be token or app")
	}
	switch c.GitHub.AuthMode {
	case "token":
		if strings.TrimSpace(c.GitHub.Token) == "" {
			errs = append(errs, "github.token is required when github.auth_mode=token")
		}
	case "app":
		if c.GitHub.AppID <= 0 {
			errs = append(errs, "github.app_id must be > 0 when github.auth_mode=app")
		}
		if c.GitHub.InstallationID <= 0 {
			errs = append(errs, "github.installation_id must be > 0 when github.auth_mode=app")
		}
		if c.GitHub.PrivateKeyPath == "" {
			errs = append(errs, "github.private_key_path is required when github.auth_mode=app")
		}
	}
	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		errs = append(errs, "github.requests_per_second must be >= 0")
	}

	if c.Crawl.PerPage <= 0 || c.Crawl.PerPage > 100 {
		errs = append(errs, "crawl.per_page must be in 1..100")
	}
	if c.Crawl.FullScanPage <= 0 || c.Crawl.FullScanPage > 100 {
		errs = append(errs, "crawl.full_scan_page_size must be in 1..100")
	}
	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, "crawl.max_pages must be > 0")
	}

	if c.Engine.RecentWindow <= 0 {
		errs = append(errs, "engine.recent_window must be > 0")
	}
	if c.Engine.TotalWindow <= 0 {
		errs = append(errs, "engine.total_window must be > 0")
	}
	if c.Engine.RecentWindow > c.Engine.TotalWindow {
		errs = append(errs, "engine.recent_window must not exceed engine.total_window")
	}
	if c.Engine.IssueConcurrency <= 0 {
		errs = append(errs, "engine.issue_concurrency must be > 0")
	}

	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		errs = append(errs, "store.backend must be memory or redis")
	}
	if c.Store.Backend == "redis" && strings.TrimSpace(c.Store.RedisAddr) == "" {
		errs = append(errs, "store.redis_addr is required when store.backend=redis")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides lets credentials and deployment settings come from the
// environment (typically a .env file) instead of the YAML file.
func applyEnvOverrides(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Server.ListenAddr = ":" + port
	}
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		cfg.GitHub.Token = token
	}
	if clientID := strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID")); clientID != "" {
		cfg.GitHub.OAuth.ClientID = clientID
	}
	if clientSecret := strings.TrimSpace(os.Getenv("GITHUB_CLIENT_SECRET")); clientSecret != "" {
		cfg.GitHub.OAuth.ClientSecret = clientSecret
	}
	if frontendURL := strings.TrimSpace(os.Getenv("FRONTEND_URL")); frontendURL != "" {
		cfg.GitHub.OAuth.FrontendURL = frontendURL
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":3000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.AuthMode == "" {
		cfg.GitHub.AuthMode = "token"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 5 * time.Second
	}
	if cfg.Crawl.PerPage <= 0 {
		cfg.Crawl.PerPage = 30
	}
	if cfg.Crawl.FullScanPage <= 0 {
		cfg.Crawl.FullScanPage = 100
	}
	if cfg.Crawl.MaxPages <= 0 {
		cfg.Crawl.MaxPages = 50
	}
	if cfg.Engine.RecentWindow <= 0 {
		cfg.Engine.RecentWindow = 7 * 24 * time.Hour
	}
	if cfg.Engine.TotalWindow <= 0 {
		cfg.Engine.TotalWindow = 30 * 24 * time.Hour
	}
	if cfg.Engine.GracePeriod <= 0 {
		cfg.Engine.GracePeriod = 3 * 24 * time.Hour
	}
	if cfg.Engine.IssueConcurrency <= 0 {
		cfg.Engine.IssueConcurrency = 8
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = time.Minute
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Crawl     rawCrawl     `yaml:"crawl"`
	Engine    rawEngine    `yaml:"engine"`
	Store     rawStore     `yaml:"store"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL        string      `yaml:"api_base_url"`
	WebBaseURL        string      `yaml:"web_base_url"`
	AuthMode          string      `yaml:"auth_mode"`
	Token             string      `yaml:"token"`
	AppID             int64       `yaml:"app_id"`
	InstallationID    int64       `yaml:"installation_id"`
	PrivateKeyPath    string      `yaml:"private_key_path"`
	RequestTimeout    duration    `yaml:"request_timeout"`
	RequestsPerSecond float64     `yaml:"requests_per_second"`
	OAuth             OAuthConfig `yaml:"oauth"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawCrawl struct {
	PerPage      int `yaml:"per_page"`
	FullScanPage int `yaml:"full_scan_page_size"`
	MaxPages     int `yaml:"max_pages"`
}

type rawEngine struct {
	RecentWindow     duration `yaml:"recent_window"`
	TotalWindow      duration `yaml:"total_window"`
	GracePeriod      duration `yaml:"grace_period"`
	IssueConcurrency int      `yaml:"issue_concurrency"`
}

type rawStore struct {
	Backend       string   `yaml:"backend"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	TTL           duration `yaml:"ttl"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:        r.GitHub.APIBaseURL,
			WebBaseURL:        r.GitHub.WebBaseURL,
			AuthMode:          r.GitHub.AuthMode,
			Token:             r.GitHub.Token,
			AppID:             r.GitHub.AppID,
			InstallationID:    r.GitHub.InstallationID,
			PrivateKeyPath:    r.GitHub.PrivateKeyPath,
			RequestTimeout:    r.GitHub.RequestTimeout.Duration,
			RequestsPerSecond: r.GitHub.RequestsPerSecond,
			OAuth:             r.GitHub.OAuth,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Crawl: CrawlConfig{
			PerPage:      r.Crawl.PerPage,
			FullScanPage: r.Crawl.FullScanPage,
			MaxPages:     r.Crawl.MaxPages,
		},
		Engine: EngineConfig{
			RecentWindow:     r.Engine.RecentWindow.Duration,
			TotalWindow:      r.Engine.TotalWindow.Duration,
			GracePeriod:      r.Engine.GracePeriod.Duration,
			IssueConcurrency: r.Engine.IssueConcurrency,
		},
		Store: StoreConfig{
			Backend:       r.Store.Backend,
			RedisAddr:     r.Store.RedisAddr,
			RedisPassword: r.Store.RedisPassword,
			RedisDB:       r.Store.RedisDB,
			TTL:           r.Store.TTL.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
