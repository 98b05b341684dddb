// Package config loads runtime configuration from TOOLVAULT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config drives the toolvault process.
type Config struct {
	// DataDir holds tools.db and artifacts.db. Empty means ~/.toolvault.
	DataDir string `env:"TOOLVAULT_DATA_DIR"`

	// LocalOnlyMode disables every remote operation at runtime.
	LocalOnlyMode bool `env:"TOOLVAULT_LOCAL_ONLY" envDefault:"false"`
	// RemoteEnabled decides whether a remote store is wired at all.
	RemoteEnabled bool   `env:"TOOLVAULT_REMOTE_ENABLED" envDefault:"false"`
	RemoteURL     string `env:"TOOLVAULT_REMOTE_URL" envDefault:"http://127.0.0.1:8787"`
	// PlannerLLM names the planner backend. The vault only carries it.
	PlannerLLM string `env:"TOOLVAULT_PLANNER_LLM"`

	CacheMaxBytes int64 `env:"TOOLVAULT_CACHE_MAX_BYTES" envDefault:"104857600"`
	CacheTTLDays  int   `env:"TOOLVAULT_CACHE_TTL_DAYS" envDefault:"7"`
	RecentLimit   int   `env:"TOOLVAULT_RECENT_LIMIT" envDefault:"20"`

	AutoSyncInterval time.Duration `env:"TOOLVAULT_AUTO_SYNC_INTERVAL" envDefault:"5m"`
	StaleAfter       time.Duration `env:"TOOLVAULT_SYNC_STALE_AFTER" envDefault:"1h"`
	RetryBase        time.Duration `env:"TOOLVAULT_RETRY_BASE" envDefault:"30s"`
	RetryMax         time.Duration `env:"TOOLVAULT_RETRY_MAX" envDefault:"5m"`

	LogLevel string `env:"TOOLVAULT_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"TOOLVAULT_LOG_JSON" envDefault:"false"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `env:"TOOLVAULT_METRICS_ADDR"`
}

// CloudConfig drives the toolvault-cloud reference backend.
type CloudConfig struct {
	Addr     string        `env:"TOOLVAULT_CLOUD_ADDR" envDefault:":8787"`
	Secret   string        `env:"TOOLVAULT_CLOUD_SECRET,required"`
	TokenTTL time.Duration `env:"TOOLVAULT_CLOUD_TOKEN_TTL" envDefault:"24h"`
	LogLevel string        `env:"TOOLVAULT_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool          `env:"TOOLVAULT_LOG_JSON" envDefault:"true"`
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom reads Config from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".toolvault")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.CacheMaxBytes <= 0 {
		errs = append(errs, errors.New("TOOLVAULT_CACHE_MAX_BYTES must be positive"))
	}
	if c.CacheTTLDays <= 0 {
		errs = append(errs, errors.New("TOOLVAULT_CACHE_TTL_DAYS must be positive"))
	}
	if c.RetryMax < c.RetryBase {
		errs = append(errs, errors.New("TOOLVAULT_RETRY_MAX must not be below TOOLVAULT_RETRY_BASE"))
	}
	if c.RemoteEnabled {
		u, err := url.Parse(c.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("TOOLVAULT_REMOTE_URL %q is not an http(s) URL", c.RemoteURL))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// CacheTTL is CacheTTLDays as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// TokenFile is where the remote session token is kept.
func (c Config) TokenFile() string {
	return filepath.Join(c.DataDir, "session.token")
}

// LoadCloud reads CloudConfig from the process environment.
func LoadCloud() (CloudConfig, error) {
	return LoadCloudFrom(nil)
}

// LoadCloudFrom reads CloudConfig from vars, or the process environment
// when vars is nil.
func LoadCloudFrom(vars map[string]string) (CloudConfig, error) {
	var cfg CloudConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return CloudConfig{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
