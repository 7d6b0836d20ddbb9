package server

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/signadot/scenesync/transform"
)

// Spec holds the runtime specification for the server.
// Config contains the serializable settings loaded from a file.
type Spec struct {
	Config *Config
	Log    *slog.Logger
	// Render produces the response artifact of an accepted scene,
	// render.PNG when nil.
	Render RenderFunc
	// Registry resolves transform chains in received scenes. When nil, a
	// registry restricted to Config.LoadRoots is used.
	Registry *transform.Registry
	// Metrics receives the server's collectors, a private registry when nil.
	Metrics *prometheus.Registry
	// Now is the clock used for client expiry, time.Now when nil.
	Now func() time.Time
}

// Config represents the sync server configuration file structure.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr" env:"GSP_ADDR"`

	// MaxClients bounds the number of cached client scenes. The least
	// recently used entry is evicted beyond it. Zero or negative means
	// unbounded.
	MaxClients int `yaml:"maxClients" env:"GSP_MAX_CLIENTS"`

	// ClientTTL evicts entries idle for longer. Zero or negative means
	// entries never expire.
	ClientTTL time.Duration `yaml:"clientTTL" env:"GSP_CLIENT_TTL"`

	// SweepInterval is the period of the expiry sweep, ClientTTL/4 when
	// zero.
	SweepInterval time.Duration `yaml:"sweepInterval" env:"GSP_SWEEP_INTERVAL"`

	// MaxBodyBytes bounds request bodies. Zero or negative means unbounded.
	MaxBodyBytes int64 `yaml:"maxBodyBytes" env:"GSP_MAX_BODY_BYTES"`

	// Metrics enables the Prometheus endpoint.
	Metrics bool `yaml:"metrics" env:"GSP_METRICS"`

	// LoadRoots lists the directories and http(s) URL prefixes TransformLoad
	// links in received scenes may read from. Empty refuses every Load.
	LoadRoots []string `yaml:"loadRoots" env:"GSP_LOAD_ROOTS" envSeparator:","`

	// LoadCacheEntries bounds the number of Load sources kept in memory
	// across frames. Zero or negative disables the cache.
	LoadCacheEntries int `yaml:"loadCacheEntries" env:"GSP_LOAD_CACHE_ENTRIES"`
}

// LoadConfig loads a configuration file in YAML format over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides the fields of c whose GSP_* variable is set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		MaxClients:   1024,
		ClientTTL:    30 * time.Minute,
		MaxBodyBytes:     64 << 20,
		Metrics:          true,
		LoadCacheEntries: 64,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweepInterval must not be negative")
	}
	if _, err := transform.NewRootFetcher(c.LoadRoots, nil); err != nil {
		return fmt.Errorf("loadRoots: %w", err)
	}
	return nil
}

// registry returns a transform registry whose Load links only read below
// LoadRoots. Invalid roots refuse every Load; Validate reports them.
func (c *Config) registry() *transform.Registry {
	roots, err := transform.NewRootFetcher(c.LoadRoots, nil)
	if err != nil {
		roots, _ = transform.NewRootFetcher(nil, nil)
	}
	return transform.NewRegistry(transform.WithFetcher(transform.NewCachedFetcher(roots, c.LoadCacheEntries)))
}

func (c *Config) sweepInterval() time.Duration {
	if c.SweepInterval > 0 {
		return c.SweepInterval
	}
	if c.ClientTTL <= 0 {
		return 0
	}
	return max(c.ClientTTL/4, time.Second)
}
