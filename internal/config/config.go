package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gophersatwork/litecache"
)

// CacheConfig holds the cache settings
type CacheConfig struct {
	Dir        string `yaml:"dir"`
	Pool       string `yaml:"pool"`
	DefaultTTL string `yaml:"default_ttl"`
	Subdivide  bool   `yaml:"subdivide"`
	StrictKeys bool   `yaml:"strict_keys"`
	FileMode   string `yaml:"file_mode"`
}

// LimitsConfig holds the complexity limits
type LimitsConfig struct {
	MaxEntries int `yaml:"max_entries"`
	MaxDepth   int `yaml:"max_depth"`
}

// StorageConfig holds blob settings
type StorageConfig struct {
	Serializer string `yaml:"serializer"`
	MemoSize   int64  `yaml:"memo_size"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the litecache CLI configuration
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Limits  LimitsConfig  `yaml:"limits"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultConfig returns a Config with the library defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:        ".litecache",
			Pool:       litecache.DefaultPool,
			DefaultTTL: "never",
			FileMode:   "0644",
		},
		Limits: LimitsConfig{
			MaxEntries: litecache.DefaultMaxEntries,
			MaxDepth:   litecache.DefaultMaxDepth,
		},
		Storage: StorageConfig{
			Serializer: "gob",
			MemoSize:   litecache.DefaultMemoSize,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies LITECACHE_* environment overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LITECACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("LITECACHE_POOL"); v != "" {
		cfg.Cache.Pool = v
	}
	if v := os.Getenv("LITECACHE_DEFAULT_TTL"); v != "" {
		cfg.Cache.DefaultTTL = v
	}
	if v, ok := envBool("LITECACHE_SUBDIVIDE"); ok {
		cfg.Cache.Subdivide = v
	}
	if v, ok := envBool("LITECACHE_STRICT_KEYS"); ok {
		cfg.Cache.StrictKeys = v
	}
	if v := os.Getenv("LITECACHE_SERIALIZER"); v != "" {
		cfg.Storage.Serializer = v
	}
	if v := os.Getenv("LITECACHE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Options translates the config into cache options. logger may be nil.
func (cfg *Config) Options(logger *slog.Logger) ([]litecache.Option, error) {
	ttl, err := litecache.ParseTTL(cfg.Cache.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("default_ttl: %w", err)
	}

	var serializer litecache.Serializer
	switch strings.ToLower(cfg.Storage.Serializer) {
	case "", "gob":
		serializer = litecache.GobSerializer{}
	case "msgpack":
		serializer = litecache.MsgpackSerializer{}
	default:
		return nil, fmt.Errorf("unknown serializer %q (valid: gob, msgpack)", cfg.Storage.Serializer)
	}

	opts := []litecache.Option{
		litecache.WithPool(cfg.Cache.Pool),
		litecache.WithSubdivide(cfg.Cache.Subdivide),
		litecache.WithComplexityLimits(cfg.Limits.MaxEntries, cfg.Limits.MaxDepth),
		litecache.WithSerializer(serializer),
		litecache.WithMemoSize(cfg.Storage.MemoSize),
	}
	if ttl != litecache.DefaultTTL {
		opts = append(opts, litecache.WithDefaultTTL(ttl))
	}
	if cfg.Cache.FileMode != "" {
		mode, err := strconv.ParseUint(cfg.Cache.FileMode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("file_mode %q: %w", cfg.Cache.FileMode, err)
		}
		opts = append(opts, litecache.WithFileMode(os.FileMode(mode)))
	}
	if cfg.Cache.StrictKeys {
		opts = append(opts, litecache.WithStrictKeys())
	}
	if logger != nil {
		opts = append(opts, litecache.WithLogger(logger))
	}
	return opts, nil
}

// ParseLevel maps a level name to a slog level.
// Valid values: "debug", "info", "notice", "warn", "error"
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "notice":
		return litecache.LevelNotice, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}
