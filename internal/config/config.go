// Package config loads and validates the daemon's configuration, per
// spec.md §6, and watches the config file for changes (WatchReload).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// buckets are the fixed file-type buckets spec.md §3/§6 name.
var buckets = []string{"app", "archive", "audio", "doc", "pic", "video"}

// Config is the daemon's full configuration, covering every recognised
// key from spec.md §6 plus the ambient keys this expansion adds
// (metrics_addr, scan_rate_limit).
type Config struct {
	IndexingPaths  []string          `yaml:"indexing_paths"`
	BlacklistPaths []string          `yaml:"blacklist_paths"`
	BucketSuffixes map[string]string `yaml:"-"` // populated from the <bucket>_file_suffix keys below

	AppFileSuffix     string `yaml:"app_file_suffix"`
	ArchiveFileSuffix string `yaml:"archive_file_suffix"`
	AudioFileSuffix   string `yaml:"audio_file_suffix"`
	DocFileSuffix     string `yaml:"doc_file_suffix"`
	PicFileSuffix     string `yaml:"pic_file_suffix"`
	VideoFileSuffix   string `yaml:"video_file_suffix"`

	CommitVolatileIndexTimeout   time.Duration `yaml:"commit_volatile_index_timeout"`
	CommitPersistentIndexTimeout time.Duration `yaml:"commit_persistent_index_timeout"`

	LogLevel string `yaml:"log_level"`

	// Ambient keys added by this expansion (SPEC_FULL.md §6).
	MetricsAddr   string  `yaml:"metrics_addr"`
	ScanRateLimit float64 `yaml:"scan_rate_limit"`

	PersistentDir string `yaml:"persistent_dir"`
	VolatileDir   string `yaml:"volatile_dir"`
	Workers       int    `yaml:"workers"`
	BatchSize     int    `yaml:"batch_size"`
}

// Default returns the configuration defaults named throughout spec.md
// §6 (2s/600s commit windows, empty indexing paths, info log level).
func Default() *Config {
	cacheRoot, _ := os.UserCacheDir()
	if cacheRoot == "" {
		cacheRoot = os.TempDir()
	}
	runtimeRoot := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeRoot == "" {
		runtimeRoot = os.TempDir()
	}
	return &Config{
		CommitVolatileIndexTimeout:   2 * time.Second,
		CommitPersistentIndexTimeout: 600 * time.Second,
		LogLevel:                     "info",
		BatchSize:                    100,
		PersistentDir:                filepath.Join(cacheRoot, "anyfind", "index"),
		VolatileDir:                  filepath.Join(runtimeRoot, "anyfind", "index"),
		BucketSuffixes:               map[string]string{},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/anyfind/anyfind.yaml, per
// SPEC_FULL.md §6.
func DefaultPath() string {
	home := os.Getenv("XDG_CONFIG_HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(h, ".config")
		}
	}
	return filepath.Join(home, "anyfind", "anyfind.yaml")
}

// Load reads and validates the YAML config at path, falling back to
// defaults for any file that doesn't exist yet.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("anyfind: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("anyfind: parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps the commit timeouts to the ranges spec.md §6
// requires, collects the raw <bucket>_file_suffix strings into
// BucketSuffixes keyed by bucket name (searchindex.ParseBucketSuffixes
// turns them into the extension->bucket map), and ensures every
// indexing path ends in a slash.
func (c *Config) normalize() {
	if c.CommitVolatileIndexTimeout < time.Second {
		c.CommitVolatileIndexTimeout = time.Second
	}
	if c.CommitVolatileIndexTimeout > 60*time.Second {
		c.CommitVolatileIndexTimeout = 60 * time.Second
	}
	if c.CommitPersistentIndexTimeout < 60*time.Second {
		c.CommitPersistentIndexTimeout = 60 * time.Second
	}
	if c.CommitPersistentIndexTimeout > 3600*time.Second {
		c.CommitPersistentIndexTimeout = 3600 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}

	raw := map[string]string{
		"app":     c.AppFileSuffix,
		"archive": c.ArchiveFileSuffix,
		"audio":   c.AudioFileSuffix,
		"doc":     c.DocFileSuffix,
		"pic":     c.PicFileSuffix,
		"video":   c.VideoFileSuffix,
	}
	c.BucketSuffixes = raw

	for i, p := range c.IndexingPaths {
		if !strings.HasSuffix(p, "/") {
			c.IndexingPaths[i] = p + "/"
		}
	}
}

// Buckets returns the fixed bucket names spec.md §6 recognises, for
// callers iterating BucketSuffixes in a stable order.
func Buckets() []string {
	out := make([]string, len(buckets))
	copy(out, buckets)
	return out
}

// RegisterFlags binds the CLI overrides cmd/anyfindd exposes on top of
// the YAML file, matching the teacher's pflag-driven flag registration
// convention.
func RegisterFlags(fs *pflag.FlagSet, configPath *string, metricsAddr *string, logLevel *string) {
	fs.StringVar(configPath, "config", DefaultPath(), "path to anyfind.yaml")
	fs.StringVar(metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	fs.StringVar(logLevel, "log-level", "", "override log_level from the config file")
}

// ApplyOverrides merges non-empty CLI overrides onto a loaded Config.
func (c *Config) ApplyOverrides(metricsAddr, logLevel string) {
	if metricsAddr != "" {
		c.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}
