package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/justapithecus/petframes/fetch"
	"github.com/justapithecus/petframes/log"
	"github.com/justapithecus/petframes/playback"
	"github.com/justapithecus/petframes/types"
)

// DefaultFileName is the config file looked up when --config is not given.
const DefaultFileName = "petframes.yaml"

// Index backends.
const (
	IndexSQLite = "sqlite"
	IndexMemory = "memory"
)

// Remote backends.
const (
	RemoteS3     = "s3"
	RemoteMirror = "mirror"
)

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// DefaultConcurrency is the default cap on in-flight frame fetches.
// Zero runs every fetch task of a session at once.
const DefaultConcurrency = 0

// Config represents a petframes.yaml configuration file.
// CLI flags always override config values.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Remote   RemoteConfig   `yaml:"remote"`
	Download DownloadConfig `yaml:"download"`
	Playback PlaybackConfig `yaml:"playback"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	Log      LogConfig      `yaml:"log"`
	// Catalog adds or replaces character phases on top of the built-in table.
	Catalog types.Catalog `yaml:"catalog"`
}

// StorageConfig holds the local frame root and the metadata index location.
type StorageConfig struct {
	Root         string `yaml:"root"`
	IndexBackend string `yaml:"index_backend"`
	// IndexPath defaults to <root>/index.db.
	IndexPath string `yaml:"index_path"`
}

// RemoteConfig selects where frames are fetched from.
type RemoteConfig struct {
	Backend       string `yaml:"backend"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	S3PathStyle   bool   `yaml:"s3_path_style"`
	MirrorPath    string `yaml:"mirror_path"`
	MaxFrameBytes int64  `yaml:"max_frame_bytes"`
}

// DownloadConfig holds download session settings.
type DownloadConfig struct {
	Concurrency int `yaml:"concurrency"`
	// Lock enables the cross-process lock file. Nil means enabled.
	Lock *bool `yaml:"lock,omitempty"`
}

// PlaybackConfig holds playback settings.
type PlaybackConfig struct {
	FPS int `yaml:"fps"`
}

// AdapterConfig holds phase-ready notification settings.
type AdapterConfig struct {
	Type         string            `yaml:"type"`
	URL          string            `yaml:"url"`
	Channel      string            `yaml:"channel,omitempty"`
	PerCharacter bool              `yaml:"per_character,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Timeout      Duration          `yaml:"timeout,omitempty"`
	Retries      *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:         ".petframes",
			IndexBackend: IndexSQLite,
		},
		Remote: RemoteConfig{
			Backend:       RemoteS3,
			MaxFrameBytes: fetch.DefaultMaxBytes,
		},
		Download: DownloadConfig{
			Concurrency: DefaultConcurrency,
		},
		Playback: PlaybackConfig{
			FPS: playback.DefaultFPS,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// IndexFile returns the SQLite index path.
func (c *Config) IndexFile() string {
	if c.Storage.IndexPath != "" {
		return c.Storage.IndexPath
	}
	return filepath.Join(c.Storage.Root, "index.db")
}

// LockEnabled reports whether download sessions take the lock file.
func (c *Config) LockEnabled() bool {
	return c.Download.Lock == nil || *c.Download.Lock
}

// EffectiveCatalog returns the built-in catalog overlaid with the config catalog.
func (c *Config) EffectiveCatalog() types.Catalog {
	return types.DefaultCatalog().Merge(c.Catalog)
}

// Validate checks the whole configuration. It does not touch the network
// or disk.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateLocal(), c.validateRemote())
}

// ValidateLocal checks the settings used by commands that never fetch:
// storage, playback, logging and the catalog.
func (c *Config) ValidateLocal() error {
	var errs []error

	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage.root is required"))
	}
	switch c.Storage.IndexBackend {
	case IndexSQLite, IndexMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.index_backend must be %s or %s, got %q", IndexSQLite, IndexMemory, c.Storage.IndexBackend))
	}

	if c.Playback.FPS < 0 {
		errs = append(errs, fmt.Errorf("playback.fps must be >= 0, got %d", c.Playback.FPS))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	if err := c.EffectiveCatalog().Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) validateRemote() error {
	var errs []error

	switch c.Remote.Backend {
	case RemoteS3:
		if c.Remote.Bucket == "" {
			errs = append(errs, errors.New("remote.bucket is required for the s3 backend"))
		}
	case RemoteMirror:
		if c.Remote.MirrorPath == "" {
			errs = append(errs, errors.New("remote.mirror_path is required for the mirror backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.backend must be %s or %s, got %q", RemoteS3, RemoteMirror, c.Remote.Backend))
	}
	if c.Remote.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Errorf("remote.max_frame_bytes must be > 0, got %d", c.Remote.MaxFrameBytes))
	}

	if c.Download.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("download.concurrency must be >= 0, got %d", c.Download.Concurrency))
	}

	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for the %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be %s or %s, got %q", AdapterWebhook, AdapterRedis, c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}

	return errors.Join(errs...)
}

// Logger builds the root logger for a CLI component.
func (c *Config) Logger(component string) *log.Logger {
	return log.NewLogger(log.Context{Component: component}, c.Log.Level)
}
