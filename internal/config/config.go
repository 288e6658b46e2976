package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig  `json:"basic_config"`
	Gemini      GeminiConfig `json:"gemini"`
}

type BasicConfig struct {
	ServerAddress        string `json:"server_address"`
	StagingDir           string `json:"staging_dir"`
	MaxUploadMB          int64  `json:"max_upload_mb"`
	PollIntervalSeconds  int    `json:"poll_interval_seconds"`
	IngestTimeoutMinutes int    `json:"ingest_timeout_minutes"`
	SessionTTLMinutes    int    `json:"session_ttl_minutes"`
	CleanIntervalMinutes int    `json:"clean_interval_minutes"`
	UploadIdentity       string `json:"upload_identity"`
	WorkerQueueSize      int    `json:"worker_queue_size"`
	WorkerIdleMinutes    int    `json:"worker_idle_minutes"`
}

type GeminiConfig struct {
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// Upload identity strategies. Name equality reproduces the reference
// behavior, including its known gap: same-named files with different
// bytes do not trigger re-ingestion.
const (
	IdentityByName     = "name"
	IdentityBySHA256   = "sha256"
	IdentityBySizeTime = "size_mtime"
)

var defaultModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-2.0-flash-exp",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-preview-09-2025",
}

// Default returns the reference configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to
// config.json). A missing file at the default path falls back to Default.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()

	switch cfg.BasicConfig.UploadIdentity {
	case IdentityByName, IdentityBySHA256, IdentityBySizeTime:
	default:
		return nil, fmt.Errorf("unknown upload_identity %q", cfg.BasicConfig.UploadIdentity)
	}
	if !cfg.AllowedModel(cfg.Gemini.DefaultModel) {
		return nil, fmt.Errorf("default_model %q not in model list", cfg.Gemini.DefaultModel)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = ":8090"
	}
	if b.StagingDir == "" {
		b.StagingDir = "./data/staging"
	}
	if b.MaxUploadMB <= 0 {
		b.MaxUploadMB = 200
	}
	if b.PollIntervalSeconds <= 0 {
		b.PollIntervalSeconds = 2
	}
	if b.IngestTimeoutMinutes <= 0 {
		b.IngestTimeoutMinutes = 10
	}
	if b.SessionTTLMinutes <= 0 {
		b.SessionTTLMinutes = 12 * 60
	}
	if b.CleanIntervalMinutes <= 0 {
		b.CleanIntervalMinutes = 60
	}
	if b.UploadIdentity == "" {
		b.UploadIdentity = IdentityByName
	}
	if b.WorkerQueueSize <= 0 {
		b.WorkerQueueSize = 16
	}
	if b.WorkerIdleMinutes <= 0 {
		b.WorkerIdleMinutes = 30
	}
	if len(c.Gemini.Models) == 0 {
		c.Gemini.Models = append([]string(nil), defaultModels...)
	}
	if c.Gemini.DefaultModel == "" {
		c.Gemini.DefaultModel = c.Gemini.Models[0]
	}
}

// AllowedModel reports whether name is in the configured model set.
func (c *Config) AllowedModel(name string) bool {
	for _, m := range c.Gemini.Models {
		if m == name {
			return true
		}
	}
	return false
}

func (c *Config) MaxUploadBytes() int64 {
	return c.BasicConfig.MaxUploadMB << 20
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.BasicConfig.PollIntervalSeconds) * time.Second
}

func (c *Config) IngestTimeout() time.Duration {
	return time.Duration(c.BasicConfig.IngestTimeoutMinutes) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.BasicConfig.SessionTTLMinutes) * time.Minute
}

func (c *Config) CleanInterval() time.Duration {
	return time.Duration(c.BasicConfig.CleanIntervalMinutes) * time.Minute
}

func (c *Config) WorkerIdle() time.Duration {
	return time.Duration(c.BasicConfig.WorkerIdleMinutes) * time.Minute
}
