// Package config loads the curator service's YAML configuration, applies
// environment-variable overrides, validates it, and (optionally) watches the
// file for hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// BriefConfig controls the phase-3 page brief extractor (spec §6.3).
type BriefConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	MaxContentBytes int           `yaml:"max_content_bytes"`
	MinContentBytes int           `yaml:"min_content_bytes"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	Model           string        `yaml:"model"`
}

// DocumentConfig controls the phase-4 document compiler.
type DocumentConfig struct {
	BudgetChars int `yaml:"budget_chars"`
}

// SafetyConfig controls the phase 5.7 safety reviewer.
type SafetyConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	Model         string `yaml:"model"`
}

// RefinementConfig controls the refinement workflow (spec §4.9).
// MaxRevisions is loaded and validated but not read by the refiner, which
// applies the fixed cap of domain.SyncProposal.CanRevise (3 revisions).
type RefinementConfig struct {
	MaxRevisions int    `yaml:"max_revisions"`
	Model        string `yaml:"model"`
}

// SchedulerConfig controls the periodic staleness sweep.
type SchedulerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
}

// WriterConfig controls the phase-5.5 copy rewrite.
type WriterConfig struct {
	PrimaryModel  string `yaml:"primary_model"`
	FallbackModel string `yaml:"fallback_model"`
	Concurrency   int    `yaml:"concurrency"`
}

// ReasonerConfig controls the phase-5 curator reasoner.
type ReasonerConfig struct {
	Model string `yaml:"model"`
}

// ServerConfig controls the HTTP surface (spec §6.2).
type ServerConfig struct {
	Port           string   `yaml:"port"`
	MetricsPort    string   `yaml:"metrics_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RedisConfig controls the brief extraction cache's Redis connection.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// AlertingConfig controls the Slack operator-alerting channel (spec §7).
type AlertingConfig struct {
	SlackToken   string `yaml:"-"`
	SlackChannel string `yaml:"slack_channel"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig describes one named LLM provider endpoint.
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxContextSize int           `yaml:"max_context_size"`
	APIKey         string        `yaml:"-"`
}

// Config is the curator service's full configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Brief      BriefConfig      `yaml:"brief"`
	Document   DocumentConfig   `yaml:"document"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Writer     WriterConfig     `yaml:"writer"`
	Safety     SafetyConfig     `yaml:"safety"`
	Refinement RefinementConfig `yaml:"refinement"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
	Redis      RedisConfig      `yaml:"redis"`
	Alerting   AlertingConfig   `yaml:"alerting"`
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", MetricsPort: "9090", AllowedOrigins: []string{"*"}},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Alerting: AlertingConfig{SlackChannel: "#curator-ops"},
		Brief:    BriefConfig{Concurrency: 10, MaxContentBytes: 50_000, MinContentBytes: 100, CacheTTL: 30 * 24 * time.Hour, Model: "claude-haiku-4-5"},
		Document: DocumentConfig{BudgetChars: 200_000},
		Reasoner: ReasonerConfig{Model: "claude-sonnet-4-5"},
		Writer:   WriterConfig{PrimaryModel: "claude-opus-4-1", FallbackModel: "claude-haiku-4-5", Concurrency: 10},
		Safety:   SafetyConfig{MaxIterations: 3, Model: "claude-sonnet-4-5"},
		Refinement: RefinementConfig{MaxRevisions: 3, Model: "claude-sonnet-4-5"},
		Scheduler:  SchedulerConfig{Interval: 15 * time.Minute, StalenessThreshold: 24 * time.Hour},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads, parses, applies env overrides to, and validates the config
// file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("CURATOR_SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CURATOR_METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("CURATOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CURATOR_BRIEF_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CURATOR_BRIEF_CONCURRENCY: %w", err)
		}
		cfg.Brief.Concurrency = n
	}
	if v := os.Getenv("CURATOR_REASONER_MODEL"); v != "" {
		cfg.Reasoner.Model = v
	}
	if v := os.Getenv("CURATOR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CURATOR_SLACK_TOKEN"); v != "" {
		cfg.Alerting.SlackToken = v
	}
	if v := os.Getenv("CURATOR_SLACK_CHANNEL"); v != "" {
		cfg.Alerting.SlackChannel = v
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if cfg.Brief.Concurrency <= 0 {
		return fmt.Errorf("brief concurrency must be greater than 0")
	}
	if cfg.Brief.MinContentBytes < 0 {
		return fmt.Errorf("brief min_content_bytes must be non-negative")
	}
	if cfg.Document.BudgetChars <= 0 {
		return fmt.Errorf("document budget_chars must be greater than 0")
	}
	if cfg.Safety.MaxIterations <= 0 {
		return fmt.Errorf("safety max_iterations must be greater than 0")
	}
	if cfg.Refinement.MaxRevisions <= 0 {
		return fmt.Errorf("refinement max_revisions must be greater than 0")
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}
	return nil
}

// Watch reloads the config from path whenever the file changes, invoking
// onReload with the freshly loaded config. It runs until ctx-like stop is
// closed by the caller calling the returned closer.
func Watch(path string, onReload func(*Config, error)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					cfg, err := Load(path)
					onReload(cfg, err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}
