package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/debateradar/pkg/source"
	"github.com/elonfeng/debateradar/pkg/trend"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Ranking  trend.Config   `yaml:"ranking"`
	Decider  DeciderConfig  `yaml:"decider"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Filter   FilterConfig   `yaml:"filter"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or logfmt
}

// ScheduleConfig configures the daily pipeline run.
type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// SourcesConfig holds adapter configuration and the fan-in order.
type SourcesConfig struct {
	// Order is the sequence batches are folded in; the first source to
	// describe a topic supplies its title.
	Order        []string           `yaml:"order"`
	Timeout      string             `yaml:"timeout"`
	Reddit       RedditConfig       `yaml:"reddit"`
	GoogleTrends GoogleTrendsConfig `yaml:"google_trends"`
	YouTube      YouTubeConfig      `yaml:"youtube"`
}

// ParseTimeout returns the per-adapter timeout as time.Duration.
func (s SourcesConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// FanInOrder returns Order as source types, falling back to the default order.
func (s SourcesConfig) FanInOrder() ([]source.Type, error) {
	if len(s.Order) == 0 {
		return source.AllTypes(), nil
	}
	seen := make(map[source.Type]bool)
	order := make([]source.Type, 0, len(s.Order))
	for _, name := range s.Order {
		t, ok := source.ParseType(name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q in sources.order", name)
		}
		if seen[t] {
			return nil, fmt.Errorf("duplicate source %q in sources.order", name)
		}
		seen[t] = true
		order = append(order, t)
	}
	return order, nil
}

// RedditConfig for the discussion adapter.
type RedditConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Subreddits   []string `yaml:"subreddits"`
	Limit        int      `yaml:"limit"`
}

// GoogleTrendsConfig for the search-trends adapter.
type GoogleTrendsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Geo     string `yaml:"geo"`
	FeedURL string `yaml:"feed_url"`
}

// YouTubeConfig for the video adapter.
type YouTubeConfig struct {
	Enabled bool     `yaml:"enabled"`
	APIKey  string   `yaml:"api_key"`
	Queries []string `yaml:"queries"`
	Region  string   `yaml:"region"`
}

// DeciderConfig configures the external topic-selection model.
type DeciderConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"` // "openai" or "anthropic"
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`     // custom endpoint (optional)
	HistoryDays int    `yaml:"history_days"` // recent topics the model must not repeat
}

// AlertsConfig configures where the selected topic is announced.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures candidate filtering in the adapters.
type FilterConfig struct {
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./debateradar.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{
			Cron:     "0 6 * * *",
			Timezone: "UTC",
		},
		Sources: SourcesConfig{
			Order:   []string{"discussion", "trends", "video"},
			Timeout: "60s",
			Reddit: RedditConfig{
				Enabled: false,
				Subreddits: []string{
					"politics", "worldnews", "news",
					"changemyview", "unpopularopinion", "TrueReddit",
				},
				Limit: 50,
			},
			GoogleTrends: GoogleTrendsConfig{
				Enabled: true,
				Geo:     "US",
			},
			YouTube: YouTubeConfig{
				Enabled: false,
				Queries: []string{"news today", "debate", "controversy"},
				Region:  "US",
			},
		},
		Ranking: trend.DefaultConfig(),
		Decider: DeciderConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			HistoryDays: 30,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, applies env var overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the engine and scheduler cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Ranking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ranking: %w", err))
	}
	if _, err := c.Sources.FanInOrder(); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	if c.Decider.Enabled {
		switch c.Decider.Provider {
		case "openai", "anthropic":
		default:
			errs = append(errs, fmt.Errorf("decider.provider must be openai or anthropic, got %q", c.Decider.Provider))
		}
	}
	if c.Decider.HistoryDays < 0 {
		errs = append(errs, fmt.Errorf("decider.history_days must be >= 0, got %d", c.Decider.HistoryDays))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEBATERADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DEBATERADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Reddit.ClientSecret = v
	}
	if cfg.Sources.Reddit.ClientID != "" && cfg.Sources.Reddit.ClientSecret != "" {
		cfg.Sources.Reddit.Enabled = true
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
		cfg.Sources.YouTube.Enabled = true
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Decider.APIKey = v
		cfg.Decider.Enabled = true
		cfg.Decider.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Decider.APIKey = v
		cfg.Decider.Enabled = true
		cfg.Decider.Provider = "anthropic"
		if cfg.Decider.Model == "gpt-4o-mini" {
			cfg.Decider.Model = ""
		}
	}
}
