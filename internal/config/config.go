// Package config loads the bridge's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
)

// Config is the top-level bridge configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bot      BotConfig      `yaml:"bot"`
	Delivery DeliveryConfig `yaml:"delivery"`
	State    StateConfig    `yaml:"state"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Feed     FeedConfig     `yaml:"feed"`
	Stats    StatsConfig    `yaml:"stats"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds webhook ingress listener settings.
type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
	// AutoStart brings the ingress up at process start. When false the
	// listener stays down until a "/webhook on" command.
	AutoStart bool `yaml:"auto_start"`
}

// BotConfig holds the OneBot event-callback listener settings.
type BotConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Admins restricts commands to these user IDs. Empty allows everyone.
	Admins []int64 `yaml:"admins"`
}

// DeliveryConfig selects and configures the outbound message channel.
type DeliveryConfig struct {
	Type        string        `yaml:"type"` // onebot or log
	APIURL      string        `yaml:"api_url"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

// StateConfig holds durable state settings.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// DedupeConfig holds delivery-ID replay detection settings.
type DedupeConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis, or off
	Capacity      int           `yaml:"capacity"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
}

// WebhookConfig seeds the subscription table and tunes summary rendering.
// Groups and Events only apply when nothing has been persisted yet.
type WebhookConfig struct {
	Groups          []string `yaml:"groups"`
	Events          []string `yaml:"events"`
	MaxCommits      int      `yaml:"max_commits"`
	TruncateComment int      `yaml:"truncate_comment"`
	FilterBots      bool     `yaml:"filter_bots"`
}

// FeedConfig holds the arXiv poller settings. Keywords, Groups, and
// Interval seed the persisted feed settings on first run.
type FeedConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	Query      string        `yaml:"query"`
	Interval   time.Duration `yaml:"interval"`
	MaxResults int           `yaml:"max_results"`
	Keywords   []string      `yaml:"keywords"`
	Groups     []string      `yaml:"groups"`
}

// StatsConfig holds counter persistence settings.
type StatsConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// defaults applies sane defaults to zero-valued fields. Boolean defaults
// that are true (server.auto_start) are seeded before unmarshaling in Load.
func (c *Config) defaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 997
	}
	if c.Bot.Host == "" {
		c.Bot.Host = "0.0.0.0"
	}
	if c.Bot.Port == 0 {
		c.Bot.Port = 5701
	}
	if c.Delivery.Type == "" {
		c.Delivery.Type = "log"
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = 10 * time.Second
	}
	if c.Delivery.QueueSize == 0 {
		c.Delivery.QueueSize = 16
	}
	if c.State.Dir == "" {
		c.State.Dir = "data"
	}
	if c.Dedupe.Backend == "" {
		c.Dedupe.Backend = "memory"
	}
	if c.Dedupe.Capacity == 0 {
		c.Dedupe.Capacity = 1000
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 24 * time.Hour
	}
	if c.Webhook.Events == nil {
		c.Webhook.Events = defaultEvents()
	}
	if c.Webhook.MaxCommits == 0 {
		c.Webhook.MaxCommits = 5
	}
	if c.Webhook.TruncateComment == 0 {
		c.Webhook.TruncateComment = 100
	}
	if c.Feed.Query == "" {
		c.Feed.Query = "cat:cs.AI"
	}
	if c.Feed.Interval == 0 {
		c.Feed.Interval = 30 * time.Minute
	}
	if c.Feed.MaxResults == 0 {
		c.Feed.MaxResults = 50
	}
	if c.Stats.FlushInterval == 0 {
		c.Stats.FlushInterval = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// defaultEvents enables every kind with a dedicated summary template.
// "unknown" stays opt-in.
func defaultEvents() []string {
	kinds := event.Kinds()
	tags := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if k == event.KindUnknown {
			continue
		}
		tags = append(tags, string(k))
	}
	return tags
}

// validate checks required fields and value constraints.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Bot.Port < 1 || c.Bot.Port > 65535 {
		return fmt.Errorf("bot.port must be between 1 and 65535, got %d", c.Bot.Port)
	}
	switch c.Delivery.Type {
	case "log":
	case "onebot":
		if c.Delivery.APIURL == "" {
			return fmt.Errorf("delivery.api_url is required when delivery.type is onebot")
		}
	default:
		return fmt.Errorf("delivery.type must be onebot or log, got %q", c.Delivery.Type)
	}
	if c.Delivery.Timeout < 0 {
		return fmt.Errorf("delivery.timeout must be non-negative")
	}
	if c.Delivery.QueueSize < 0 {
		return fmt.Errorf("delivery.queue_size must be non-negative")
	}
	switch c.Dedupe.Backend {
	case "off":
	case "memory":
		if c.Dedupe.Capacity < 1 {
			return fmt.Errorf("dedupe.capacity must be positive, got %d", c.Dedupe.Capacity)
		}
	case "redis":
		if c.Dedupe.RedisAddr == "" {
			return fmt.Errorf("dedupe.redis_addr is required when dedupe.backend is redis")
		}
		if c.Dedupe.TTL <= 0 {
			return fmt.Errorf("dedupe.ttl must be positive")
		}
	default:
		return fmt.Errorf("dedupe.backend must be memory, redis, or off, got %q", c.Dedupe.Backend)
	}
	for _, tag := range c.Webhook.Events {
		if _, ok := event.ParseKind(tag); !ok {
			return fmt.Errorf("webhook.events contains unknown kind %q", tag)
		}
	}
	if c.Webhook.MaxCommits < 1 {
		return fmt.Errorf("webhook.max_commits must be positive, got %d", c.Webhook.MaxCommits)
	}
	if c.Webhook.TruncateComment < 1 {
		return fmt.Errorf("webhook.truncate_comment must be positive, got %d", c.Webhook.TruncateComment)
	}
	if c.Feed.Enabled {
		if c.Feed.Interval <= 0 {
			return fmt.Errorf("feed.interval must be positive")
		}
		if c.Feed.MaxResults < 1 {
			return fmt.Errorf("feed.max_results must be positive, got %d", c.Feed.MaxResults)
		}
	}
	if c.Stats.FlushInterval <= 0 {
		return fmt.Errorf("stats.flush_interval must be positive")
	}
	return nil
}

// expandEnv replaces ${VAR} references in secret-bearing fields with
// environment variable values. This allows keeping secrets out of YAML.
func (c *Config) expandEnv() {
	c.Server.Secret = os.ExpandEnv(c.Server.Secret)
	c.Delivery.AccessToken = os.ExpandEnv(c.Delivery.AccessToken)
	c.Dedupe.RedisPassword = os.ExpandEnv(c.Dedupe.RedisPassword)
}

// Load reads a YAML config file, applies defaults, expands env vars, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// auto_start defaults to true and must be seeded before unmarshaling;
	// yaml leaves absent fields untouched.
	cfg := Config{Server: ServerConfig{AutoStart: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.defaults()
	cfg.expandEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
