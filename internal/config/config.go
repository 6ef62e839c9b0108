package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Feed      FeedConfig      `yaml:"feed"`
	Mutation  MutationConfig  `yaml:"mutation"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	ViewerID  string          `yaml:"viewer_id"`
	LogLevel  string          `yaml:"log_level"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RealtimeConfig selects the change feed. Driver is "websocket" or "postgres".
type RealtimeConfig struct {
	Driver      string        `yaml:"driver"`
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Collections []string      `yaml:"collections"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	Backoff     BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

// Distribution is the target share of each category, in percent.
type Distribution struct {
	Posts    float64 `yaml:"posts"`
	Products float64 `yaml:"products"`
	Jobs     float64 `yaml:"jobs"`
	Ads      float64 `yaml:"ads"`
	Events   float64 `yaml:"events"`
}

func (d Distribution) Sum() float64 {
	return d.Posts + d.Products + d.Jobs + d.Ads + d.Events
}

func (d Distribution) IsZero() bool {
	return d == Distribution{}
}

type EngagementWeights struct {
	Likes    float64 `yaml:"likes"`
	Comments float64 `yaml:"comments"`
	Shares   float64 `yaml:"shares"`
	Views    float64 `yaml:"views"`
}

type FeedConfig struct {
	Size           int                `yaml:"size"`
	CandidateLimit int                `yaml:"candidate_limit"`
	Distribution   Distribution       `yaml:"distribution"`
	BasePriority   map[string]float64 `yaml:"base_priority"`
	Weights        EngagementWeights  `yaml:"weights"`
	FollowBoost    float64            `yaml:"follow_boost"`
	EngagementCap  float64            `yaml:"engagement_cap"`
	RecencyBoost   float64            `yaml:"recency_boost"`
	RecencyWindow  time.Duration      `yaml:"recency_window"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type MutationConfig struct {
	PendingTimeoutMs       int           `yaml:"pending_mutation_timeout_ms"`
	MaxQueueDepthPerEntity int           `yaml:"max_queue_depth_per_entity"`
	MatchWindow            time.Duration `yaml:"match_window"`
	DedupWindow            time.Duration `yaml:"dedup_window"`
	Retry                  RetryConfig   `yaml:"retry"`
}

func (m MutationConfig) PendingTimeout() time.Duration {
	return time.Duration(m.PendingTimeoutMs) * time.Millisecond
}

type WalletConfig struct {
	RewardShareRate float64 `yaml:"reward_share_rate"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultBasePriority is the per-kind base score used when the config omits one.
var DefaultBasePriority = map[string]float64{
	"live_event":       10,
	"post":             8,
	"community_event":  7,
	"job":              6,
	"freelancer_skill": 6,
	"product":          5,
	"sponsored_post":   4,
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "feedsync"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "notices"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "user_notices"
	}
	if c.Realtime.Driver == "" {
		c.Realtime.Driver = "websocket"
	}
	if len(c.Realtime.Collections) == 0 {
		c.Realtime.Collections = []string{"posts", "likes", "comments", "shares", "wallet", "transactions"}
	}
	if c.Realtime.Heartbeat == 0 {
		c.Realtime.Heartbeat = 30 * time.Second
	}
	if c.Realtime.Backoff.Initial == 0 {
		c.Realtime.Backoff.Initial = 1 * time.Second
	}
	if c.Realtime.Backoff.Max == 0 {
		c.Realtime.Backoff.Max = 30 * time.Second
	}
	if c.Feed.Size == 0 {
		c.Feed.Size = 20
	}
	if c.Feed.CandidateLimit == 0 {
		c.Feed.CandidateLimit = 200
	}
	if c.Feed.Distribution.IsZero() {
		c.Feed.Distribution = Distribution{Posts: 60, Products: 15, Jobs: 10, Ads: 10, Events: 5}
	}
	if c.Feed.BasePriority == nil {
		c.Feed.BasePriority = make(map[string]float64, len(DefaultBasePriority))
	}
	for kind, p := range DefaultBasePriority {
		if _, ok := c.Feed.BasePriority[kind]; !ok {
			c.Feed.BasePriority[kind] = p
		}
	}
	if c.Feed.Weights == (EngagementWeights{}) {
		c.Feed.Weights = EngagementWeights{Likes: 1, Comments: 3, Shares: 5, Views: 0.1}
	}
	if c.Feed.FollowBoost == 0 {
		c.Feed.FollowBoost = 2
	}
	if c.Feed.EngagementCap == 0 {
		c.Feed.EngagementCap = 3
	}
	if c.Feed.RecencyBoost == 0 {
		c.Feed.RecencyBoost = 2
	}
	if c.Feed.RecencyWindow == 0 {
		c.Feed.RecencyWindow = 24 * time.Hour
	}
	if c.Mutation.PendingTimeoutMs == 0 {
		c.Mutation.PendingTimeoutMs = 12000
	}
	if c.Mutation.MaxQueueDepthPerEntity == 0 {
		c.Mutation.MaxQueueDepthPerEntity = 8
	}
	if c.Mutation.MatchWindow == 0 {
		c.Mutation.MatchWindow = 15 * time.Second
	}
	if c.Mutation.DedupWindow == 0 {
		c.Mutation.DedupWindow = 10 * time.Minute
	}
	if c.Mutation.Retry.MaxAttempts == 0 {
		c.Mutation.Retry.MaxAttempts = 3
	}
	if c.Mutation.Retry.InitialBackoff == 0 {
		c.Mutation.Retry.InitialBackoff = 200 * time.Millisecond
	}
	if c.Mutation.Retry.MaxBackoff == 0 {
		c.Mutation.Retry.MaxBackoff = 2 * time.Second
	}
	if c.Wallet.RewardShareRate == 0 {
		c.Wallet.RewardShareRate = 0.005
	}
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = 5 * time.Minute
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	d := c.Feed.Distribution
	for name, pct := range map[string]float64{
		"posts": d.Posts, "products": d.Products, "jobs": d.Jobs, "ads": d.Ads, "events": d.Events,
	} {
		if pct < 0 {
			return fmt.Errorf("feed distribution %s is negative: %v", name, pct)
		}
	}
	if sum := d.Sum(); math.Abs(sum-100) > 1 {
		return fmt.Errorf("feed distribution sums to %v, want 100", sum)
	}
	for kind, p := range c.Feed.BasePriority {
		if p < 0 {
			return fmt.Errorf("base priority for %s is negative: %v", kind, p)
		}
	}
	if c.Mutation.PendingTimeoutMs < 0 {
		return fmt.Errorf("pending mutation timeout is negative")
	}
	if c.Mutation.MaxQueueDepthPerEntity < 1 {
		return fmt.Errorf("max queue depth per entity must be at least 1")
	}
	if c.Wallet.RewardShareRate < 0 || c.Wallet.RewardShareRate > 1 {
		return fmt.Errorf("reward share rate must be within [0, 1], got %v", c.Wallet.RewardShareRate)
	}
	switch c.Realtime.Driver {
	case "websocket", "postgres":
	default:
		return fmt.Errorf("unknown realtime driver %q", c.Realtime.Driver)
	}
	return nil
}
