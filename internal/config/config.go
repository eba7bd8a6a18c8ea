package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=development production test"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections" validate:"min=1"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type Neo4jConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url" validate:"required_if=Enabled true"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BatchSize int    `mapstructure:"batch_size" validate:"min=1"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topics  struct {
		RecomputeEvents string `mapstructure:"recompute_events"`
	} `mapstructure:"topics"`
}

type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// RecommendationConfig controls the recompute pipeline.
type RecommendationConfig struct {
	TopN            int           `mapstructure:"topn" validate:"min=1,max=1000"`
	TopKSim         int           `mapstructure:"topk_sim" validate:"min=1,max=10000"`
	SimilarLimit    int           `mapstructure:"similar_limit" validate:"min=1,max=1000"`
	PopularityLimit int           `mapstructure:"popularity_limit" validate:"min=0"`
	Weights         WeightsConfig `mapstructure:"weights"`
}

type WeightsConfig struct {
	Booking     float64 `mapstructure:"booking" validate:"gte=0"`
	Favorite    float64 `mapstructure:"favorite" validate:"gte=0"`
	ReviewScale float64 `mapstructure:"review_scale" validate:"gt=0"`
	MaxRating   float64 `mapstructure:"max_rating" validate:"gt=0"`
}

type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval" validate:"required_if=Enabled true"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	LockKey    string        `mapstructure:"lock_key"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests" validate:"required_if=Enabled true"`
	Window   time.Duration `mapstructure:"window" validate:"required_if=Enabled true"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PopularityLimitOrTopN is the number of popular items computed per run. A
// zero limit means "as many as one recommendation list".
func (c RecommendationConfig) PopularityLimitOrTopN() int {
	if c.PopularityLimit > 0 {
		return c.PopularityLimit
	}
	return c.TopN
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the struct tags of the whole configuration tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")

	// Database defaults
	v.SetDefault("database.url", "postgres://localhost:5432/azstay")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_time", "15m")
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.url", "localhost:6379")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "5s")
	v.SetDefault("redis.cache_ttl", "15m")

	// Neo4j defaults
	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.batch_size", 500)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topics.recompute_events", "recommendation-recompute")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_ttl", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Recommendation defaults
	v.SetDefault("recommendation.topn", 20)
	v.SetDefault("recommendation.topk_sim", 100)
	v.SetDefault("recommendation.similar_limit", 20)
	v.SetDefault("recommendation.popularity_limit", 0)
	v.SetDefault("recommendation.weights.booking", 5.0)
	v.SetDefault("recommendation.weights.favorite", 4.0)
	v.SetDefault("recommendation.weights.review_scale", 5.0)
	v.SetDefault("recommendation.weights.max_rating", 5.0)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "3h")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.lock_ttl", "30m")
	v.SetDefault("scheduler.lock_key", "stayrec:recompute:lock")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests", 120)
	v.SetDefault("security.rate_limit.window", "1m")
}
