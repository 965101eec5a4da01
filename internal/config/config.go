package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Cache   Cache   `mapstructure:"cache"`
	Engine  Engine  `mapstructure:"engine"`
	Fetcher Fetcher `mapstructure:"fetcher"`
	Storage Storage `mapstructure:"storage"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Retry   Retry   `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort      string        `mapstructure:"http_port"`      // address to listen on
	DefaultFormat string        `mapstructure:"default_format"` // output format when none is requested
	CacheMaxAge   time.Duration `mapstructure:"cache_max_age"`  // Cache-Control max-age of image responses
}

// Cache holds the rendered image cache configuration.
type Cache struct {
	Capacity     int  `mapstructure:"capacity"`      // maximum number of cached images
	SingleFlight bool `mapstructure:"single_flight"` // share in-flight renders per key
}

// Engine holds the transform engine configuration.
type Engine struct {
	JPEGQuality      int     `mapstructure:"jpeg_quality"`
	MaxSourcePixels  int     `mapstructure:"max_source_pixels"`
	WatermarkText    string  `mapstructure:"watermark_text"`
	WatermarkOpacity float64 `mapstructure:"watermark_opacity"`
}

// Fetcher holds the source fetcher configuration.
type Fetcher struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

// Storage holds configuration for the s3:// source backend.
type Storage struct {
	Enabled   bool     `mapstructure:"enabled"`
	Endpoint  string   `mapstructure:"endpoint"`
	AccessKey string   `mapstructure:"access_key"`
	SecretKey string   `mapstructure:"secret_key"`
	UseSSL    bool     `mapstructure:"use_ssl"`
	Buckets   []string `mapstructure:"buckets"` // checked on startup
}

// Kafka holds configuration for the cache warm-up queue.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.default_format", "jpeg")
	v.SetDefault("server.cache_max_age", 24*time.Hour)

	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.single_flight", true)

	v.SetDefault("engine.jpeg_quality", 85)
	v.SetDefault("engine.max_source_pixels", 50_000_000)
	v.SetDefault("engine.watermark_opacity", 1.0)

	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("fetcher.max_bytes", 32<<20)
	v.SetDefault("fetcher.user_agent", "image-proxy/1.0")
	v.SetDefault("fetcher.retry_max", 2)
	v.SetDefault("fetcher.retry_wait_min", 100*time.Millisecond)
	v.SetDefault("fetcher.retry_wait_max", 2*time.Second)

	v.SetDefault("kafka.topic", "image-warm")
	v.SetDefault("kafka.group_id", "image-proxy")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)
}

// mustBindEnv binds secrets and deployment-specific values to environment
// variables.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"storage.access_key": "MINIO_ACCESS_KEY",
		"storage.secret_key": "MINIO_SECRET_KEY",
		"storage.endpoint":   "MINIO_ENDPOINT",
		"kafka.brokers":      "KAFKA_BROKERS",
		"server.http_port":   "HTTP_PORT",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// Load reads the configuration from the YAML file at path. A missing file is
// not an error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(filepath.Clean(path)); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		zlog.Logger.Warn().Str("path", path).Msg("config file not found, using defaults")
	}

	mustBindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
