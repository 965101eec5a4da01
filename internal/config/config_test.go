package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: ":9090"
  default_format: png
cache:
  capacity: 16
  single_flight: false
fetcher:
  timeout: 3s
kafka:
  enabled: true
  topic: warm
  brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPPort)
	assert.Equal(t, "png", cfg.Server.DefaultFormat)
	assert.Equal(t, 16, cfg.Cache.Capacity)
	assert.False(t, cfg.Cache.SingleFlight)
	assert.Equal(t, 3*time.Second, cfg.Fetcher.Timeout)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "warm", cfg.Kafka.Topic)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	// Untouched keys keep their defaults.
	assert.Equal(t, 85, cfg.Engine.JPEGQuality)
	assert.Equal(t, "image-proxy", cfg.Kafka.GroupID)
	assert.Equal(t, 24*time.Hour, cfg.Server.CacheMaxAge)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPPort)
	assert.Equal(t, "jpeg", cfg.Server.DefaultFormat)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
	assert.True(t, cfg.Cache.SingleFlight)
	assert.Equal(t, 2, cfg.Fetcher.RetryMax)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 2.0, cfg.Retry.Backoff)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  access_key: from-file
cache:
  capacity: 16
`)

	t.Setenv("MINIO_ACCESS_KEY", "from-env")
	t.Setenv("MINIO_SECRET_KEY", "secret")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("CACHE_CAPACITY", "32")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Storage.AccessKey)
	assert.Equal(t, "secret", cfg.Storage.SecretKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 32, cfg.Cache.Capacity)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMustLoad_Panics(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	assert.Panics(t, func() { MustLoad(path) })
}
