package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRACKPREP_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, int64(50<<20), cfg.Limits.MaxAudioBytes)
	assert.Equal(t, int64(10<<20), cfg.Limits.MaxImageBytes)
	assert.Equal(t, "linear", cfg.Audio.Resampler)
	assert.True(t, cfg.Image.CenterCrop)
	assert.True(t, cfg.Image.ExifCorrection)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.Positive(t, cfg.API.MaxConcurrent)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  addr: ":9090"
  allowed_origins: ["https://app.example.com"]
  write_timeout: 90s
audio:
  resampler: cubic
image:
  center_crop: false
rate_limit:
  enabled: true
  capacity: 5
`), 0o644))

	t.Setenv("TRACKPREP_API_ADDR", ":7070")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.API.Addr, "env wins over file")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.API.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.API.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "cubic", cfg.Audio.Resampler)
	assert.False(t, cfg.Image.CenterCrop)
	assert.True(t, cfg.Image.ExifCorrection)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, "redis:6379", cfg.RateLimit.RedisOptions().Addr)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	t.Setenv("TRACKPREP_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  adress: \":1\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adress")
}

func TestLoad_EnvListAndBadValues(t *testing.T) {
	t.Setenv("TRACKPREP_CONFIG", "")
	t.Setenv("TRACKPREP_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TRACKPREP_MAX_CONCURRENT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
	assert.Equal(t, Default().API.MaxConcurrent, cfg.API.MaxConcurrent)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"resampler":     func(c *Config) { c.Audio.Resampler = "sinc" },
		"exporter":      func(c *Config) { c.Telemetry.Exporter = "zipkin" },
		"audio limit":   func(c *Config) { c.Limits.MaxAudioBytes = 0 },
		"image limit":   func(c *Config) { c.Limits.MaxImageBytes = -1 },
		"concurrency":   func(c *Config) { c.API.MaxConcurrent = 0 },
		"log level":     func(c *Config) { c.LogLevel = "verbose" },
		"rate capacity": func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Capacity = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
