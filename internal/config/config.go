package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API       APIConfig       `yaml:"api"`
	Limits    LimitsConfig    `yaml:"limits"`
	Audio     AudioConfig     `yaml:"audio"`
	Image     ImageConfig     `yaml:"image"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"log_level"`
}

type APIConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LimitsConfig caps decoded payload sizes in bytes.
type LimitsConfig struct {
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

type AudioConfig struct {
	Resampler string `yaml:"resampler"`
}

type ImageConfig struct {
	CenterCrop     bool `yaml:"center_crop"`
	ExifCorrection bool `yaml:"exif_correction"`
}

type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Capacity      int           `yaml:"capacity"`
	Window        time.Duration `yaml:"window"`
	UserIDHeader  string        `yaml:"user_id_header"`
}

func (r RateLimitConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.RedisAddr,
		Password: r.RedisPassword,
		DB:       r.RedisDB,
	}
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	Exporter     string `yaml:"exporter"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

func Default() Config {
	return Config{
		API: APIConfig{
			Addr:            ":8080",
			MaxConcurrent:   max(1, runtime.NumCPU()),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Limits: LimitsConfig{
			MaxAudioBytes: 50 << 20,
			MaxImageBytes: 10 << 20,
		},
		Audio: AudioConfig{
			Resampler: "linear",
		},
		Image: ImageConfig{
			CenterCrop:     true,
			ExifCorrection: true,
		},
		RateLimit: RateLimitConfig{
			RedisAddr:    "localhost:6379",
			Capacity:     60,
			Window:       time.Minute,
			UserIDHeader: "X-User-ID",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "trackprep-api",
			Exporter:     "none",
			OTLPEndpoint: "localhost:4318",
			OTLPInsecure: true,
		},
		LogLevel: "info",
	}
}

// Load layers defaults, the optional YAML file at path (or $TRACKPREP_CONFIG)
// and environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = env("TRACKPREP_CONFIG", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnv(cfg *Config) {
	cfg.API.Addr = env("TRACKPREP_API_ADDR", cfg.API.Addr)
	cfg.API.AllowedOrigins = envList("TRACKPREP_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.MaxConcurrent = envInt("TRACKPREP_MAX_CONCURRENT", cfg.API.MaxConcurrent)
	cfg.API.ReadTimeout = envDuration("TRACKPREP_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = envDuration("TRACKPREP_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.IdleTimeout = envDuration("TRACKPREP_IDLE_TIMEOUT", cfg.API.IdleTimeout)
	cfg.API.ShutdownTimeout = envDuration("TRACKPREP_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Limits.MaxAudioBytes = int64(envInt("TRACKPREP_MAX_AUDIO_BYTES", int(cfg.Limits.MaxAudioBytes)))
	cfg.Limits.MaxImageBytes = int64(envInt("TRACKPREP_MAX_IMAGE_BYTES", int(cfg.Limits.MaxImageBytes)))

	cfg.Audio.Resampler = env("TRACKPREP_RESAMPLER", cfg.Audio.Resampler)
	cfg.Image.CenterCrop = envBool("TRACKPREP_CENTER_CROP", cfg.Image.CenterCrop)
	cfg.Image.ExifCorrection = envBool("TRACKPREP_EXIF_CORRECTION", cfg.Image.ExifCorrection)

	cfg.RateLimit.Enabled = envBool("TRACKPREP_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RedisAddr = env("REDIS_ADDR", cfg.RateLimit.RedisAddr)
	cfg.RateLimit.RedisPassword = env("REDIS_PASSWORD", cfg.RateLimit.RedisPassword)
	cfg.RateLimit.RedisDB = envInt("REDIS_DB", cfg.RateLimit.RedisDB)
	cfg.RateLimit.Capacity = envInt("TRACKPREP_RATE_LIMIT_CAPACITY", cfg.RateLimit.Capacity)
	cfg.RateLimit.Window = envDuration("TRACKPREP_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.UserIDHeader = env("TRACKPREP_RATE_LIMIT_USER_HEADER", cfg.RateLimit.UserIDHeader)

	cfg.Telemetry.ServiceName = env("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Exporter = env("OTEL_TRACES_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.OTLPEndpoint = env("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.OTLPInsecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Telemetry.OTLPInsecure)

	cfg.LogLevel = env("TRACKPREP_LOG_LEVEL", cfg.LogLevel)
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Addr) == "" {
		errs = append(errs, errors.New("api.addr is required"))
	}
	if c.API.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("api.max_concurrent must be positive"))
	}
	if c.Limits.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("limits.max_audio_bytes must be positive"))
	}
	if c.Limits.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("limits.max_image_bytes must be positive"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Audio.Resampler)) {
	case "linear", "cubic":
	default:
		errs = append(errs, fmt.Errorf("audio.resampler must be linear or cubic, got %q", c.Audio.Resampler))
	}

	switch strings.ToLower(strings.TrimSpace(c.Telemetry.Exporter)) {
	case "", "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter))
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Capacity <= 0 {
			errs = append(errs, errors.New("rate_limit.capacity must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be positive"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envList(key string, fallback []string) []string {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
