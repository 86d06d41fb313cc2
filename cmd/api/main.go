package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dunamismax/trackprep/internal/api"
	"github.com/dunamismax/trackprep/internal/audio"
	"github.com/dunamismax/trackprep/internal/config"
	"github.com/dunamismax/trackprep/internal/cover"
	"github.com/dunamismax/trackprep/internal/logging"
	"github.com/dunamismax/trackprep/internal/ratelimit"
	"github.com/dunamismax/trackprep/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $TRACKPREP_CONFIG)")
	flag.Parse()

	fx.New(
		fx.Supply(configPath),
		fx.Provide(
			loadConfig,
			newLogger,
			newTracing,
			newAudioNormalizer,
			newImageNormalizer,
			newRateLimiter,
			newServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(registerHTTPServer),
	).Run()
}

func loadConfig(path *string) (config.Config, error) {
	return config.Load(*path)
}

func newLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newTracing(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (telemetry.Tracing, error) {
	tr, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		return telemetry.Tracing{}, err
	}
	lc.Append(fx.Hook{OnStop: tr.Shutdown})
	return tr, nil
}

func newAudioNormalizer(cfg config.Config) (*audio.Normalizer, error) {
	return audio.NewDefaultNormalizer(cfg.Audio.Resampler)
}

func newImageNormalizer(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*cover.Normalizer, error) {
	if err := cover.Startup(logger); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cover.Shutdown()
			return nil
		},
	})
	return cover.NewDefaultNormalizer(cover.Options{
		CenterCrop:     cfg.Image.CenterCrop,
		ExifCorrection: cfg.Image.ExifCorrection,
	}), nil
}

// newRateLimiter returns a nil limiter when rate limiting is disabled.
func newRateLimiter(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (api.RateLimiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	bucket, err := ratelimit.NewTokenBucket(redis.NewClient(cfg.RateLimit.RedisOptions()), ratelimit.Options{
		Capacity: cfg.RateLimit.Capacity,
		Window:   cfg.RateLimit.Window,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bucket.Ping(ctx); err != nil {
				logger.Warn("rate limiter redis unreachable, requests will fail open",
					zap.String("addr", cfg.RateLimit.RedisAddr),
					zap.Error(err),
				)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return bucket.Close()
		},
	})
	return bucket, nil
}

type serverParams struct {
	fx.In

	Config      config.Config
	Logger      *zap.Logger
	Tracing     telemetry.Tracing
	Audio       *audio.Normalizer
	Image       *cover.Normalizer
	RateLimiter api.RateLimiter
}

func newServer(p serverParams) *api.Server {
	return api.NewServer(api.Options{
		Logger:                p.Logger.Named("api"),
		Audio:                 p.Audio,
		Image:                 p.Image,
		Limits:                p.Config.Limits,
		AllowedOrigins:        p.Config.API.AllowedOrigins,
		MaxConcurrent:         p.Config.API.MaxConcurrent,
		Tracer:                p.Tracing.Tracer,
		RateLimiter:           p.RateLimiter,
		RateLimitUserIDHeader: p.Config.RateLimit.UserIDHeader,
	})
}

func registerHTTPServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, logger *zap.Logger, srv *api.Server, imageNorm *cover.Normalizer) {
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.API.Addr)
			if err != nil {
				return err
			}
			logger.Info("listening",
				zap.String("addr", ln.Addr().String()),
				zap.String("image_backend", imageNorm.Backend()),
				zap.Bool("progressive_jpeg", imageNorm.Progressive()),
				zap.String("resampler", cfg.Audio.Resampler),
				zap.Int("max_concurrent", cfg.API.MaxConcurrent),
				zap.Bool("rate_limit", cfg.RateLimit.Enabled),
			)
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(ctx, cfg.API.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(stopCtx)
		},
	})
}
