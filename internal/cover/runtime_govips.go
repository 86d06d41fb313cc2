//go:build govips && cgo

package cover

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"go.uber.org/zap"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initializes libvips once per process. libvips warnings and errors
// are written to logger under the "vips" name.
func Startup(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	startupOnce.Do(func() {
		vips.LoggingSettings(vipsLogHandler(logger.Named("vips")), vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   64 * 1024 * 1024,
			MaxCacheSize:  50,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func vipsLogHandler(logger *zap.Logger) vips.LoggingHandlerFunction {
	return func(domain string, level vips.LogLevel, message string) {
		field := zap.String("domain", domain)
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logger.Error(message, field)
		case vips.LogLevelWarning:
			logger.Warn(message, field)
		case vips.LogLevelDebug:
			logger.Debug(message, field)
		default:
			logger.Info(message, field)
		}
	}
}

func newTransformer() Transformer {
	return govipsTransformer{}
}
