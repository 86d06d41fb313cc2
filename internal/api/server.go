package api

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/dunamismax/trackprep/internal/audio"
	"github.com/dunamismax/trackprep/internal/config"
	"github.com/dunamismax/trackprep/internal/cover"
)

const (
	routeAudio      = "/v1/audio/convert"
	routeAudioAlias = "/audio-convert"
	routeImage      = "/v1/image/resize"
	routeImageAlias = "/image-resize"
)

type AudioNormalizer interface {
	Normalize(input []byte) (audio.Result, error)
}

type ImageNormalizer interface {
	Normalize(input []byte) (cover.Result, error)
	Backend() string
	Progressive() bool
}

type Options struct {
	Logger                *zap.Logger
	Audio                 AudioNormalizer
	Image                 ImageNormalizer
	Limits                config.LimitsConfig
	AllowedOrigins        []string
	MaxConcurrent         int
	Tracer                trace.Tracer
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
}

type Server struct {
	logger                *zap.Logger
	audio                 AudioNormalizer
	image                 ImageNormalizer
	limits                config.LimitsConfig
	allowedOrigins        []string
	slots                 chan struct{}
	tracer                trace.Tracer
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	mux                   *http.ServeMux
	handler               http.Handler
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("trackprep/api")
	}
	slots := opts.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	header := opts.RateLimitUserIDHeader
	if header == "" {
		header = "X-User-ID"
	}

	s := &Server{
		logger:                logger,
		audio:                 opts.Audio,
		image:                 opts.Image,
		limits:                opts.Limits,
		allowedOrigins:        opts.AllowedOrigins,
		slots:                 make(chan struct{}, slots),
		tracer:                tracer,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: header,
		metrics:               newMetrics(),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	s.handler = s.withTracing(s.metrics.withHTTPMetrics(s.withRequestContext(s.withRateLimit(s.mux))))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())

	for _, path := range []string{routeAudio, routeAudioAlias} {
		s.mux.HandleFunc(path, s.conversionRoute(s.handleAudio))
	}
	for _, path := range []string{routeImage, routeImageAlias} {
		s.mux.HandleFunc(path, s.conversionRoute(s.handleImage))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	backend, progressive := "none", false
	if s.image != nil {
		backend, progressive = s.image.Backend(), s.image.Progressive()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"imageBackend":    backend,
		"progressiveJPEG": progressive,
	})
}

// conversionRoute answers preflight and rejects anything but POST.
func (s *Server) conversionRoute(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			next(w, r)
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
