package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/dunamismax/trackprep/internal/audio"
	"github.com/dunamismax/trackprep/internal/cover"
	"github.com/dunamismax/trackprep/internal/mediaerr"
)

const (
	kindAudio = "audio"
	kindImage = "image"
)

type audioResponse struct {
	Audio string `json:"audio"`
	audio.Metadata
}

type imageResponse struct {
	Image string `json:"image"`
	cover.Metadata
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil {
		s.writeError(w, r, kindAudio, mediaerr.MissingCapability("audio normalizer"))
		return
	}

	input, err := readPayload(w, r, s.limits.MaxAudioBytes, false)
	if err != nil {
		s.writeError(w, r, kindAudio, err)
		return
	}

	var res audio.Result
	ok := s.convert(w, r, kindAudio, len(input), func(ctx context.Context) (int, error) {
		_, span := s.tracer.Start(ctx, "convert.audio")
		defer span.End()

		var err error
		res, err = s.audio.Normalize(input)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		span.SetAttributes(
			attribute.Int("audio.original.channels", res.Metadata.Original.Channels),
			attribute.Int("audio.original.sample_rate", res.Metadata.Original.SampleRate),
			attribute.Float64("audio.original.duration_seconds", res.Metadata.Original.DurationSeconds),
			attribute.Int("audio.output.bytes", res.Metadata.FileSizeBytes),
		)
		return len(res.Data), nil
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, audioResponse{
		Audio:    base64.StdEncoding.EncodeToString(res.Data),
		Metadata: res.Metadata,
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.image == nil {
		s.writeError(w, r, kindImage, mediaerr.MissingCapability("image normalizer"))
		return
	}

	input, err := readPayload(w, r, s.limits.MaxImageBytes, gzipRequested(r))
	if err != nil {
		s.writeError(w, r, kindImage, err)
		return
	}

	var res cover.Result
	ok := s.convert(w, r, kindImage, len(input), func(ctx context.Context) (int, error) {
		_, span := s.tracer.Start(ctx, "convert.image")
		defer span.End()

		var err error
		res, err = s.image.Normalize(input)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		span.SetAttributes(
			attribute.Int("image.original.width", res.Metadata.Original.Width),
			attribute.Int("image.original.height", res.Metadata.Original.Height),
			attribute.String("image.original.format", res.Metadata.Original.Format),
			attribute.Int("image.output.bytes", res.Metadata.FileSizeBytes),
		)
		return len(res.Data), nil
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		Image:    base64.StdEncoding.EncodeToString(res.Data),
		Metadata: res.Metadata,
	})
}

// convert runs fn inside a concurrency slot and records its outcome. It
// returns false when a response has already been written or the client went
// away.
func (s *Server) convert(w http.ResponseWriter, r *http.Request, kind string, inputBytes int, fn func(context.Context) (int, error)) bool {
	ctx := r.Context()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		s.metrics.conversions.WithLabelValues(kind, "canceled").Inc()
		return false
	}
	defer func() { <-s.slots }()

	if ctx.Err() != nil {
		s.metrics.conversions.WithLabelValues(kind, "canceled").Inc()
		return false
	}

	s.metrics.activeConversions.Inc()
	start := time.Now()
	outputBytes, err := fn(ctx)
	s.metrics.activeConversions.Dec()
	s.metrics.conversionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	s.metrics.inputBytes.WithLabelValues(kind).Observe(float64(inputBytes))

	if err != nil {
		s.writeError(w, r, kind, err)
		return false
	}
	if ctx.Err() != nil {
		s.metrics.conversions.WithLabelValues(kind, "canceled").Inc()
		s.logger.Debug("client gone before response",
			zap.String("request_id", requestIDFrom(ctx)),
			zap.String("kind", kind),
		)
		return false
	}

	s.metrics.conversions.WithLabelValues(kind, "success").Inc()
	s.metrics.outputBytes.WithLabelValues(kind).Observe(float64(outputBytes))
	return true
}
