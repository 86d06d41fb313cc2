package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

func statusFor(kind mediaerr.Kind) int {
	switch kind {
	case mediaerr.KindInvalidEncoding, mediaerr.KindInvalidAudio, mediaerr.KindInvalidImage, mediaerr.KindDecompression:
		return http.StatusBadRequest
	case mediaerr.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case mediaerr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the failure once and maps it to a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	code := mediaerr.KindOf(err)
	status := statusFor(code)

	message := "internal error"
	var classified *mediaerr.Error
	if errors.As(err, &classified) {
		message = classified.Error()
	}

	s.metrics.conversions.WithLabelValues(kind, code.String()).Inc()

	fields := []zap.Field{
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("route", routeLabel(r.URL.Path)),
		zap.String("kind", code.String()),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("conversion failed", fields...)
	} else {
		s.logger.Warn("conversion rejected", fields...)
	}

	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code.String(),
	})
}
