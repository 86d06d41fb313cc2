package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dunamismax/trackprep/internal/audio"
	"github.com/dunamismax/trackprep/internal/config"
	"github.com/dunamismax/trackprep/internal/cover"
	"github.com/dunamismax/trackprep/internal/ratelimit"
)

func newTestServer(t *testing.T, mutate func(*Options)) http.Handler {
	t.Helper()
	an, err := audio.NewDefaultNormalizer(audio.ResamplerLinear)
	require.NoError(t, err)

	opts := Options{
		Logger:        zaptest.NewLogger(t),
		Audio:         an,
		Image:         cover.NewDefaultNormalizer(cover.DefaultOptions()),
		Limits:        config.Default().Limits,
		MaxConcurrent: 2,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewServer(opts).Handler()
}

func do(h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func testWAV(t *testing.T) []byte {
	t.Helper()
	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*440*float64(i)/8000)
	}
	data, err := audio.WAVEncoder{}.Encode(audio.Buffer{Channels: [][]float64{samples}, SampleRate: 8000})
	require.NoError(t, err)
	return data
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func b64(data []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(data))
}

func TestPreflight(t *testing.T) {
	h := newTestServer(t, nil)

	for _, path := range []string{routeAudio, routeAudioAlias, routeImage, routeImageAlias} {
		rec := do(h, http.MethodOptions, path, nil, nil)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"), path)
		assert.Equal(t, "Content-Type, Content-Encoding", rec.Header().Get("Access-Control-Allow-Headers"), path)
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"), path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(h, method, routeImage, nil, nil)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "Method not allowed", decodeBody(t, rec)["error"])
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAudioConvert(t *testing.T) {
	h := newTestServer(t, nil)

	for _, path := range []string{routeAudio, routeAudioAlias} {
		rec := do(h, http.MethodPost, path, b64(testWAV(t)), map[string]string{"Content-Type": "text/plain"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Audio           string  `json:"audio"`
			Duration        string  `json:"duration"`
			DurationSeconds float64 `json:"durationSeconds"`
			Format          string  `json:"format"`
			SampleRate      int     `json:"sampleRate"`
			Channels        int     `json:"channels"`
			BitDepth        int     `json:"bitDepth"`
			FileSizeBytes   int     `json:"fileSizeBytes"`
			Original        struct {
				Channels   int `json:"channels"`
				SampleRate int `json:"sampleRate"`
			} `json:"original"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		wav, err := base64.StdEncoding.DecodeString(resp.Audio)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(wav[:4]))
		assert.Equal(t, len(wav), resp.FileSizeBytes)
		assert.Equal(t, "0:01", resp.Duration)
		assert.Equal(t, 1.0, resp.DurationSeconds)
		assert.Equal(t, "WAV Stereo", resp.Format)
		assert.Equal(t, 44100, resp.SampleRate)
		assert.Equal(t, 2, resp.Channels)
		assert.Equal(t, 16, resp.BitDepth)
		assert.Equal(t, 1, resp.Original.Channels)
		assert.Equal(t, 8000, resp.Original.SampleRate)
	}
}

func TestAudioConvert_Errors(t *testing.T) {
	cases := []struct {
		name   string
		opts   func(*Options)
		body   []byte
		status int
		code   string
	}{
		{"empty body", nil, nil, http.StatusBadRequest, "invalid_audio"},
		{"bad base64", nil, []byte("@@not base64@@"), http.StatusBadRequest, "invalid_encoding"},
		{"not audio", nil, b64([]byte("hello, world")), http.StatusBadRequest, "invalid_audio"},
		{"too large", func(o *Options) { o.Limits.MaxAudioBytes = 16 }, b64(make([]byte, 64)), http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"no normalizer", func(o *Options) { o.Audio = nil }, b64([]byte("x")), http.StatusInternalServerError, "missing_capability"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, tc.opts)
			rec := do(h, http.MethodPost, routeAudio, tc.body, nil)

			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAudioConvert_EmptyBodyMessage(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodPost, routeAudio, nil, nil)
	assert.Equal(t, "No audio data", decodeBody(t, rec)["error"])
}

func TestImageResize(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, http.MethodPost, routeImageAlias, b64(testPNG(t, 30, 20)), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Image    string `json:"image"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Format   string `json:"format"`
		Quality  int    `json:"quality"`
		Original struct {
			Width  int    `json:"width"`
			Height int    `json:"height"`
			Format string `json:"format"`
		} `json:"original"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	jpg, err := base64.StdEncoding.DecodeString(resp.Image)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, jpg[:2])
	assert.Equal(t, 1500, resp.Width)
	assert.Equal(t, 1500, resp.Height)
	assert.Equal(t, "JPEG", resp.Format)
	assert.Equal(t, 95, resp.Quality)
	assert.Equal(t, 30, resp.Original.Width)
	assert.Equal(t, 20, resp.Original.Height)
	assert.Equal(t, "PNG", resp.Original.Format)
}

func TestImageResize_Gzip(t *testing.T) {
	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	_, err := zw.Write(testPNG(t, 12, 12))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	h := newTestServer(t, nil)
	for _, header := range []string{"Content-Encoding", "X-Content-Encoding"} {
		rec := do(h, http.MethodPost, routeImage, b64(zipped.Bytes()), map[string]string{header: "gzip"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "PNG", decodeBody(t, rec)["original"].(map[string]any)["format"])
	}

	rec := do(h, http.MethodPost, routeImage, b64(testPNG(t, 12, 12)), map[string]string{"Content-Encoding": "gzip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "decompression", decodeBody(t, rec)["code"])
}

func TestImageResize_EmptyBody(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodPost, routeImage, []byte("  \n"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid_image", body["code"])
	assert.Equal(t, "No image data provided", body["error"])
}

func TestCORSAllowList(t *testing.T) {
	h := newTestServer(t, func(o *Options) {
		o.AllowedOrigins = []string{"https://app.example.com"}
	})

	rec := do(h, http.MethodOptions, routeAudio, nil, map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = do(h, http.MethodOptions, routeAudio, nil, map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagates(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": strings.Repeat("x", 200)})
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/healthz", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "stdlib", body["imageBackend"])
	assert.Equal(t, false, body["progressiveJPEG"])
}

func TestMetricsExposeConversions(t *testing.T) {
	h := newTestServer(t, nil)
	do(h, http.MethodPost, routeAudio, b64(testWAV(t)), nil)
	do(h, http.MethodPost, routeAudio, nil, nil)

	rec := do(h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `trackprep_conversions_total{kind="audio",outcome="success"} 1`)
	assert.Contains(t, out, `trackprep_conversions_total{kind="audio",outcome="invalid_audio"} 1`)
	assert.Contains(t, out, `trackprep_api_requests_total{method="POST",route="/v1/audio/convert",status="200"} 1`)
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	subjects []string
}

func (s *stubLimiter) Allow(_ context.Context, subject string) (ratelimit.Decision, error) {
	s.subjects = append(s.subjects, subject)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false, Remaining: 0, RetryAfter: 2400 * time.Millisecond}}
	h := newTestServer(t, func(o *Options) {
		o.RateLimiter = limiter
		o.RateLimitUserIDHeader = "X-User-ID"
	})

	rec := do(h, http.MethodPost, routeAudioAlias, b64(testWAV(t)), map[string]string{"X-User-ID": "user-7"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, []string{"user-7:/v1/audio/convert"}, limiter.subjects)

	// Preflight and health checks are never limited.
	do(h, http.MethodOptions, routeAudio, nil, nil)
	do(h, http.MethodGet, "/healthz", nil, nil)
	assert.Len(t, limiter.subjects, 1)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := newTestServer(t, func(o *Options) {
		o.RateLimiter = &stubLimiter{err: errors.New("redis down")}
	})

	rec := do(h, http.MethodPost, routeAudio, b64(testWAV(t)), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConvert_ClientGone(t *testing.T) {
	h := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, routeAudio, bytes.NewReader(b64(testWAV(t)))).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Body)
	assert.Empty(t, body)
}
