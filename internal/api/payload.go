package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// readPayload reads a base64 body whose decoded size may not exceed limit and
// optionally gunzips the decoded bytes under the same limit.
func readPayload(w http.ResponseWriter, r *http.Request, limit int64, gunzip bool) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, encodedLimit(limit))
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, payloadTooLarge(limit)
		}
		return nil, mediaerr.InvalidEncoding(err)
	}

	decoded, err := decodeBase64(raw)
	if err != nil {
		return nil, err
	}
	if int64(len(decoded)) > limit {
		return nil, payloadTooLarge(limit)
	}
	if !gunzip || len(decoded) == 0 {
		return decoded, nil
	}
	return gunzipLimited(decoded, limit)
}

func decodeBase64(raw []byte) ([]byte, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	out, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, mediaerr.InvalidEncoding(err)
	}
	return out, nil
}

func gunzipLimited(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, mediaerr.Decompression(err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, mediaerr.Decompression(err)
	}
	if int64(len(out)) > limit {
		return nil, payloadTooLarge(limit)
	}
	return out, nil
}

func gzipRequested(r *http.Request) bool {
	for _, h := range []string{"Content-Encoding", "X-Content-Encoding"} {
		if strings.EqualFold(strings.TrimSpace(r.Header.Get(h)), "gzip") {
			return true
		}
	}
	return false
}

// encodedLimit is the base64 length of limit bytes plus room for line breaks.
func encodedLimit(limit int64) int64 {
	return (limit+2)/3*4 + limit/57*2 + 1024
}

func payloadTooLarge(limit int64) error {
	return mediaerr.New(mediaerr.KindPayloadTooLarge, "payload exceeds %d bytes", limit)
}
