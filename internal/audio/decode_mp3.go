package audio

import (
	"bytes"
	"encoding/binary"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// MP3Decoder reads MPEG-1/2 layer III streams. go-mp3 always produces
// 16-bit little-endian stereo.
type MP3Decoder struct{}

func (MP3Decoder) Name() string { return "mp3" }

func (MP3Decoder) Decode(data []byte) (Buffer, error) {
	if !isMP3(data) {
		return Buffer{}, mediaerr.ErrUnsupportedFormat
	}

	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "mp3: read header")
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "mp3: decode")
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return Buffer{Channels: Deinterleave(samples, 2), SampleRate: dec.SampleRate()}, nil
}

// isMP3 accepts an ID3v2 tag or a bare MPEG frame sync.
func isMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
