package audio

import (
	"bytes"

	"github.com/jfreymuth/oggvorbis"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// VorbisDecoder reads Ogg Vorbis files.
type VorbisDecoder struct{}

func (VorbisDecoder) Name() string { return "vorbis" }

func (VorbisDecoder) Decode(data []byte) (Buffer, error) {
	if !bytes.HasPrefix(data, []byte("OggS")) {
		return Buffer{}, mediaerr.ErrUnsupportedFormat
	}

	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "vorbis: decode")
	}
	if format == nil {
		return Buffer{}, mediaerr.InvalidAudio("vorbis: missing stream format")
	}
	if format.Channels <= 0 {
		return Buffer{SampleRate: format.SampleRate}, nil
	}

	interleaved := make([]float64, len(samples))
	for i, s := range samples {
		interleaved[i] = float64(s)
	}
	return Buffer{Channels: Deinterleave(interleaved, format.Channels), SampleRate: format.SampleRate}, nil
}
