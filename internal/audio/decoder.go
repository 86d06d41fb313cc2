package audio

import (
	"errors"
	"strings"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// Decoder turns one container format into a Buffer.
//
// Decode returns mediaerr.ErrUnsupportedFormat when the bytes are not the
// decoder's container, and mediaerr.ErrInvalidAudio when they are but the
// payload cannot be decoded. A recognised container with no channels decodes
// to an empty Buffer.
type Decoder interface {
	Name() string
	Decode(data []byte) (Buffer, error)
}

// Chain tries decoders in order and returns the first success.
type Chain []Decoder

// DefaultDecoders returns every built-in decoder in probe order.
func DefaultDecoders() []Decoder {
	return []Decoder{
		WAVDecoder{},
		AIFFDecoder{},
		FLACDecoder{},
		VorbisDecoder{},
		MP3Decoder{},
	}
}

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, d := range c {
		names = append(names, d.Name())
	}
	return strings.Join(names, ",")
}

func (c Chain) Decode(data []byte) (Buffer, error) {
	if len(c) == 0 {
		return Buffer{}, mediaerr.MissingCapability("audio decoder")
	}
	for _, d := range c {
		buf, err := d.Decode(data)
		if err == nil {
			return buf, nil
		}
		if errors.Is(err, mediaerr.ErrUnsupportedFormat) {
			continue
		}
		return Buffer{}, err
	}
	return Buffer{}, mediaerr.InvalidAudio("unrecognized audio container (tried %s)", c.Name())
}
