package audio

import (
	"bytes"
	"errors"
	"io"

	"github.com/mewkiz/flac"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// FLACDecoder reads native FLAC streams.
type FLACDecoder struct{}

func (FLACDecoder) Name() string { return "flac" }

func (FLACDecoder) Decode(data []byte) (Buffer, error) {
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		return Buffer{}, mediaerr.ErrUnsupportedFormat
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "flac: read stream info")
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	if channels == 0 {
		return Buffer{SampleRate: int(stream.Info.SampleRate)}, nil
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Buffer{}, mediaerr.InvalidAudio("flac: unsupported bit depth %d", bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	planar := make([][]float64, channels)

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "flac: decode frame")
		}
		for c := 0; c < channels && c < len(frame.Subframes); c++ {
			for _, s := range frame.Subframes[c].Samples {
				planar[c] = append(planar[c], float64(s)/scale)
			}
		}
	}

	return Buffer{Channels: planar, SampleRate: int(stream.Info.SampleRate)}, nil
}
