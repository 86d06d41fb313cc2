package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/go-audio/aiff"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder reads integer PCM and IEEE float RIFF/WAVE files, including
// WAVE_FORMAT_EXTENSIBLE headers.
type WAVDecoder struct{}

func (WAVDecoder) Name() string { return "wav" }

func (WAVDecoder) Decode(data []byte) (Buffer, error) {
	if !isWAV(data) {
		return Buffer{}, mediaerr.ErrUnsupportedFormat
	}

	format, err := readWAVFormat(data)
	if err != nil {
		return Buffer{}, err
	}
	switch format.encoding {
	case wavFormatPCM:
		return decodePCMWAV(data)
	case wavFormatFloat:
		return decodeFloatWAV(format)
	default:
		return Buffer{}, mediaerr.InvalidAudio("wav: unsupported sample encoding %d", format.encoding)
	}
}

func decodePCMWAV(data []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Buffer{}, mediaerr.InvalidAudio("wav: malformed header")
	}
	if !validBitDepth(int(dec.BitDepth)) {
		return Buffer{}, mediaerr.InvalidAudio("wav: unsupported bit depth %d", dec.BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "wav: read samples")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range pcm.Data {
			pcm.Data[i] = v - 128
		}
	}
	return intsToBuffer(pcm.Data, int(dec.NumChans), int(dec.SampleRate), bitDepth), nil
}

func decodeFloatWAV(f wavFormat) (Buffer, error) {
	if f.channels < 1 {
		return Buffer{}, mediaerr.InvalidAudio("wav: malformed header")
	}
	if f.bitDepth != 32 && f.bitDepth != 64 {
		return Buffer{}, mediaerr.InvalidAudio("wav: unsupported float bit depth %d", f.bitDepth)
	}

	width := f.bitDepth / 8
	frames := len(f.samples) / (width * f.channels)
	planar := make([][]float64, f.channels)
	for c := range planar {
		planar[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < f.channels; c++ {
			off := (i*f.channels + c) * width
			var v float64
			if width == 4 {
				v = float64(math.Float32frombits(binary.LittleEndian.Uint32(f.samples[off:])))
			} else {
				v = math.Float64frombits(binary.LittleEndian.Uint64(f.samples[off:]))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			planar[c][i] = v
		}
	}
	return Buffer{Channels: planar, SampleRate: f.sampleRate}, nil
}

// wavFormat is the fmt chunk of a RIFF/WAVE file. For extensible headers
// encoding holds the subformat tag, not 0xFFFE.
type wavFormat struct {
	encoding   uint16
	channels   int
	sampleRate int
	bitDepth   int
	samples    []byte
}

func readWAVFormat(data []byte) (wavFormat, error) {
	p := riff.New(bytes.NewReader(data))
	if err := p.ParseHeaders(); err != nil {
		return wavFormat{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "wav: read riff header")
	}

	var (
		f       wavFormat
		haveFmt bool
	)
	for {
		ch, err := p.NextChunk()
		if err != nil {
			break
		}
		switch ch.ID {
		case riff.FmtID:
			body := readChunk(ch)
			if len(body) < 16 {
				return wavFormat{}, mediaerr.InvalidAudio("wav: malformed fmt chunk")
			}
			f.encoding = binary.LittleEndian.Uint16(body[0:2])
			f.channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			f.bitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
			if f.encoding == wavFormatExtensible {
				// The subformat GUID starts at offset 24; its first two
				// bytes carry the format tag.
				if len(body) < 26 {
					return wavFormat{}, mediaerr.InvalidAudio("wav: malformed extensible fmt chunk")
				}
				f.encoding = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true
		case riff.DataFormatID:
			f.samples = readChunk(ch)
		default:
			ch.Drain()
		}
	}
	if !haveFmt {
		return wavFormat{}, mediaerr.InvalidAudio("wav: missing fmt chunk")
	}
	return f, nil
}

// readChunk returns the chunk payload, short when the file is truncated.
func readChunk(ch *riff.Chunk) []byte {
	body, _ := io.ReadAll(io.LimitReader(ch, int64(ch.Size)))
	return body
}

// AIFFDecoder reads AIFF and uncompressed AIFC files.
type AIFFDecoder struct{}

func (AIFFDecoder) Name() string { return "aiff" }

func (AIFFDecoder) Decode(data []byte) (Buffer, error) {
	if !isAIFF(data) {
		return Buffer{}, mediaerr.ErrUnsupportedFormat
	}

	dec := aiff.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Buffer{}, mediaerr.InvalidAudio("aiff: malformed header")
	}
	if !validBitDepth(int(dec.BitDepth)) {
		return Buffer{}, mediaerr.InvalidAudio("aiff: unsupported bit depth %d", dec.BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, mediaerr.Wrap(mediaerr.KindInvalidAudio, err, "aiff: read samples")
	}
	return intsToBuffer(pcm.Data, int(dec.NumChans), int(dec.SampleRate), int(dec.BitDepth)), nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isAIFF(data []byte) bool {
	if len(data) < 12 || string(data[0:4]) != "FORM" {
		return false
	}
	kind := string(data[8:12])
	return kind == "AIFF" || kind == "AIFC"
}

func validBitDepth(bits int) bool {
	switch bits {
	case 8, 16, 24, 32:
		return true
	default:
		return false
	}
}
