package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

// Encoder serializes a Buffer into a container.
type Encoder interface {
	Encode(buf Buffer) ([]byte, error)
}

const pcm16Max = 32767

// WAVEncoder writes signed 16-bit little-endian PCM WAV at the buffer's own
// sample rate and channel count.
type WAVEncoder struct{}

func (WAVEncoder) Encode(buf Buffer) ([]byte, error) {
	channels := buf.NumChannels()
	if channels == 0 || buf.SampleRate <= 0 {
		return nil, mediaerr.UnsupportedFormat("wav encode: buffer has %d channels at %d Hz", channels, buf.SampleRate)
	}

	interleaved := buf.Interleave()
	data := make([]int, len(interleaved))
	for i, s := range interleaved {
		data[i] = ToPCM16(s)
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, buf.SampleRate, 16, channels, wavFormatPCM)
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav header: %w", err)
	}
	return out.buf, nil
}

// ToPCM16 maps a float sample to int16 range: round(clamp(s, -1, 1) * 32767).
func ToPCM16(s float64) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(math.Round(s * pcm16Max))
}

// memWriteSeeker lets the wav encoder patch its header in memory.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
