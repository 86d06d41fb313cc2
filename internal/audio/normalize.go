package audio

import (
	"fmt"
	"math"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

const (
	TargetSampleRate = 44100
	TargetChannels   = 2
	TargetBitDepth   = 16
	TargetPeak       = 0.95
	OutputFormat     = "WAV Stereo"
)

// Result is the encoded WAV plus its description.
type Result struct {
	Data     []byte
	Metadata Metadata
}

// Normalizer runs decode, channel fix, resample, peak normalization and
// encode. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	decoders  Chain
	resampler Resampler
	encoder   Encoder
}

func NewNormalizer(decoders []Decoder, resampler Resampler, encoder Encoder) *Normalizer {
	return &Normalizer{
		decoders:  Chain(decoders),
		resampler: resampler,
		encoder:   encoder,
	}
}

// NewDefaultNormalizer wires every built-in decoder, the named resampler and
// the WAV encoder.
func NewDefaultNormalizer(resampler string) (*Normalizer, error) {
	r, err := NewResampler(resampler)
	if err != nil {
		return nil, err
	}
	return NewNormalizer(DefaultDecoders(), r, WAVEncoder{}), nil
}

func (n *Normalizer) Normalize(input []byte) (Result, error) {
	if len(n.decoders) == 0 {
		return Result{}, mediaerr.MissingCapability("audio decoder")
	}
	if n.resampler == nil {
		return Result{}, mediaerr.MissingCapability("audio resampler")
	}
	if n.encoder == nil {
		return Result{}, mediaerr.MissingCapability("audio encoder")
	}
	if len(input) == 0 {
		return Result{}, mediaerr.InvalidAudio("No audio data")
	}

	decoded, err := n.decoders.Decode(input)
	if err != nil {
		return Result{}, err
	}
	if decoded.NumChannels() == 0 {
		return Result{}, mediaerr.UnsupportedFormat("decoded audio has no channels")
	}
	if decoded.SampleRate <= 0 {
		return Result{}, mediaerr.InvalidAudio("invalid sample rate %d", decoded.SampleRate)
	}
	if decoded.Frames() == 0 {
		return Result{}, mediaerr.InvalidAudio("decoded audio has no samples")
	}

	original := Original{
		Channels:        decoded.NumChannels(),
		SampleRate:      decoded.SampleRate,
		DurationSeconds: round2(decoded.Duration()),
	}

	out := ToStereo(decoded)
	if out.SampleRate != TargetSampleRate {
		out = n.resample(out, TargetSampleRate)
	}
	PeakNormalize(out, TargetPeak)

	data, err := n.encoder.Encode(out)
	if err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}

	return Result{Data: data, Metadata: describe(out, len(data), original)}, nil
}

func (n *Normalizer) resample(buf Buffer, rate int) Buffer {
	channels := make([][]float64, len(buf.Channels))
	for c, samples := range buf.Channels {
		channels[c] = n.resampler.Resample(samples, buf.SampleRate, rate)
	}
	return Buffer{Channels: channels, SampleRate: rate}
}

// ToStereo duplicates mono into left and right and keeps only the first two
// channels of wider layouts. Channels are trimmed to a common length.
func ToStereo(buf Buffer) Buffer {
	frames := buf.Frames()
	switch buf.NumChannels() {
	case 0:
		return buf
	case 1:
		left := make([]float64, frames)
		right := make([]float64, frames)
		copy(left, buf.Channels[0])
		copy(right, buf.Channels[0])
		return Buffer{Channels: [][]float64{left, right}, SampleRate: buf.SampleRate}
	default:
		return Buffer{
			Channels:   [][]float64{buf.Channels[0][:frames], buf.Channels[1][:frames]},
			SampleRate: buf.SampleRate,
		}
	}
}

// Peak is the largest absolute sample across all channels.
func Peak(buf Buffer) float64 {
	var peak float64
	for _, ch := range buf.Channels {
		for _, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// PeakNormalize scales buf in place so its peak equals target. Silence is
// left untouched.
func PeakNormalize(buf Buffer, target float64) {
	peak := Peak(buf)
	if peak == 0 {
		return
	}
	gain := target / peak
	for _, ch := range buf.Channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
}
