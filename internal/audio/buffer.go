// Package audio normalizes arbitrary input audio into a canonical stereo
// 44.1kHz 16-bit PCM WAV container.
package audio

// Buffer holds planar samples in [-1.0, 1.0], one slice per channel.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

func (b Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames is the length of the shortest channel.
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	n := len(b.Channels[0])
	for _, ch := range b.Channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	return n
}

// Duration in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Interleave flattens the buffer frame by frame.
func (b Buffer) Interleave() []float64 {
	frames := b.Frames()
	channels := len(b.Channels)
	out := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = b.Channels[c][i]
		}
	}
	return out
}

// Deinterleave splits interleaved samples into planar channels. A trailing
// partial frame is dropped.
func Deinterleave(samples []float64, channels int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}

// intsToBuffer scales signed integer PCM of the given bit depth into a Buffer.
func intsToBuffer(data []int, channels, sampleRate, bitDepth int) Buffer {
	scale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float64, len(data))
	for i, v := range data {
		samples[i] = float64(v) / scale
	}
	return Buffer{Channels: Deinterleave(samples, channels), SampleRate: sampleRate}
}
