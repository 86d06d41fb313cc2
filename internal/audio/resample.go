package audio

import (
	"fmt"
	"math"
	"strings"
)

// Resampler converts one channel from one sample rate to another.
type Resampler interface {
	Resample(samples []float64, fromRate, toRate int) []float64
}

const (
	ResamplerLinear = "linear"
	ResamplerCubic  = "cubic"
)

// NewResampler returns the resampler registered under name. An empty name
// selects linear interpolation.
func NewResampler(name string) (Resampler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ResamplerLinear:
		return LinearResampler{}, nil
	case ResamplerCubic:
		return CubicResampler{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q", name)
	}
}

// OutputLength is floor(inputLen * toRate / fromRate), never below 1 for
// non-empty input.
func OutputLength(inputLen, fromRate, toRate int) int {
	if inputLen <= 0 || fromRate <= 0 || toRate <= 0 {
		return 0
	}
	n := int(int64(inputLen) * int64(toRate) / int64(fromRate))
	if n < 1 {
		n = 1
	}
	return n
}

// LinearResampler interpolates between the two nearest source samples.
// It applies no anti-aliasing filter.
type LinearResampler struct{}

func (LinearResampler) Resample(samples []float64, fromRate, toRate int) []float64 {
	return resampleWith(samples, fromRate, toRate, func(s []float64, i0 int, frac float64) float64 {
		if i0+1 >= len(s) {
			return s[len(s)-1]
		}
		return s[i0] + (s[i0+1]-s[i0])*frac
	})
}

// CubicResampler interpolates with a Catmull-Rom spline over four source
// samples, clamping at the edges.
type CubicResampler struct{}

func (CubicResampler) Resample(samples []float64, fromRate, toRate int) []float64 {
	return resampleWith(samples, fromRate, toRate, func(s []float64, i0 int, frac float64) float64 {
		last := len(s) - 1
		y0 := s[clampIndex(i0-1, last)]
		y1 := s[clampIndex(i0, last)]
		y2 := s[clampIndex(i0+1, last)]
		y3 := s[clampIndex(i0+2, last)]
		return catmullRom(y0, y1, y2, y3, frac)
	})
}

type interpolator func(samples []float64, i0 int, frac float64) float64

// resampleWith maps output frame i to source position i*(L-1)/(N-1).
func resampleWith(samples []float64, fromRate, toRate int, interp interpolator) []float64 {
	if len(samples) == 0 {
		return []float64{}
	}
	if fromRate == toRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	n := OutputLength(len(samples), fromRate, toRate)
	out := make([]float64, n)
	if n == 1 {
		out[0] = samples[0]
		return out
	}

	step := float64(len(samples)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		i0 := int(math.Floor(pos))
		out[i] = interp(samples, i0, pos-float64(i0))
	}
	return out
}

func catmullRom(y0, y1, y2, y3, x float64) float64 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return a0*x*x*x + a1*x*x + a2*x + a3
}

func clampIndex(i, last int) int {
	if i < 0 {
		return 0
	}
	if i > last {
		return last
	}
	return i
}
