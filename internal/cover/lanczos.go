package cover

import (
	"math"

	"golang.org/x/image/draw"
)

// lanczos3 is a three-lobe windowed sinc kernel.
var lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		t = math.Abs(t)
		if t < 1e-9 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		return sinc(t) * sinc(t/3)
	},
}

func sinc(x float64) float64 {
	x *= math.Pi
	return math.Sin(x) / x
}
