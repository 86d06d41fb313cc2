// Package cover normalizes arbitrary input images into square 1500x1500 JPEG
// cover art.
package cover

import (
	"image"
	"strings"
)

const (
	TargetSize   = 1500
	JPEGQuality  = 95
	OutputFormat = "JPEG"
)

// Transformer is an image backend: it decodes, orients, flattens, crops,
// resizes and encodes in one pass. Progressive reports whether its JPEG
// output uses progressive scans.
type Transformer interface {
	Name() string
	Progressive() bool
	Transform(input []byte, opts Options) (Output, error)
}

// Output is what a backend produced along with what it read.
type Output struct {
	Data           []byte
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	OriginalFormat string
}

// Options toggles pipeline features. Both default to on.
type Options struct {
	CenterCrop     bool
	ExifCorrection bool
}

func DefaultOptions() Options {
	return Options{CenterCrop: true, ExifCorrection: true}
}

// CropRect is the centered square of a w x h image, in image coordinates.
// Odd differences round the offset down.
func CropRect(w, h int) image.Rectangle {
	switch {
	case w > h:
		x0 := (w - h) / 2
		return image.Rect(x0, 0, x0+h, h)
	case h > w:
		y0 := (h - w) / 2
		return image.Rect(0, y0, w, y0+w)
	default:
		return image.Rect(0, 0, w, h)
	}
}

// sourceRect picks the region that gets scaled to the target square.
func sourceRect(w, h int, opts Options) image.Rectangle {
	if !opts.CenterCrop {
		return image.Rect(0, 0, w, h)
	}
	return CropRect(w, h)
}

func formatName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(name)
}
