package cover

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

type stdlibTransformer struct{}

func (stdlibTransformer) Name() string { return "stdlib" }

// Progressive is false: image/jpeg only writes baseline scans.
func (stdlibTransformer) Progressive() bool { return false }

func (stdlibTransformer) Transform(input []byte, opts Options) (Output, error) {
	src, srcFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return Output{}, mediaerr.Wrap(mediaerr.KindInvalidImage, err, "decode source image")
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return Output{}, mediaerr.InvalidImage("source image has no pixels")
	}

	out := Output{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		OriginalFormat: formatName(srcFormat),
	}

	rgb := flatten(src)
	if opts.ExifCorrection {
		rgb = orient(rgb, readOrientation(input))
	}

	w, h := rgb.Bounds().Dx(), rgb.Bounds().Dy()
	square := resizeSquare(rgb, sourceRect(w, h, opts), TargetSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, square, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Output{}, fmt.Errorf("encode jpeg: %w", err)
	}

	out.Data = buf.Bytes()
	out.Width = TargetSize
	out.Height = TargetSize
	return out, nil
}

// flatten composites src over white into an opaque RGBA anchored at 0,0.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// resizeSquare scales the sr region of src into a size x size image. A region
// that already has the target size is copied as is.
func resizeSquare(src *image.RGBA, sr image.Rectangle, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if sr.Dx() == size && sr.Dy() == size {
		draw.Draw(dst, dst.Bounds(), src, sr.Min, draw.Src)
		return dst
	}
	lanczos3.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}
