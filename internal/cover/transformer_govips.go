//go:build govips && cgo

package cover

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dunamismax/trackprep/internal/mediaerr"
)

type govipsTransformer struct{}

func (govipsTransformer) Name() string { return "govips" }

func (govipsTransformer) Progressive() bool { return true }

func (govipsTransformer) Transform(input []byte, opts Options) (Output, error) {
	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Output{}, mediaerr.Wrap(mediaerr.KindInvalidImage, err, "decode source image")
	}
	defer img.Close()

	if img.Width() <= 0 || img.Height() <= 0 {
		return Output{}, mediaerr.InvalidImage("source image has no pixels")
	}

	out := Output{
		OriginalWidth:  img.Width(),
		OriginalHeight: img.Height(),
		OriginalFormat: formatName(vips.ImageTypes[img.Format()]),
	}

	if opts.ExifCorrection {
		if err := img.AutoRotate(); err != nil {
			return Output{}, fmt.Errorf("auto rotate: %w", err)
		}
	}

	if err := toOpaqueSRGB(img); err != nil {
		return Output{}, err
	}
	if err := applyGovipsSquare(img, opts); err != nil {
		return Output{}, err
	}

	params := vips.NewJpegExportParams()
	params.Quality = JPEGQuality
	params.Interlace = true
	params.OptimizeCoding = true
	params.StripMetadata = true
	data, _, err := img.ExportJpeg(params)
	if err != nil {
		return Output{}, fmt.Errorf("encode jpeg: %w", err)
	}

	out.Data = data
	out.Width = img.Width()
	out.Height = img.Height()
	return out, nil
}

func toOpaqueSRGB(img *vips.ImageRef) error {
	if img.HasAlpha() {
		if err := img.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return fmt.Errorf("flatten alpha: %w", err)
		}
	}
	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return fmt.Errorf("convert to srgb: %w", err)
	}
	return nil
}

func applyGovipsSquare(img *vips.ImageRef, opts Options) error {
	sr := sourceRect(img.Width(), img.Height(), opts)
	if sr.Dx() != img.Width() || sr.Dy() != img.Height() {
		if err := img.ExtractArea(sr.Min.X, sr.Min.Y, sr.Dx(), sr.Dy()); err != nil {
			return fmt.Errorf("crop image: %w", err)
		}
	}

	if img.Width() == TargetSize && img.Height() == TargetSize {
		return nil
	}

	hScale := float64(TargetSize) / float64(img.Width())
	vScale := float64(TargetSize) / float64(img.Height())
	if err := img.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}
