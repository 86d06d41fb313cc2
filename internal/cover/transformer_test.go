package cover

import (
	"image"
	"testing"
)

func TestCropRect(t *testing.T) {
	cases := []struct {
		w, h int
		want image.Rectangle
	}{
		{4000, 3000, image.Rect(500, 0, 3500, 3000)},
		{3000, 1000, image.Rect(1000, 0, 2000, 1000)},
		{1000, 3001, image.Rect(0, 1000, 1000, 2000)},
		{1001, 1000, image.Rect(0, 0, 1000, 1000)},
		{800, 800, image.Rect(0, 0, 800, 800)},
	}
	for _, tc := range cases {
		if got := CropRect(tc.w, tc.h); got != tc.want {
			t.Fatalf("CropRect(%d, %d): expected %v, got %v", tc.w, tc.h, tc.want, got)
		}
	}
}

func TestSourceRect_StretchWhenCropDisabled(t *testing.T) {
	got := sourceRect(3000, 1000, Options{CenterCrop: false})
	if got != image.Rect(0, 0, 3000, 1000) {
		t.Fatalf("expected full frame, got %v", got)
	}
}

func TestOrient(t *testing.T) {
	// 3x2 image where each pixel's red channel is its index:
	//   0 1 2
	//   3 4 5
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < 6; i++ {
		src.Pix[i*4] = uint8(i)
		src.Pix[i*4+3] = 255
	}

	cases := map[int][]uint8{
		1: {0, 1, 2, 3, 4, 5},
		2: {2, 1, 0, 5, 4, 3},
		3: {5, 4, 3, 2, 1, 0},
		4: {3, 4, 5, 0, 1, 2},
		5: {0, 3, 1, 4, 2, 5},
		6: {3, 0, 4, 1, 5, 2},
		7: {5, 2, 4, 1, 3, 0},
		8: {2, 5, 1, 4, 0, 3},
	}
	for orientation, want := range cases {
		got := orient(src, orientation)
		if len(got.Pix)/4 != len(want) {
			t.Fatalf("orientation %d: unexpected pixel count %d", orientation, len(got.Pix)/4)
		}
		if orientation >= 5 && (got.Bounds().Dx() != 2 || got.Bounds().Dy() != 3) {
			t.Fatalf("orientation %d: expected 2x3, got %v", orientation, got.Bounds())
		}
		for i, v := range want {
			if got.Pix[i*4] != v {
				t.Fatalf("orientation %d: pixel %d expected %d, got %d", orientation, i, v, got.Pix[i*4])
			}
		}
	}
}

func TestReadOrientation(t *testing.T) {
	plain := encodeJPEG(t, solid(20, 10, red))
	if got := readOrientation(plain); got != 1 {
		t.Fatalf("expected default orientation 1, got %d", got)
	}

	tagged := withOrientation(t, plain, 6)
	if got := readOrientation(tagged); got != 6 {
		t.Fatalf("expected orientation 6, got %d", got)
	}
}
