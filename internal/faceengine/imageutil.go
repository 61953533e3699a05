package faceengine

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// resizeForInference scales img down so its longest side is at most
// maxSide, matching the Face Engine's pre-detection resize (spec §4.C).
// Images already within bounds, or maxSide <= 0, are returned unchanged.
func resizeForInference(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(longest)
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// cropGray returns the sub-region of gray bounded by the pixel rect
// [x,y,x+w,y+h), clamped to gray's bounds. Degenerate rects return nil.
func cropGray(gray *image.Gray, x, y, w, h int) *image.Gray {
	b := gray.Bounds()
	x1, y1 := x, y
	x2, y2 := x+w, y+h
	if x1 < b.Min.X {
		x1 = b.Min.X
	}
	if y1 < b.Min.Y {
		y1 = b.Min.Y
	}
	if x2 > b.Max.X {
		x2 = b.Max.X
	}
	if y2 > b.Max.Y {
		y2 = b.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return nil
	}
	out := image.NewGray(image.Rect(0, 0, x2-x1, y2-y1))
	for yy := y1; yy < y2; yy++ {
		for xx := x1; xx < x2; xx++ {
			out.SetGray(xx-x1, yy-y1, gray.GrayAt(xx, yy))
		}
	}
	return out
}

// laplacianVariance computes the variance of the discrete Laplacian of
// gray, the sharpness signal used throughout the Face Engine (spec
// §4.C: "variance of the Laplacian of the greyscale crop").
func laplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	values := make([]float64, 0, w*h)
	at := func(x, y int) float64 {
		return float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := -4*at(x, y) + at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)
			values = append(values, lap)
		}
	}
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(values))
}

// downsampleFlatten resizes gray to w x h with approximate bilinear
// interpolation (draw.ApproxBiLinear) and
// returns its pixel values in row-major order as float32.
func downsampleFlatten(gray *image.Gray, w, h int) []float32 {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Over, nil)
	out := make([]float32, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out = append(out, float32(dst.GrayAt(x, y).Y))
		}
	}
	return out
}
