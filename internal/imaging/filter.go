package imaging

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
)

// Sharpen applies a 3×3 sharpening kernel (centre 9, neighbours −1) to img.
// The kernel sums to 1, so flat regions are unchanged; results are clamped to
// the 0-255 range per channel. Alpha is preserved.
func Sharpen(img image.Image) *image.RGBA {
	k := convolution.NewKernel(3, 3)
	for i := range k.Matrix {
		k.Matrix[i] = -1
	}
	k.Matrix[4] = 9
	return convolution.Convolve(originRGBA(img), k, &convolution.Options{Wrap: false, KeepAlpha: true})
}

// Close performs a morphological closing (dilation followed by erosion) on a
// binary mask, bridging gaps narrower than the structuring radius. The result
// is re-binarized at 128.
func Close(mask *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		out := image.NewGray(image.Rect(0, 0, mask.Bounds().Dx(), mask.Bounds().Dy()))
		copyGray(out, mask)
		return out
	}
	dilated := effect.Dilate(mask, radius)
	closed := effect.Erode(dilated, radius)
	return Threshold(ToGray(closed), 127)
}

// originRGBA copies img into an RGBA whose bounds start at (0,0).
func originRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
