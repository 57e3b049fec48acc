package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// DefaultTargetResolution is the long-edge size plate crops are reduced to
// before contour extraction.
const DefaultTargetResolution = 720

// ErrEmptyRegion is returned when a crop rectangle does not overlap the image.
var ErrEmptyRegion = errors.New("crop region is empty")

// Fit scales img down so that its longer edge is at most longEdge pixels,
// preserving the aspect ratio. Images already within the limit are copied
// unscaled; Fit never enlarges.
func Fit(img image.Image, longEdge int) *image.NRGBA {
	if longEdge <= 0 {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, longEdge, longEdge, imaging.Lanczos)
}

// Crop extracts rect from img. The rectangle is clipped to the image bounds
// and the result starts at (0,0). The source is not modified.
func Crop(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	clipped := rect.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: %v outside image bounds %v", ErrEmptyRegion, rect, img.Bounds())
	}
	return imaging.Crop(img, clipped), nil
}

// CropGray extracts rect from a gray image, keeping the gray pixel format.
func CropGray(g *image.Gray, rect image.Rectangle) (*image.Gray, error) {
	clipped := rect.Intersect(g.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: %v outside image bounds %v", ErrEmptyRegion, rect, g.Bounds())
	}
	out := image.NewGray(image.Rect(0, 0, clipped.Dx(), clipped.Dy()))
	for y := 0; y < clipped.Dy(); y++ {
		off := g.PixOffset(clipped.Min.X, clipped.Min.Y+y)
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], g.Pix[off:off+clipped.Dx()])
	}
	return out, nil
}

// ResizeGray resizes g to exactly width×height with nearest-neighbour
// sampling, so binary masks stay binary.
func ResizeGray(g *image.Gray, width, height int) *image.Gray {
	return ToGray(imaging.Resize(g, width, height, imaging.NearestNeighbor))
}

// ToGray converts img to 8-bit luminance with origin (0,0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Vector flattens g row-major into values scaled to [0, 1]. This is the input
// encoding of the glyph classifier network.
func Vector(g *image.Gray) []float64 {
	b := g.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, float64(g.GrayAt(x, y).Y)/255)
		}
	}
	return out
}
