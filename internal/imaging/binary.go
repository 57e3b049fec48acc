package imaging

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Default binarization parameters.
const (
	// DefaultThreshold is the fixed value threshold used when locating
	// character contours.
	DefaultThreshold = 180

	// DefaultFinalThreshold is used for the last binarization of a rectified,
	// sharpened plate, where the strokes are already crisp.
	DefaultFinalThreshold = 120

	// Bilateral filter window and sigmas applied before thresholding.
	BilateralDiameter   = 11
	BilateralSigmaColor = 17.0
	BilateralSigmaSpace = 17.0
)

// ToBinary converts img to a 0/255 mask.
//
// The image is converted to HSV and only the value channel is kept. When blur
// is set, the value channel is smoothed with a bilateral filter (diameter 11,
// sigma 17/17), which suppresses texture while preserving stroke edges. A
// pixel becomes foreground when its value exceeds either the fixed threshold
// or the Otsu threshold computed from the (possibly blurred) channel.
//
// The returned mask always has its origin at (0,0).
func ToBinary(img image.Image, threshold int, blur bool) *image.Gray {
	v := Value(img)
	if blur {
		v = Bilateral(v, BilateralDiameter, BilateralSigmaColor, BilateralSigmaSpace)
	}
	cut := threshold
	if otsu := Otsu(v); otsu < cut {
		cut = otsu
	}
	return Threshold(v, cut)
}

// Value returns the HSV value channel of img scaled to 0-255.
// Fully transparent pixels map to 0.
func Value(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			c, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				continue
			}
			_, _, val := c.Hsv()
			row[x] = uint8(math.Round(clampFloat(val, 0, 1) * 255))
		}
	}
	return out
}

// Bilateral smooths src with an edge-preserving bilateral filter.
//
// Each output pixel is the weighted mean of the pixels within a circular window
// of the given diameter, where a neighbour's weight is the product of a spatial
// Gaussian (sigmaSpace) and an intensity Gaussian (sigmaColor). Pixels beyond
// the border are replicated from the nearest edge.
func Bilateral(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	radius := diameter / 2
	if radius < 1 {
		copyGray(out, src)
		return out
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	var taps []tap
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(r2 * spaceCoeff)})
		}
	}

	var colorWeight [256]float64
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	for d := range colorWeight {
		colorWeight[d] = math.Exp(float64(d*d) * colorCoeff)
	}

	at := func(x, y int) uint8 {
		x = clamp(x, 0, w-1)
		y = clamp(y, 0, h-1)
		return src.Pix[(b.Min.Y+y-src.Rect.Min.Y)*src.Stride+(b.Min.X+x-src.Rect.Min.X)]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := at(x, y)
			var sum, norm float64
			for _, t := range taps {
				v := at(x+t.dx, y+t.dy)
				d := int(v) - int(center)
				if d < 0 {
					d = -d
				}
				wt := t.weight * colorWeight[d]
				sum += wt * float64(v)
				norm += wt
			}
			out.Pix[y*out.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return out
}

// Otsu returns the threshold that maximizes the between-class variance of the
// gray histogram. Pixels strictly above the returned value form the upper
// class. For an image with a single gray level the level itself is returned,
// so thresholding at it selects nothing.
func Otsu(g *image.Gray) int {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[g.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB      float64
		weightB   int
		best      = -1.0
		threshold int
	)
	for t, n := range hist {
		weightB += n
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			if best < 0 {
				// Only one populated level.
				return t
			}
			break
		}
		sumB += float64(t * n)
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return threshold
}

// Threshold maps pixels strictly above level to 255 and all others to 0.
func Threshold(g *image.Gray, level int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if int(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y) > level {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

func copyGray(dst, src *image.Gray) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func clampFloat(val, min, max float64) float64 {
	return math.Max(min, math.Min(max, val))
}
