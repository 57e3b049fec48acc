package detection

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
)

var (
	// ErrInsufficientContours is returned when fewer than two character
	// contours survive filtering, so no plate quadrilateral can be formed.
	ErrInsufficientContours = errors.New("fewer than two character contours")

	// ErrDegenerateQuad is returned when the plate quadrilateral has no area
	// or its perspective transform is singular.
	ErrDegenerateQuad = fmt.Errorf("%w: degenerate plate quadrilateral", ErrInsufficientContours)
)

// Quad is a plate quadrilateral in source image coordinates.
type Quad struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// Point is a sub-pixel image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PlateQuad builds the rectification quadrilateral from the leftmost (first)
// and rightmost (last) character boxes: the top-left and bottom-left corners
// come from first, the top-right and bottom-right corners from last.
func PlateQuad(first, last image.Rectangle) Quad {
	return Quad{
		TopLeft:     Point{float64(first.Min.X), float64(first.Min.Y)},
		TopRight:    Point{float64(last.Max.X), float64(last.Min.Y)},
		BottomRight: Point{float64(last.Max.X), float64(last.Max.Y)},
		BottomLeft:  Point{float64(first.Min.X), float64(first.Max.Y)},
	}
}

// Size returns the output width and height of the rectified plate: the longer
// of each pair of opposing edges.
func (q Quad) Size() (float64, float64) {
	width := math.Max(q.BottomRight.dist(q.BottomLeft), q.TopRight.dist(q.TopLeft))
	height := math.Max(q.TopRight.dist(q.BottomRight), q.TopLeft.dist(q.BottomLeft))
	return width, height
}

// Rectify warps the region spanned by the plate's characters to an
// axis-aligned rectangle using the default parameters.
func Rectify(img image.Image) (image.Image, error) {
	return NewSegmenter().Rectify(img)
}

// Warp maps quad onto the rectangle (0,0)-(width-1,height-1) and resamples img
// into a new width×height image with bilinear interpolation. Pixels that map
// outside img are black.
func Warp(img image.Image, q Quad) (*image.RGBA, error) {
	w, h := q.Size()
	outW, outH := int(w), int(h)
	if outW < 1 || outH < 1 {
		return nil, fmt.Errorf("%w: %.1fx%.1f", ErrDegenerateQuad, w, h)
	}

	dst := [4]Point{{0, 0}, {w - 1, 0}, {w - 1, h - 1}, {0, h - 1}}
	src := [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}

	// Solve for the inverse mapping directly: output pixel -> source position.
	m, err := homography(dst, src)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	source := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(source, source.Bounds(), img, b.Min, draw.Src)

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			fx, fy := float64(x), float64(y)
			den := m[6]*fx + m[7]*fy + 1
			if den == 0 {
				continue
			}
			sx := (m[0]*fx + m[1]*fy + m[2]) / den
			sy := (m[3]*fx + m[4]*fy + m[5]) / den
			bilinear(source, out, x, y, sx, sy)
		}
	}
	return out, nil
}

// homography returns the 8 coefficients of the projective transform mapping
// each from[i] to to[i], with the ninth coefficient fixed at 1.
func homography(from, to [4]Point) ([8]float64, error) {
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := from[i].X, from[i].Y
		u, v := to[i].X, to[i].Y
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * u, -y * u, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * v, -y * v, v}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-10 {
			return [8]float64{}, ErrDegenerateQuad
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c < 9; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var m [8]float64
	for i := 0; i < 8; i++ {
		m[i] = a[i][8] / a[i][i]
	}
	return m, nil
}

// bilinear samples src at (sx, sy) and writes the result to dst at (x, y).
// Neighbours outside src contribute black.
func bilinear(src, dst *image.RGBA, x, y int, sx, sy float64) {
	x0 := int(math.Floor(sx))
	y0 := int(math.Floor(sy))
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	var acc [4]float64
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	offsets := [4]image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

	sb := src.Bounds()
	for k, off := range offsets {
		p := image.Pt(x0+off.X, y0+off.Y)
		if weights[k] == 0 || !p.In(sb) {
			continue
		}
		i := src.PixOffset(p.X, p.Y)
		for c := 0; c < 4; c++ {
			acc[c] += weights[k] * float64(src.Pix[i+c])
		}
	}

	j := dst.PixOffset(x, y)
	for c := 0; c < 4; c++ {
		dst.Pix[j+c] = uint8(math.Round(math.Min(255, math.Max(0, acc[c]))))
	}
}
