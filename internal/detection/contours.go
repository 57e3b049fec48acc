package detection

import (
	"image"
	"sort"
)

// Character aspect ratio bounds (height / width). A glyph must be taller than
// it is wide, but not a thin vertical stroke such as a plate border.
const (
	minCharRatio = 1.0
	maxCharRatio = 3.5
)

// Contour is the traced outer boundary of one connected foreground region.
type Contour struct {
	// Points is the clockwise boundary with collinear runs compressed to their
	// end points.
	Points []image.Point `json:"points"`

	// Bounds is the bounding box of the region.
	Bounds image.Rectangle `json:"bounds"`

	// Area is the number of foreground pixels in the region.
	Area int `json:"area"`
}

// Ratio returns the bounding box height divided by its width.
func (c Contour) Ratio() float64 {
	if c.Bounds.Dx() == 0 {
		return 0
	}
	return float64(c.Bounds.Dy()) / float64(c.Bounds.Dx())
}

// ExtractContours binarizes img with the default threshold and bilateral blur
// and returns its outer contours, sorted by left edge. When filter is set,
// only character-shaped contours are kept.
func ExtractContours(img image.Image, filter bool) []Contour {
	return NewSegmenter().Contours(img, filter)
}

// FindContours traces the outer boundary of every 8-connected foreground
// (non-zero) region of mask.
//
// Regions that sit entirely inside a hole of another region are not reported.
// The result is sorted ascending by Bounds.Min.X with a stable sort, so regions
// sharing a left edge keep their top-to-bottom discovery order.
//
// # Filtering
//
// When filter is set, a noise threshold is computed as the mean bounding box
// height of all raw contours divided by the mask height. A contour is kept
// when its height/width ratio lies in (1, 3.5] and its own normalized height
// is at least that mean.
func FindContours(mask *image.Gray, filter bool) []Contour {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fg[y*w+x] = mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0
		}
	}

	contours := traceComponents(fg, w, h)
	if !b.Min.Eq(image.Point{}) {
		for i := range contours {
			contours[i].Bounds = contours[i].Bounds.Add(b.Min)
			for j := range contours[i].Points {
				contours[i].Points[j] = contours[i].Points[j].Add(b.Min)
			}
		}
	}

	if filter {
		contours = filterCharacters(contours, h)
	}
	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Bounds.Min.X < contours[j].Bounds.Min.X
	})
	return contours
}

func filterCharacters(contours []Contour, imageHeight int) []Contour {
	if len(contours) == 0 {
		return contours
	}

	var sum float64
	for _, c := range contours {
		sum += float64(c.Bounds.Dy())
	}
	meanHeight := sum / float64(len(contours)) / float64(imageHeight)

	kept := make([]Contour, 0, len(contours))
	for _, c := range contours {
		ratio := c.Ratio()
		if ratio <= minCharRatio || ratio > maxCharRatio {
			continue
		}
		if float64(c.Bounds.Dy())/float64(imageHeight) < meanHeight {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// traceComponents labels 8-connected components in raster order and traces the
// boundary of every component that touches the exterior background.
func traceComponents(fg []bool, w, h int) []Contour {
	labels := make([]int32, w*h)
	outside := exterior(fg, w, h)

	var contours []Contour
	var next int32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !fg[i] || labels[i] != 0 {
				continue
			}
			next++
			bounds, area, external := fill(fg, labels, outside, next, x, y, w, h)
			if !external {
				continue
			}
			points := trace(labels, next, image.Pt(x, y), w, h)
			contours = append(contours, Contour{
				Points: compress(points),
				Bounds: bounds,
				Area:   area,
			})
		}
	}
	return contours
}

// exterior marks the background pixels 4-connected to the image border.
// Background not reached is a hole inside some region.
func exterior(fg []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	var stack []int
	push := func(x, y int) {
		if x < 0 || x >= w || y < 0 || y >= h {
			return
		}
		i := y*w + x
		if fg[i] || outside[i] {
			return
		}
		outside[i] = true
		stack = append(stack, i)
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}
	return outside
}

// fill performs an iterative 8-connected flood fill from (startX, startY),
// labelling every reached pixel with id.
//
// It reports the region's bounds and pixel count, and whether the region is
// external: on the image border or 4-adjacent to exterior background.
func fill(fg []bool, labels []int32, outside []bool, id int32, startX, startY, w, h int) (image.Rectangle, int, bool) {
	bounds := image.Rect(startX, startY, startX+1, startY+1)
	area := 0
	external := false

	stack := []image.Point{{X: startX, Y: startY}}
	labels[startY*w+startX] = id

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		area++

		bounds = bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
		if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
			external = true
		} else if !external {
			external = outside[p.Y*w+p.X-1] || outside[p.Y*w+p.X+1] ||
				outside[(p.Y-1)*w+p.X] || outside[(p.Y+1)*w+p.X]
		}

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				x, y := p.X+dx, p.Y+dy
				if x < 0 || x >= w || y < 0 || y >= h {
					continue
				}
				i := y*w + x
				if !fg[i] || labels[i] != 0 {
					continue
				}
				labels[i] = id
				stack = append(stack, image.Point{X: x, Y: y})
			}
		}
	}
	return bounds, area, external
}

// moore lists the 8 neighbour offsets clockwise, starting west.
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func direction(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// trace walks the boundary of component id clockwise with Moore-neighbour
// tracing. start must be the component's first pixel in raster order, so its
// west, north-west, north and north-east neighbours are outside the component.
//
// Tracing ends when the walk re-enters the second boundary pixel from the same
// direction as the first time, which closes the loop exactly once even when
// the start pixel is visited more than once.
func trace(labels []int32, id int32, start image.Point, w, h int) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.X < w && p.Y >= 0 && p.Y < h && labels[p.Y*w+p.X] == id
	}
	step := func(p image.Point, back int) (image.Point, int, bool) {
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			q := p.Add(moore[d])
			if inside(q) {
				// The last neighbour checked was background; it becomes the
				// backtrack pixel seen from q.
				prev := p.Add(moore[(d+7)%8])
				return q, direction(prev.Sub(q)), true
			}
		}
		return p, back, false
	}

	second, back, ok := step(start, 0)
	if !ok {
		return []image.Point{start}
	}
	secondBack := back

	points := []image.Point{start}
	p := second
	for n := 0; n < 4*w*h+8; n++ {
		points = append(points, p)
		p, back, _ = step(p, back)
		if p == second && back == secondBack {
			break
		}
	}
	if len(points) > 1 && points[len(points)-1] == start {
		points = points[:len(points)-1]
	}
	return points
}

// compress drops boundary points that continue in the same direction as the
// previous step, leaving only the corners of straight runs.
func compress(points []image.Point) []image.Point {
	n := len(points)
	if n < 3 {
		return points
	}
	out := make([]image.Point, 0, n)
	for i, p := range points {
		prev := points[(i-1+n)%n]
		next := points[(i+1)%n]
		if p.Sub(prev) == next.Sub(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return points[:1]
	}
	return out
}
