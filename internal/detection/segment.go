package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/alpr-mcp/internal/imaging"
)

// Default glyph canvas parameters.
const (
	DefaultGlyphSize   = 28
	DefaultPadding     = 6
	DefaultCloseRadius = 1.0
)

// Glyph is one segmented character.
type Glyph struct {
	// Bounds is the character's bounding box in rectified plate coordinates,
	// relative to the plate's top-left corner.
	Bounds image.Rectangle `json:"bounds"`

	// Canvas is the normalized binary glyph, always Size×Size.
	Canvas *image.Gray `json:"-"`
}

// Segmenter holds the tunables of the plate-to-glyph pipeline. The zero value
// is not usable; start from NewSegmenter.
type Segmenter struct {
	// Threshold is the fixed value threshold for contour extraction.
	Threshold int

	// FinalThreshold binarizes the sharpened, rectified plate.
	FinalThreshold int

	// GlyphSize is the side of the square glyph canvas.
	GlyphSize int

	// Padding is subtracted from GlyphSize to get the longest glyph side.
	Padding int

	// CloseRadius is the structuring radius of the morphological closing.
	CloseRadius float64
}

// NewSegmenter returns a Segmenter with the default parameters.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		Threshold:      imaging.DefaultThreshold,
		FinalThreshold: imaging.DefaultFinalThreshold,
		GlyphSize:      DefaultGlyphSize,
		Padding:        DefaultPadding,
		CloseRadius:    DefaultCloseRadius,
	}
}

// Validate reports unusable parameter combinations.
func (s *Segmenter) Validate() error {
	if s.Threshold < 0 || s.Threshold > 255 {
		return fmt.Errorf("threshold %d outside 0-255", s.Threshold)
	}
	if s.FinalThreshold < 0 || s.FinalThreshold > 255 {
		return fmt.Errorf("final threshold %d outside 0-255", s.FinalThreshold)
	}
	if s.GlyphSize <= 0 {
		return fmt.Errorf("glyph size must be positive, got %d", s.GlyphSize)
	}
	if s.Padding < 0 || s.Padding >= s.GlyphSize {
		return fmt.Errorf("padding %d must be in [0, %d)", s.Padding, s.GlyphSize)
	}
	return nil
}

// Contours binarizes img with the segmenter's threshold and bilateral blur and
// returns its outer contours sorted by left edge.
func (s *Segmenter) Contours(img image.Image, filter bool) []Contour {
	return FindContours(imaging.ToBinary(img, s.Threshold, true), filter)
}

// Rectify locates the character contours of plate and warps the quadrilateral
// they span to an axis-aligned image.
//
// The quadrilateral is built from the first contour (smallest left edge) and
// the last one (largest left edge). Fewer than two filtered contours yield
// ErrInsufficientContours.
func (s *Segmenter) Rectify(plate image.Image) (image.Image, error) {
	contours := s.Contours(plate, true)
	if len(contours) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrInsufficientContours, len(contours))
	}

	first := contours[0]
	last := contours[0]
	for _, c := range contours[1:] {
		if c.Bounds.Min.X > last.Bounds.Min.X {
			last = c
		}
	}

	return Warp(plate, PlateQuad(first.Bounds, last.Bounds))
}

// Binary returns the mask characters are cropped from: rectified is
// sharpened, binarized with FinalThreshold and no blur, then closed.
func (s *Segmenter) Binary(rectified image.Image) *image.Gray {
	sharpened := imaging.Sharpen(rectified)
	mask := imaging.ToBinary(sharpened, s.FinalThreshold, false)
	return imaging.Close(mask, s.CloseRadius)
}

// Segment cuts a rectified plate into normalized glyphs in reading order.
//
// Character boxes come from the filtered contours of the unsharpened
// rectified image; each box is cropped from the closed final mask and
// normalized. A plate without character contours yields no glyphs.
func (s *Segmenter) Segment(rectified image.Image) []Glyph {
	mask := s.Binary(rectified)

	var glyphs []Glyph
	for _, c := range s.Contours(rectified, true) {
		box := c.Bounds
		region, err := imaging.CropGray(mask, box)
		if err != nil {
			continue
		}
		glyphs = append(glyphs, Glyph{
			Bounds: box,
			Canvas: s.Normalize(region),
		})
	}
	return glyphs
}

// Extract runs Rectify followed by Segment.
func (s *Segmenter) Extract(plate image.Image) ([]Glyph, image.Image, error) {
	rectified, err := s.Rectify(plate)
	if err != nil {
		return nil, nil, err
	}
	return s.Segment(rectified), rectified, nil
}

// Normalize scales region into a GlyphSize square canvas.
func (s *Segmenter) Normalize(region *image.Gray) *image.Gray {
	return Normalize(region, s.GlyphSize, s.Padding)
}

// Segment cuts a rectified plate into glyphs using the default parameters.
func Segment(rectified image.Image) []Glyph {
	return NewSegmenter().Segment(rectified)
}

// Normalize scales region so its longer side is size−padding pixels, keeping
// the aspect ratio, and centers it on a zero-filled size×size canvas.
//
// Scaled dimensions are rounded to the nearest pixel (at least 1). The
// offset on each axis is round(size/2 − scaled/2). The returned canvas is
// always exactly size×size; an empty region yields a blank canvas.
func Normalize(region *image.Gray, size, padding int) *image.Gray {
	canvas := image.NewGray(image.Rect(0, 0, size, size))

	b := region.Bounds()
	w, h := b.Dx(), b.Dy()
	inner := size - padding
	if w == 0 || h == 0 || inner <= 0 {
		return canvas
	}

	var newW, newH int
	if h >= w {
		newH = inner
		newW = roundDim(float64(w) * float64(inner) / float64(h))
	} else {
		newW = inner
		newH = roundDim(float64(h) * float64(inner) / float64(w))
	}

	scaled := imaging.ResizeGray(region, newW, newH)

	offX := int(math.Round(float64(size)/2 - float64(newW)/2))
	offY := int(math.Round(float64(size)/2 - float64(newH)/2))

	for y := 0; y < newH; y++ {
		cy := offY + y
		if cy < 0 || cy >= size {
			continue
		}
		for x := 0; x < newW; x++ {
			cx := offX + x
			if cx < 0 || cx >= size {
				continue
			}
			canvas.Pix[cy*canvas.Stride+cx] = scaled.Pix[y*scaled.Stride+x]
		}
	}
	return canvas
}

func roundDim(v float64) int {
	d := int(math.Round(v))
	if d < 1 {
		return 1
	}
	return d
}
