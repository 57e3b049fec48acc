package imaging

import (
	"image"
	"image/color"
)

// createInMemoryImage creates an in-memory image filled with a single color.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createGray creates a gray image where value(x, y) gives each pixel.
func createGray(width, height int, value func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{value(x, y)})
		}
	}
	return img
}

// countForeground counts pixels equal to 255.
func countForeground(g *image.Gray) int {
	n := 0
	for _, p := range g.Pix {
		if p == 255 {
			n++
		}
	}
	return n
}
