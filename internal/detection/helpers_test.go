package detection

import (
	"image"
	"image/color"
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillRect paints r onto img with c.
func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// createPlateImage creates a dark plate with a white character-shaped block
// at each left edge in xs, all 8 wide and 20 tall starting at y=10.
func createPlateImage(width, height int, xs ...int) *image.RGBA {
	img := createTestImage(width, height, color.Black)
	for _, x := range xs {
		fillRect(img, image.Rect(x, 10, x+8, 30), color.White)
	}
	return img
}

// maskFrom converts a painted RGBA image to a binary gray mask.
func maskFrom(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0x7fff {
				mask.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return mask
}
