package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WEBP format decoder
)

// ErrMalformedImage is returned when input bytes cannot be decoded as an image.
var ErrMalformedImage = errors.New("malformed image")

// Info describes a decoded image.
type Info struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name reported by image.Decode, e.g. "png" or "jpeg".
	Format string `json:"format"`
}

// Load reads and decodes the image at path.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WEBP. The file is read
// on every call; nothing is cached.
//
// # Errors
//
//   - Returns the os error if the file cannot be read
//   - Returns ErrMalformedImage if the contents are not a decodable image
func Load(path string) (image.Image, *Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(data)
}

// Decode decodes an in-memory image.
func Decode(data []byte) (image.Image, *Info, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedImage)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil, fmt.Errorf("%w: zero-sized image", ErrMalformedImage)
	}
	return img, &Info{Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}
