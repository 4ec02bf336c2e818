package decoder

import (
	"image"

	"github.com/disintegration/imaging"
)

// Fit returns img at exactly size. Images already at size are returned as is.
func Fit(img image.Image, size Resolution) image.Image {
	b := img.Bounds()
	if b.Dx() == size.Width && b.Dy() == size.Height {
		return img
	}
	return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos)
}
