package media

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"time"

	"github.com/your-org/framegen/pkg/decoder"
)

// DefaultFrameDelay is used when PreviewOptions.Delay is unset.
const DefaultFrameDelay = 100 * time.Millisecond

type PreviewOptions struct {
	// Delay is the display time of each frame, rounded to GIF centiseconds.
	Delay time.Duration
}

// AssemblePreview encodes frames as a GIF that loops forever. Frame 0 is
// written whole; each later frame only carries the rectangle that changed.
func AssemblePreview(w io.Writer, frames []decoder.Frame, opts PreviewOptions) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames to assemble", ErrEncode)
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultFrameDelay
	}
	centis := int(delay / (10 * time.Millisecond))
	if centis < 1 {
		centis = 1
	}

	size := frames[0].Image.Bounds().Size()
	anim := &gif.GIF{
		LoopCount: 0,
		Config: image.Config{
			ColorModel: color.Palette(palette.Plan9),
			Width:      size.X,
			Height:     size.Y,
		},
	}

	var prev *image.Paletted
	for i, f := range frames {
		if got := f.Image.Bounds().Size(); got != size {
			return fmt.Errorf("%w: frame %d is %dx%d, want %dx%d", ErrEncode, i, got.X, got.Y, size.X, size.Y)
		}

		cur := quantize(f.Image)
		out := cur
		if prev != nil {
			out = cur.SubImage(changedBounds(prev, cur)).(*image.Paletted)
		}

		anim.Image = append(anim.Image, out)
		anim.Delay = append(anim.Delay, centis)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
		prev = cur
	}

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

// changedBounds is the smallest rectangle covering every pixel that differs
// between a and b. Identical frames get a 1x1 patch so the delay survives.
func changedBounds(a, b *image.Paletted) image.Rectangle {
	r := image.Rectangle{}
	bounds := b.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		ra := a.Pix[a.PixOffset(bounds.Min.X, y):a.PixOffset(bounds.Max.X, y)]
		rb := b.Pix[b.PixOffset(bounds.Min.X, y):b.PixOffset(bounds.Max.X, y)]
		for x := range rb {
			if ra[x] != rb[x] {
				r = r.Union(image.Rect(bounds.Min.X+x, y, bounds.Min.X+x+1, y+1))
			}
		}
	}
	if r.Empty() {
		return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+1, bounds.Min.Y+1)
	}
	return r
}
