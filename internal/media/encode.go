package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/your-org/framegen/pkg/decoder"
)

// EncodeThumbnail writes frame as a PNG at exactly size.
func EncodeThumbnail(w io.Writer, frame decoder.Frame, size decoder.Resolution) error {
	if frame.Image == nil {
		return fmt.Errorf("%w: empty frame", ErrEncode)
	}
	if err := imaging.Encode(w, decoder.Fit(frame.Image, size), imaging.PNG); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// EncodeSheet returns each frame as a base64 PNG.
func EncodeSheet(frames []decoder.Frame, size decoder.Resolution) ([]string, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to encode", ErrEncode)
	}
	out := make([]string, 0, len(frames))
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Reset()
		if err := EncodeThumbnail(&buf, f, size); err != nil {
			return nil, err
		}
		out = append(out, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out, nil
}

// WriteFile runs encode into path and confirms a non-empty file exists
// afterwards, returning its size.
func WriteFile(path string, encode func(io.Writer) error) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrEncode, path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(path)
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: close %s: %v", ErrEncode, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: output %s not produced: %v", ErrEncode, path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: output %s is empty", ErrEncode, path)
	}
	return info.Size(), nil
}
