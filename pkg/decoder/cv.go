//go:build gocv

package decoder

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// CV decodes frames in-process through OpenCV.
type CV struct{}

func newCV(Config) (Decoder, error) {
	return &CV{}, nil
}

func (c *CV) Probe(ctx context.Context, path string) (VideoInfo, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	info := VideoInfo{
		FrameCount: int64(video.Get(gocv.VideoCaptureFrameCount)),
		FrameRate:  video.Get(gocv.VideoCaptureFPS),
		Width:      int(video.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(video.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.FrameRate > 0 && info.FrameCount > 0 {
		info.Duration = time.Duration(float64(info.FrameCount) / info.FrameRate * float64(time.Second))
	}
	return info, nil
}

func (c *CV) Extract(ctx context.Context, path string, runs []Run, size Resolution) ([]Frame, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid target resolution %s", size)
	}

	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	rate := video.Get(gocv.VideoCaptureFPS)

	mat := gocv.NewMat()
	defer mat.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	var frames []Frame
	for _, run := range runs {
		if run.Start.ByTime {
			video.Set(gocv.VideoCapturePosMsec, float64(run.Start.Offset.Milliseconds()))
		} else {
			video.Set(gocv.VideoCapturePosFrames, float64(run.Start.Frame))
		}

		for _, pos := range run.Positions(rate) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if ok := video.Read(&mat); !ok || mat.Empty() {
				// end of stream; keep what this run already produced
				break
			}
			gocv.Resize(mat, &resized, image.Pt(size.Width, size.Height), 0, 0, gocv.InterpolationArea)
			img, err := resized.ToImage()
			if err != nil {
				return nil, fmt.Errorf("convert frame %s: %w", pos, err)
			}
			frames = append(frames, Frame{Position: pos, Image: Fit(img, size)})
		}
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}
