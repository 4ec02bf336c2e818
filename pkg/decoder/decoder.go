package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"
)

// ErrNoFrames is returned when a decode produced zero frames.
var ErrNoFrames = errors.New("no frames decoded")

// Resolution is a target raster size in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Position addresses a single frame, either by index or by time offset.
type Position struct {
	Frame  int64
	Offset time.Duration
	ByTime bool
}

// AtFrame returns a frame-index position.
func AtFrame(index int64) Position {
	return Position{Frame: index}
}

// AtTime returns a time-offset position.
func AtTime(offset time.Duration) Position {
	return Position{Offset: offset, ByTime: true}
}

func (p Position) String() string {
	if p.ByTime {
		return fmt.Sprintf("t=%s", p.Offset)
	}
	return fmt.Sprintf("n=%d", p.Frame)
}

// Run is a contiguous span of Count frames beginning at Start.
type Run struct {
	Start Position
	Count int
}

// Positions expands the run into ordered positions. Time-based runs advance
// by one frame interval at the given rate, or by zero when the rate is unknown.
func (r Run) Positions(frameRate float64) []Position {
	out := make([]Position, 0, r.Count)
	for i := 0; i < r.Count; i++ {
		if !r.Start.ByTime {
			out = append(out, AtFrame(r.Start.Frame+int64(i)))
			continue
		}
		var step time.Duration
		if frameRate > 0 {
			step = time.Duration(math.Round(float64(i) / frameRate * 1e6)) * time.Microsecond
		}
		out = append(out, AtTime(r.Start.Offset+step))
	}
	return out
}

// VideoInfo is what probing a source file reports.
type VideoInfo struct {
	Duration   time.Duration
	FrameCount int64
	FrameRate  float64
	Width      int
	Height     int
}

// Frame is one decoded raster.
type Frame struct {
	Position Position
	Image    image.Image
}

// Decoder extracts frames from a local video file.
type Decoder interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
	// Extract realizes runs as rasters of exactly size, in request order.
	// Runs that hit end-of-stream return what was decoded; zero frames
	// overall yields ErrNoFrames.
	Extract(ctx context.Context, path string, runs []Run, size Resolution) ([]Frame, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	FFmpegPath  string
	FFprobePath string
	// ScratchDir receives intermediate frame files; empty uses os.TempDir.
	ScratchDir string
	Timeout    time.Duration
}

// New builds the decoder named by cfg.Backend.
func New(cfg Config) (Decoder, error) {
	switch cfg.Backend {
	case "", "ffmpeg":
		return NewFFmpeg(FFmpegConfig{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			ScratchDir:  cfg.ScratchDir,
			Timeout:     cfg.Timeout,
		}), nil
	case "gocv":
		return newCV(cfg)
	default:
		return nil, fmt.Errorf("unsupported decoder backend: %s", cfg.Backend)
	}
}
