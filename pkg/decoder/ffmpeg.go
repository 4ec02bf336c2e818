package decoder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
	// ScratchDir holds numbered frame files while a run is decoded.
	ScratchDir string
	// Timeout bounds each subprocess; zero leaves it unbounded.
	Timeout time.Duration
	Runner  Runner
}

// FFmpeg decodes frames by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpeg     string
	ffprobe    string
	scratchDir string
	timeout    time.Duration
	run        Runner
}

func NewFFmpeg(cfg FFmpegConfig) *FFmpeg {
	f := &FFmpeg{
		ffmpeg:     cfg.FFmpegPath,
		ffprobe:    cfg.FFprobePath,
		scratchDir: cfg.ScratchDir,
		timeout:    cfg.Timeout,
		run:        cfg.Runner,
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	if f.run == nil {
		f.run = execRunner
	}
	return f
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads duration, frame count and geometry of the first video stream.
func (f *FFmpeg) Probe(ctx context.Context, path string) (VideoInfo, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames,r_frame_rate,avg_frame_rate,duration:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe error: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return parseProbe(out)
}

func parseProbe(raw []byte) (VideoInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(raw, &p); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream found")
	}
	s := p.Streams[0]

	info := VideoInfo{Width: s.Width, Height: s.Height}

	secs, ok := parseFloat(p.Format.Duration)
	if !ok {
		secs, _ = parseFloat(s.Duration)
	}
	info.Duration = time.Duration(math.Round(secs*1e6)) * time.Microsecond

	info.FrameRate = parseRate(s.AvgFrameRate)
	if info.FrameRate == 0 {
		info.FrameRate = parseRate(s.RFrameRate)
	}

	if n, err := strconv.ParseInt(s.NbFrames, 10, 64); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.FrameRate > 0 && secs > 0 {
		info.FrameCount = int64(math.Round(secs * info.FrameRate))
	}
	return info, nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := parseFloat(num)
		return v
	}
	n, ok1 := parseFloat(num)
	d, ok2 := parseFloat(den)
	if !ok1 || !ok2 || d == 0 {
		return 0
	}
	return n / d
}

// Extract runs ffmpeg once per run, writing numbered PNGs to a private
// directory, then decodes them in order.
func (f *FFmpeg) Extract(ctx context.Context, path string, runs []Run, size Resolution) ([]Frame, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid target resolution %s", size)
	}

	if f.scratchDir != "" {
		if err := os.MkdirAll(f.scratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(f.scratchDir, "frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var frames []Frame
	for i, run := range runs {
		if run.Count <= 0 {
			continue
		}
		pattern := filepath.Join(dir, fmt.Sprintf("run%03d_%%05d.png", i))
		if err := f.extractRun(ctx, path, run, size, pattern); err != nil {
			return nil, err
		}

		paths, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("run%03d_*.png", i)))
		if err != nil {
			return nil, fmt.Errorf("glob frames: %w", err)
		}
		sort.Strings(paths)
		if len(paths) > run.Count {
			paths = paths[:run.Count]
		}

		// Time runs are spaced by the source rate, which Extract does not know;
		// the reported offsets are the seek point for every frame of the run.
		positions := run.Positions(0)
		for j, p := range paths {
			img, err := imaging.Open(p)
			if err != nil {
				return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(p), err)
			}
			frames = append(frames, Frame{Position: positions[j], Image: Fit(img, size)})
		}
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

func (f *FFmpeg) extractRun(ctx context.Context, path string, run Run, size Resolution, pattern string) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	args := runArgs(path, run, size, pattern)
	out, err := f.run(ctx, f.ffmpeg, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runArgs(path string, run Run, size Resolution, pattern string) []string {
	scale := fmt.Sprintf("scale=%d:%d", size.Width, size.Height)
	args := []string{"-v", "error", "-y"}
	if run.Start.ByTime {
		args = append(args,
			"-ss", formatSeconds(run.Start.Offset),
			"-i", path,
			"-vf", scale,
		)
	} else {
		args = append(args,
			"-i", path,
			"-vf", fmt.Sprintf("select=gte(n\\,%d),%s", run.Start.Frame, scale),
			"-fps_mode", "passthrough",
		)
	}
	return append(args, "-frames:v", strconv.Itoa(run.Count), pattern)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func (f *FFmpeg) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}
