// Package mediatest is a test-helper package with in-memory stand-ins for
// the blob store, the frame decoder and the event publisher.
package mediatest

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/your-org/framegen/pkg/decoder"
	"github.com/your-org/framegen/pkg/storage/objectstore"
)

// Object is a stored blob and the options it was written with.
type Object struct {
	Data []byte
	Opts objectstore.PutOptions
}

// Store is an objectstore.Client backed by a map.
type Store struct {
	mu       sync.Mutex
	objects  map[string]Object
	FetchErr error
	StoreErr error
}

func NewStore() *Store {
	return &Store{objects: map[string]Object{}}
}

// Seed places data at bucket/key without recording options.
func (s *Store) Seed(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = Object{Data: data}
}

func (s *Store) Get(bucket, key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	return obj, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Store) Fetch(ctx context.Context, bucket, key, dest string) error {
	if s.FetchErr != nil {
		return s.FetchErr
	}
	obj, ok := s.Get(bucket, key)
	if !ok {
		return fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return os.WriteFile(dest, obj.Data, 0o644)
}

func (s *Store) Store(ctx context.Context, src, bucket, key string, opts objectstore.PutOptions) error {
	if s.StoreErr != nil {
		return s.StoreErr
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = Object{Data: data, Opts: opts}
	return nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts objectstore.PutOptions) error {
	if s.StoreErr != nil {
		return s.StoreErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("short body for %s/%s: read %d of %d bytes", bucket, key, len(data), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = Object{Data: data, Opts: opts}
	return nil
}

func (s *Store) EnsureBuckets(ctx context.Context, buckets ...string) error { return nil }

func (s *Store) Close() error { return nil }

// Decoder synthesizes frames for a video of Info.FrameCount frames. Frames
// come out at the native Info size and are fitted to the request.
type Decoder struct {
	Info       decoder.VideoInfo
	ProbeErr   error
	ExtractErr error
	// Runs records every Extract request.
	Runs [][]decoder.Run
}

func (d *Decoder) Probe(ctx context.Context, path string) (decoder.VideoInfo, error) {
	if d.ProbeErr != nil {
		return decoder.VideoInfo{}, d.ProbeErr
	}
	if _, err := os.Stat(path); err != nil {
		return decoder.VideoInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	return d.Info, nil
}

func (d *Decoder) Extract(ctx context.Context, path string, runs []decoder.Run, size decoder.Resolution) ([]decoder.Frame, error) {
	d.Runs = append(d.Runs, runs)
	if d.ExtractErr != nil {
		return nil, d.ExtractErr
	}

	w, h := d.Info.Width, d.Info.Height
	if w == 0 || h == 0 {
		w, h = 640, 360
	}

	var frames []decoder.Frame
	for _, run := range runs {
		for _, pos := range run.Positions(d.Info.FrameRate) {
			idx := pos.Frame
			if pos.ByTime {
				if d.Info.FrameRate <= 0 {
					return nil, fmt.Errorf("time seek needs a frame rate")
				}
				idx = int64(pos.Offset.Seconds()*d.Info.FrameRate + 1e-9)
				if pos.Offset > d.Info.Duration {
					break
				}
			}
			if idx >= d.Info.FrameCount {
				break
			}
			img := imaging.New(w, h, color.NRGBA{R: uint8(idx), G: uint8(idx * 3), B: 90, A: 255})
			frames = append(frames, decoder.Frame{Position: pos, Image: decoder.Fit(img, size)})
		}
	}
	if len(frames) == 0 {
		return nil, decoder.ErrNoFrames
	}
	return frames, nil
}

// Event is one recorded publish.
type Event struct {
	Key   string
	Type  string
	Event any
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func (p *Publisher) PublishEvent(ctx context.Context, key, eventType string, event any) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Event{Key: key, Type: eventType, Event: event})
	return nil
}

// Video returns probe data for a clip of the given length at fps.
func Video(length time.Duration, fps float64) decoder.VideoInfo {
	return decoder.VideoInfo{
		Duration:   length,
		FrameRate:  fps,
		FrameCount: int64(length.Seconds() * fps),
		Width:      1280,
		Height:     720,
	}
}
