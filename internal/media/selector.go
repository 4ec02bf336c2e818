package media

import (
	"fmt"
	"time"

	"github.com/your-org/framegen/pkg/decoder"
)

// StartPolicy decides where a preview run begins.
type StartPolicy string

const (
	StartFrameMidpoint    StartPolicy = "frame-midpoint"
	StartDurationMidpoint StartPolicy = "duration-midpoint"
	StartFixed            StartPolicy = "fixed"
)

// ParseStartPolicy validates a policy name; empty selects frame-midpoint.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch p := StartPolicy(s); p {
	case "":
		return StartFrameMidpoint, nil
	case StartFrameMidpoint, StartDurationMidpoint, StartFixed:
		return p, nil
	default:
		return "", fmt.Errorf("unknown preview start policy %q", s)
	}
}

// Selector chooses the frame positions each generator extracts.
type Selector struct {
	Policy StartPolicy
	// Frames is the preview length K.
	Frames int
	// Offset is the start point used by StartFixed.
	Offset time.Duration
}

// Preview returns the single contiguous run a preview is sampled from.
func (s Selector) Preview(info decoder.VideoInfo) ([]decoder.Run, error) {
	if s.Frames <= 0 {
		return nil, fmt.Errorf("%w: preview length must be positive, got %d", ErrInvalidRequest, s.Frames)
	}

	switch s.Policy {
	case StartFrameMidpoint, "":
		if info.FrameCount <= 0 {
			return []decoder.Run{{Start: decoder.AtFrame(0), Count: s.Frames}}, nil
		}
		start := info.FrameCount / 2
		count := s.Frames
		if remaining := info.FrameCount - start; remaining < int64(count) {
			count = int(remaining)
		}
		return []decoder.Run{{Start: decoder.AtFrame(start), Count: count}}, nil
	case StartDurationMidpoint:
		return []decoder.Run{{Start: decoder.AtTime(info.Duration / 2), Count: s.Frames}}, nil
	case StartFixed:
		if info.Duration > 0 && s.Offset > info.Duration {
			return nil, fmt.Errorf("%w: start offset %s beyond duration %s", ErrDecode, s.Offset, info.Duration)
		}
		return []decoder.Run{{Start: decoder.AtTime(s.Offset), Count: s.Frames}}, nil
	default:
		return nil, fmt.Errorf("unknown preview start policy %q", s.Policy)
	}
}

// ThumbnailAt locates a thumbnail either by absolute timestamp or by a
// fraction of the duration. Exactly one should be set.
type ThumbnailAt struct {
	Timestamp *float64
	Fraction  *float64
}

// Thumbnail returns the one-frame run for a thumbnail request.
func (s Selector) Thumbnail(info decoder.VideoInfo, at ThumbnailAt) (decoder.Run, error) {
	var offset time.Duration
	switch {
	case at.Timestamp != nil && at.Fraction != nil:
		return decoder.Run{}, fmt.Errorf("%w: timestamp and fraction are mutually exclusive", ErrInvalidRequest)
	case at.Timestamp != nil:
		if *at.Timestamp < 0 {
			return decoder.Run{}, fmt.Errorf("%w: negative timestamp %v", ErrInvalidRequest, *at.Timestamp)
		}
		offset = seconds(*at.Timestamp)
	case at.Fraction != nil:
		if *at.Fraction < 0 || *at.Fraction > 1 {
			return decoder.Run{}, fmt.Errorf("%w: fraction %v outside [0,1]", ErrInvalidRequest, *at.Fraction)
		}
		if info.Duration <= 0 {
			return decoder.Run{}, fmt.Errorf("%w: duration unknown, cannot resolve fraction", ErrDecode)
		}
		offset = time.Duration(*at.Fraction * float64(info.Duration))
	default:
		return decoder.Run{}, fmt.Errorf("%w: timestamp or fraction is required", ErrInvalidRequest)
	}

	if info.Duration > 0 && offset > info.Duration {
		return decoder.Run{}, fmt.Errorf("%w: timestamp %s beyond duration %s", ErrDecode, offset, info.Duration)
	}
	// the last decodable frame starts one interval before the end
	if info.Duration > 0 && info.FrameRate > 0 {
		last := info.Duration - time.Duration(float64(time.Second)/info.FrameRate)
		if last >= 0 && offset > last {
			offset = last
		}
	}
	return decoder.Run{Start: decoder.AtTime(offset), Count: 1}, nil
}

// Sheet spreads jumps single-frame runs over the video at i*(N/jumps).
func (s Selector) Sheet(info decoder.VideoInfo, jumps int) ([]decoder.Run, error) {
	if jumps <= 0 {
		return nil, fmt.Errorf("%w: thumbnail count must be positive, got %d", ErrInvalidRequest, jumps)
	}
	if info.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: video reports no frames", ErrDecode)
	}

	step := info.FrameCount / int64(jumps)
	runs := make([]decoder.Run, 0, jumps)
	for i := 0; i < jumps; i++ {
		idx := int64(i) * step
		if len(runs) > 0 && runs[len(runs)-1].Start.Frame == idx {
			continue
		}
		runs = append(runs, decoder.Run{Start: decoder.AtFrame(idx), Count: 1})
	}
	return runs, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
