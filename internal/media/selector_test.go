package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/framegen/pkg/decoder"
)

func ptr(v float64) *float64 { return &v }

func TestSelectorPreview(t *testing.T) {
	tests := []struct {
		name   string
		sel    Selector
		info   decoder.VideoInfo
		want   decoder.Run
		errKin error
	}{
		{
			name: "midpoint of long video",
			sel:  Selector{Policy: StartFrameMidpoint, Frames: 30},
			info: decoder.VideoInfo{FrameCount: 300},
			want: decoder.Run{Start: decoder.AtFrame(150), Count: 30},
		},
		{
			name: "short tail is clipped",
			sel:  Selector{Policy: StartFrameMidpoint, Frames: 30},
			info: decoder.VideoInfo{FrameCount: 41},
			want: decoder.Run{Start: decoder.AtFrame(20), Count: 21},
		},
		{
			name: "odd frame count starts at integer half",
			sel:  Selector{Policy: StartFrameMidpoint, Frames: 30},
			info: decoder.VideoInfo{FrameCount: 31},
			want: decoder.Run{Start: decoder.AtFrame(15), Count: 16},
		},
		{
			name: "single frame video",
			sel:  Selector{Frames: 30},
			info: decoder.VideoInfo{FrameCount: 1},
			want: decoder.Run{Start: decoder.AtFrame(0), Count: 1},
		},
		{
			name: "unknown frame count",
			sel:  Selector{Policy: StartFrameMidpoint, Frames: 30},
			info: decoder.VideoInfo{},
			want: decoder.Run{Start: decoder.AtFrame(0), Count: 30},
		},
		{
			name: "duration midpoint",
			sel:  Selector{Policy: StartDurationMidpoint, Frames: 30},
			info: decoder.VideoInfo{Duration: 10 * time.Second, FrameCount: 300},
			want: decoder.Run{Start: decoder.AtTime(5 * time.Second), Count: 30},
		},
		{
			name: "fixed start",
			sel:  Selector{Policy: StartFixed, Frames: 12, Offset: 2 * time.Second},
			info: decoder.VideoInfo{Duration: 10 * time.Second},
			want: decoder.Run{Start: decoder.AtTime(2 * time.Second), Count: 12},
		},
		{
			name:   "fixed start past end",
			sel:    Selector{Policy: StartFixed, Frames: 12, Offset: time.Minute},
			info:   decoder.VideoInfo{Duration: 10 * time.Second},
			errKin: ErrDecode,
		},
		{
			name:   "zero length preview",
			sel:    Selector{Policy: StartFrameMidpoint},
			info:   decoder.VideoInfo{FrameCount: 300},
			errKin: ErrInvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := tt.sel.Preview(tt.info)
			if tt.errKin != nil {
				assert.ErrorIs(t, err, tt.errKin)
				return
			}
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, tt.want, runs[0])
		})
	}
}

func TestSelectorPreviewFrameCounts(t *testing.T) {
	sel := Selector{Policy: StartFrameMidpoint, Frames: 30}
	for n := int64(1); n <= 120; n++ {
		runs, err := sel.Preview(decoder.VideoInfo{FrameCount: n})
		require.NoError(t, err)
		want := 30
		if rem := n - n/2; rem < 30 {
			want = int(rem)
		}
		assert.Equal(t, want, runs[0].Count, "n=%d", n)
		assert.Equal(t, n/2, runs[0].Start.Frame, "n=%d", n)
	}
}

func TestSelectorThumbnail(t *testing.T) {
	info := decoder.VideoInfo{Duration: 10 * time.Second, FrameCount: 300}
	sel := Selector{}

	tests := []struct {
		name   string
		info   decoder.VideoInfo
		at     ThumbnailAt
		want   time.Duration
		errKin error
	}{
		{name: "timestamp", info: info, at: ThumbnailAt{Timestamp: ptr(5)}, want: 5 * time.Second},
		{name: "start", info: info, at: ThumbnailAt{Timestamp: ptr(0)}, want: 0},
		{name: "end", info: info, at: ThumbnailAt{Timestamp: ptr(10)}, want: 10 * time.Second},
		{
			name: "end clamps to last frame",
			info: decoder.VideoInfo{Duration: 10 * time.Second, FrameRate: 30},
			at:   ThumbnailAt{Fraction: ptr(1)},
			want: 10*time.Second - 33333333*time.Nanosecond,
		},
		{name: "fraction", info: info, at: ThumbnailAt{Fraction: ptr(0.25)}, want: 2500 * time.Millisecond},
		{name: "unknown duration", info: decoder.VideoInfo{}, at: ThumbnailAt{Timestamp: ptr(42)}, want: 42 * time.Second},
		{name: "past end", info: info, at: ThumbnailAt{Timestamp: ptr(10.5)}, errKin: ErrDecode},
		{name: "negative", info: info, at: ThumbnailAt{Timestamp: ptr(-1)}, errKin: ErrInvalidRequest},
		{name: "fraction out of range", info: info, at: ThumbnailAt{Fraction: ptr(1.5)}, errKin: ErrInvalidRequest},
		{name: "fraction without duration", info: decoder.VideoInfo{}, at: ThumbnailAt{Fraction: ptr(0.5)}, errKin: ErrDecode},
		{name: "both set", info: info, at: ThumbnailAt{Timestamp: ptr(1), Fraction: ptr(0.1)}, errKin: ErrInvalidRequest},
		{name: "neither set", info: info, errKin: ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := sel.Thumbnail(tt.info, tt.at)
			if tt.errKin != nil {
				assert.ErrorIs(t, err, tt.errKin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, decoder.Run{Start: decoder.AtTime(tt.want), Count: 1}, run)
		})
	}
}

func TestSelectorSheet(t *testing.T) {
	sel := Selector{}

	runs, err := sel.Sheet(decoder.VideoInfo{FrameCount: 300}, 5)
	require.NoError(t, err)
	var idx []int64
	for _, r := range runs {
		assert.Equal(t, 1, r.Count)
		idx = append(idx, r.Start.Frame)
	}
	assert.Equal(t, []int64{0, 60, 120, 180, 240}, idx)

	runs, err = sel.Sheet(decoder.VideoInfo{FrameCount: 3}, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "indices collapse to frame 0")

	_, err = sel.Sheet(decoder.VideoInfo{}, 5)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = sel.Sheet(decoder.VideoInfo{FrameCount: 300}, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseStartPolicy(t *testing.T) {
	p, err := ParseStartPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StartFrameMidpoint, p)

	p, err = ParseStartPolicy("duration-midpoint")
	require.NoError(t, err)
	assert.Equal(t, StartDurationMidpoint, p)

	_, err = ParseStartPolicy("beginning")
	assert.Error(t, err)
}
