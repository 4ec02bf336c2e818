package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/internal/media/mediatest"
	"github.com/your-org/framegen/pkg/decoder"
	"github.com/your-org/framegen/pkg/storage/objectstore"
)

type fixture struct {
	store   *mediatest.Store
	decoder *mediatest.Decoder
	events  *mediatest.Publisher
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   mediatest.NewStore(),
		decoder: &mediatest.Decoder{Info: mediatest.Video(10*time.Second, 30)},
		events:  &mediatest.Publisher{},
	}
	f.store.Seed("videos", "clip.mp4", []byte("fake mp4"))
	f.svc = NewService(Params{
		Store:        f.store,
		Decoder:      f.decoder,
		Publisher:    f.events,
		Logger:       zap.NewNop(),
		Size:         decoder.Resolution{Width: 240, Height: 135},
		SourceBucket: "videos",
		OutputBucket: "thumbs",
		Visibility:   objectstore.PublicRead,
		TempDir:      t.TempDir(),
	})
	return f
}

func ptr(v float64) *float64 { return &v }

func secs(v float64) *Seconds {
	s := Seconds(v)
	return &s
}

func TestRequestTimestampForms(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
	}{
		{payload: `{"video_key":"clip.mp4","timestamp":5}`, want: 5},
		{payload: `{"video_key":"clip.mp4","timestamp":"5"}`, want: 5},
		{payload: `{"video_key":"clip.mp4","timestamp":" 2.5 "}`, want: 2.5},
	}
	for _, tt := range tests {
		var req Request
		require.NoError(t, json.Unmarshal([]byte(tt.payload), &req), tt.payload)
		require.NotNil(t, req.Timestamp)
		assert.Equal(t, tt.want, float64(*req.Timestamp))
	}

	var req Request
	assert.Error(t, json.Unmarshal([]byte(`{"video_key":"clip.mp4","timestamp":"soon"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"video_key":"clip.mp4","timestamp":true}`), &req))
}

func TestGenerateStringTimestamp(t *testing.T) {
	f := newFixture(t)

	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"video_key":"clip.mp4","timestamp":"5"}`), &req))

	res, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, res.Offset)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Generate(context.Background(), Request{VideoKey: "clip.mp4", Timestamp: secs(5)})
	require.NoError(t, err)
	assert.Equal(t, "thumbs", res.Bucket)
	assert.Equal(t, "clip.png", res.Key)
	assert.Equal(t, 240, res.Width)
	assert.Equal(t, 135, res.Height)
	assert.Equal(t, 5*time.Second, res.Offset)

	obj, ok := f.store.Get("thumbs", "clip.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.Opts.ContentType)
	assert.Equal(t, objectstore.PublicRead, obj.Opts.Visibility)

	cfg, err := png.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Width)
	assert.Equal(t, 135, cfg.Height)

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, EventCreated, f.events.Events[0].Type)
	assert.Equal(t, int64(5000), f.events.Events[0].Event.(Created).OffsetMillis)
}

func TestGenerateByFraction(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Generate(context.Background(), Request{Bucket: "videos", VideoKey: "clip.mp4", Fraction: ptr(0.25)})
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, res.Offset)
}

func TestGenerateAtEndOfVideo(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Generate(context.Background(), Request{VideoKey: "clip.mp4", Fraction: ptr(1)})
	require.NoError(t, err)
	assert.Less(t, res.Offset, 10*time.Second)
	_, ok := f.store.Get("thumbs", "clip.png")
	assert.True(t, ok)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		setup func(f *fixture)
		kind  error
	}{
		{name: "missing key", req: Request{Timestamp: secs(1)}, kind: media.ErrInvalidRequest},
		{name: "no position", req: Request{VideoKey: "clip.mp4"}, kind: media.ErrInvalidRequest},
		{name: "both positions", req: Request{VideoKey: "clip.mp4", Timestamp: secs(1), Fraction: ptr(0.5)}, kind: media.ErrInvalidRequest},
		{name: "negative timestamp", req: Request{VideoKey: "clip.mp4", Timestamp: secs(-1)}, kind: media.ErrInvalidRequest},
		{name: "beyond duration", req: Request{VideoKey: "clip.mp4", Timestamp: secs(11)}, kind: media.ErrDecode},
		{name: "unknown object", req: Request{VideoKey: "other.mp4", Timestamp: secs(1)}, kind: media.ErrDownload},
		{
			name:  "probe fails",
			req:   Request{VideoKey: "clip.mp4", Timestamp: secs(1)},
			setup: func(f *fixture) { f.decoder.ProbeErr = errors.New("invalid data found") },
			kind:  media.ErrDecode,
		},
		{
			name:  "upload fails",
			req:   Request{VideoKey: "clip.mp4", Timestamp: secs(1)},
			setup: func(f *fixture) { f.store.StoreErr = errors.New("connection reset") },
			kind:  media.ErrUpload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, 1, f.store.Len(), "only the source video is stored")
			assert.Empty(t, f.events.Events)
		})
	}
}

func TestSheet(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Sheet(context.Background(), SheetRequest{VideoKey: "clip.mp4"})
	require.NoError(t, err)
	require.Len(t, res.Thumbnails, 5)

	raw, err := base64.StdEncoding.DecodeString(res.Thumbnails[0])
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Width)

	require.Len(t, f.decoder.Runs, 1)
	var starts []int64
	for _, run := range f.decoder.Runs[0] {
		starts = append(starts, run.Start.Frame)
	}
	assert.Equal(t, []int64{0, 60, 120, 180, 240}, starts)

	assert.Equal(t, 1, f.store.Len(), "sheets are not uploaded")
	assert.Empty(t, f.events.Events)
}

func TestSheetFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Sheet(context.Background(), SheetRequest{VideoKey: "clip.mp4", Count: -1})
	assert.ErrorIs(t, err, media.ErrInvalidRequest)

	_, err = f.svc.Sheet(context.Background(), SheetRequest{VideoKey: "missing.mp4"})
	assert.ErrorIs(t, err, media.ErrDownload)

	f.decoder.Info = decoder.VideoInfo{}
	_, err = f.svc.Sheet(context.Background(), SheetRequest{VideoKey: "clip.mp4"})
	assert.ErrorIs(t, err, media.ErrDecode)
}

func encodedImage(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, A: 255}), imaging.JPEG))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestUpload(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), UploadRequest{VideoKey: "clip.mp4", Data: encodedImage(t, 640, 360)})
	require.NoError(t, err)
	assert.Equal(t, "thumbs", res.Bucket)
	assert.Equal(t, "clip.png", res.Key)

	obj, ok := f.store.Get("thumbs", "clip.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.Opts.ContentType)
	assert.Equal(t, objectstore.PublicRead, obj.Opts.Visibility)

	cfg, err := png.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Width)
	assert.Equal(t, 135, cfg.Height)

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, OriginUploaded, f.events.Events[0].Event.(Created).Origin)
}

func TestUploadSheetFrame(t *testing.T) {
	f := newFixture(t)

	sheet, err := f.svc.Sheet(context.Background(), SheetRequest{VideoKey: "clip.mp4"})
	require.NoError(t, err)

	_, err = f.svc.Upload(context.Background(), UploadRequest{VideoKey: "clip.mp4", Data: sheet.Thumbnails[2]})
	require.NoError(t, err)
	_, ok := f.store.Get("thumbs", "clip.png")
	assert.True(t, ok)
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name  string
		req   UploadRequest
		setup func(f *fixture)
		kind  error
	}{
		{name: "missing key", req: UploadRequest{Data: "aGk="}, kind: media.ErrInvalidRequest},
		{name: "missing data", req: UploadRequest{VideoKey: "clip.mp4"}, kind: media.ErrInvalidRequest},
		{name: "bad base64", req: UploadRequest{VideoKey: "clip.mp4", Data: "not base64!"}, kind: media.ErrInvalidRequest},
		{name: "not an image", req: UploadRequest{VideoKey: "clip.mp4", Data: base64.StdEncoding.EncodeToString([]byte("plain text"))}, kind: media.ErrInvalidRequest},
		{
			name:  "store fails",
			req:   UploadRequest{VideoKey: "clip.mp4"},
			setup: func(f *fixture) { f.store.StoreErr = errors.New("bucket gone") },
			kind:  media.ErrUpload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
				tt.req.Data = encodedImage(t, 64, 64)
			}

			_, err := f.svc.Upload(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, 1, f.store.Len())
			assert.Empty(t, f.events.Events)
		})
	}
}
