package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/internal/media/mediatest"
)

type fixture struct {
	store  *mediatest.Store
	events *mediatest.Publisher
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  mediatest.NewStore(),
		events: &mediatest.Publisher{},
	}
	f.svc = NewService(Params{
		Store:      f.store,
		Publisher:  f.events,
		Logger:     zap.NewNop(),
		Bucket:     "videos",
		Extensions: []string{".mp4", ".MOV"},
	})
	f.svc.newID = func() string { return "2f1c7a9e" }
	return f
}

func TestProcessUpload(t *testing.T) {
	f := newFixture(t)
	body := "fake mp4 payload"

	res, err := f.svc.ProcessUpload(context.Background(), strings.NewReader(body), int64(len(body)), UploadOptions{
		Filename:    "Holiday.MP4",
		ContentType: "video/mp4",
		Metadata:    map[string]string{"title": "holiday"},
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, "2f1c7a9e", res.VideoID)
	assert.Equal(t, "videos", res.Bucket)
	assert.Equal(t, "2f1c7a9e.mp4", res.ObjectKey)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)
	assert.Equal(t, int64(len(body)), res.Size)

	obj, ok := f.store.Get("videos", "2f1c7a9e.mp4")
	require.True(t, ok)
	assert.Equal(t, body, string(obj.Data))
	assert.Equal(t, "video/mp4", obj.Opts.ContentType)
	assert.Equal(t, "Holiday.MP4", obj.Opts.Metadata["original-filename"])
	assert.Equal(t, "holiday", obj.Opts.Metadata["title"])

	require.Len(t, f.events.Events, 1)
	ev := f.events.Events[0]
	assert.Equal(t, EventCreated, ev.Type)
	assert.Equal(t, "2f1c7a9e", ev.Key)
	assert.Equal(t, res.Checksum, ev.Event.(Created).Checksum)
}

func TestProcessUploadDerivesPreviewKey(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ProcessUpload(context.Background(), strings.NewReader("x"), 1, UploadOptions{Filename: "clip.mov"})
	require.NoError(t, err)
	assert.Equal(t, "2f1c7a9e.gif", media.DeriveKey(res.ObjectKey, ".gif", ""))
}

func TestProcessUploadFailures(t *testing.T) {
	tests := []struct {
		name  string
		size  int64
		file  string
		setup func(f *fixture)
		kind  error
	}{
		{name: "empty file", size: 0, file: "clip.mp4", kind: media.ErrInvalidRequest},
		{name: "not a video", size: 4, file: "notes.txt", kind: media.ErrInvalidRequest},
		{
			name:  "store fails",
			size:  4,
			file:  "clip.mp4",
			setup: func(f *fixture) { f.store.StoreErr = errors.New("bucket missing") },
			kind:  media.ErrUpload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.ProcessUpload(context.Background(), strings.NewReader("data"), tt.size, UploadOptions{Filename: tt.file})
			assert.ErrorIs(t, err, tt.kind)
			assert.Zero(t, f.store.Len())
			assert.Empty(t, f.events.Events)
		})
	}
}

func TestProcessUploadPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("broker down")

	_, err := f.svc.ProcessUpload(context.Background(), strings.NewReader("data"), 4, UploadOptions{Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Len())
}
