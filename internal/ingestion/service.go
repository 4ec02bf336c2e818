package ingestion

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/pkg/metrics"
	"github.com/your-org/framegen/pkg/storage/objectstore"
)

const kind = "ingestion"

// Publisher announces accepted uploads.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, event any) error
}

// Service stores source videos in the bucket the preview generator watches.
type Service struct {
	store      objectstore.Client
	publisher  Publisher
	logger     *zap.Logger
	bucket     string
	extensions []string
	newID      func() string
}

type Params struct {
	Store objectstore.Client
	// Publisher may be nil to skip ingestion events.
	Publisher Publisher
	Logger    *zap.Logger
	// Bucket receives uploads as {uuid}{ext}.
	Bucket string
	// Extensions restricts accepted filenames; empty accepts any.
	Extensions []string
}

// UploadOptions captures metadata about the upload.
type UploadOptions struct {
	Filename    string
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	VideoID    string    `json:"video_id"`
	Bucket     string    `json:"bucket"`
	ObjectKey  string    `json:"object_key"`
	Checksum   string    `json:"checksum"`
	Size       int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	exts := make([]string, 0, len(p.Extensions))
	for _, e := range p.Extensions {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			exts = append(exts, e)
		}
	}
	return &Service{
		store:      p.Store,
		publisher:  p.Publisher,
		logger:     p.Logger,
		bucket:     p.Bucket,
		extensions: exts,
		newID:      uuid.NewString,
	}
}

// ProcessUpload streams the video to the source bucket under a generated
// ID and emits an ingestion event.
func (s *Service) ProcessUpload(ctx context.Context, reader io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	res, err := s.processUpload(ctx, reader, size, opts)
	if err != nil {
		metrics.ArtifactsTotal.WithLabelValues(kind, "failed").Inc()
		s.logger.Error("video upload failed", zap.String("filename", opts.Filename), zap.Error(err))
		return nil, err
	}
	metrics.ArtifactsTotal.WithLabelValues(kind, "completed").Inc()

	s.logger.Info("video uploaded",
		zap.String("video_id", res.VideoID),
		zap.String("bucket", res.Bucket),
		zap.String("key", res.ObjectKey),
		zap.Int64("size_bytes", res.Size),
	)
	return res, nil
}

func (s *Service) processUpload(ctx context.Context, reader io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	if size <= 0 {
		return nil, media.Fail(media.ErrInvalidRequest, "upload video", opts.Filename, fmt.Errorf("invalid file size: %d", size))
	}
	ext := strings.ToLower(filepath.Ext(opts.Filename))
	if len(s.extensions) > 0 && !slices.Contains(s.extensions, ext) {
		return nil, media.Fail(media.ErrInvalidRequest, "upload video", opts.Filename, fmt.Errorf("unsupported file extension %q", ext))
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)
	buffered := bufio.NewReaderSize(tee, 64*1024)

	videoID := s.newID()
	objectKey := videoID + ext

	metadata := map[string]string{
		"original-filename": opts.Filename,
	}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	err := media.Stage(ctx, kind, "upload", func(ctx context.Context) error {
		return s.store.Put(ctx, s.bucket, objectKey, buffered, size, objectstore.PutOptions{
			ContentType: opts.ContentType,
			Metadata:    metadata,
		})
	})
	if err != nil {
		return nil, media.Fail(media.ErrUpload, "put object", objectKey, err)
	}

	res := &UploadResult{
		VideoID:    videoID,
		Bucket:     s.bucket,
		ObjectKey:  objectKey,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	s.announce(ctx, opts, metadata, res)
	return res, nil
}

// announce publishes the ingestion event. The object is already stored and
// its bucket notification drives the preview, so a failure is only logged.
func (s *Service) announce(ctx context.Context, opts UploadOptions, metadata map[string]string, res *UploadResult) {
	if s.publisher == nil {
		return
	}
	event := Created{
		ID:          res.VideoID,
		Bucket:      res.Bucket,
		ObjectKey:   res.ObjectKey,
		Filename:    opts.Filename,
		Checksum:    res.Checksum,
		SizeBytes:   res.Size,
		ContentType: opts.ContentType,
		Metadata:    metadata,
		CreatedAt:   res.UploadedAt,
	}
	if err := s.publisher.PublishEvent(ctx, res.VideoID, EventCreated, event); err != nil {
		s.logger.Warn("publish ingestion event failed", zap.String("video_id", res.VideoID), zap.Error(err))
	}
}
