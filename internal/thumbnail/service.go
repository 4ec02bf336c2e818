package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/pkg/decoder"
	"github.com/your-org/framegen/pkg/metrics"
	"github.com/your-org/framegen/pkg/storage/objectstore"
)

const (
	kind       = "thumbnail"
	sheetKind  = "thumbnail_sheet"
	uploadKind = "thumbnail_upload"
)

// Publisher announces finished artifacts.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, event any) error
}

// Request asks for one frame of VideoKey, located by Timestamp in seconds
// or by Fraction of the duration.
type Request struct {
	Bucket    string   `json:"bucket,omitempty"`
	VideoKey  string   `json:"video_key"`
	Timestamp *Seconds `json:"timestamp,omitempty"`
	Fraction  *float64 `json:"fraction,omitempty"`
}

// Seconds is a non-negative offset that decodes from a JSON number or a
// numeric string such as "5".
type Seconds float64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be a number of seconds, got %s", data)
	}
	*s = Seconds(v)
	return nil
}

func (r Request) position() media.ThumbnailAt {
	at := media.ThumbnailAt{Fraction: r.Fraction}
	if r.Timestamp != nil {
		v := float64(*r.Timestamp)
		at.Timestamp = &v
	}
	return at
}

// Result describes an uploaded thumbnail.
type Result struct {
	Bucket    string        `json:"bucket"`
	Key       string        `json:"key"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Offset    time.Duration `json:"-"`
	SizeBytes int64         `json:"-"`
}

// SheetRequest asks for Count evenly spaced frames; zero uses the default.
type SheetRequest struct {
	Bucket   string `json:"bucket,omitempty"`
	VideoKey string `json:"video_key"`
	Count    int    `json:"count,omitempty"`
}

// UploadRequest stores a client-chosen image, usually one frame of a sheet,
// as the thumbnail of VideoKey. Data is standard base64.
type UploadRequest struct {
	VideoKey string `json:"video_key"`
	Data     string `json:"thumbnail_data"`
}

type SheetResult struct {
	Thumbnails []string `json:"thumbnails"`
}

// Service extracts still frames from stored videos.
type Service struct {
	store        objectstore.Client
	decoder      decoder.Decoder
	publisher    Publisher
	logger       *zap.Logger
	selector     media.Selector
	size         decoder.Resolution
	sourceBucket string
	bucket       string
	keyPrefix    string
	visibility   objectstore.Visibility
	sheetCount   int
	tempDir      string
}

type Params struct {
	Store   objectstore.Client
	Decoder decoder.Decoder
	// Publisher may be nil to skip completion events.
	Publisher Publisher
	Logger    *zap.Logger
	Selector  media.Selector
	Size      decoder.Resolution
	// SourceBucket is used when a request names no bucket.
	SourceBucket string
	OutputBucket string
	KeyPrefix    string
	Visibility   objectstore.Visibility
	SheetCount   int
	TempDir      string
}

// NewService constructs a thumbnail Service.
func NewService(p Params) *Service {
	s := &Service{
		store:        p.Store,
		decoder:      p.Decoder,
		publisher:    p.Publisher,
		logger:       p.Logger,
		selector:     p.Selector,
		size:         p.Size,
		sourceBucket: p.SourceBucket,
		bucket:       p.OutputBucket,
		keyPrefix:    p.KeyPrefix,
		visibility:   p.Visibility,
		sheetCount:   p.SheetCount,
		tempDir:      p.TempDir,
	}
	if s.sheetCount <= 0 {
		s.sheetCount = 5
	}
	return s
}

// Generate stores the frame req points at as {id}.png in the output bucket.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	bucket := s.bucketOf(req.Bucket)
	log := s.logger.With(zap.String("bucket", bucket), zap.String("key", req.VideoKey))

	res, err := s.generate(ctx, bucket, req, log)
	if err != nil {
		metrics.ArtifactsTotal.WithLabelValues(kind, "failed").Inc()
		log.Error("thumbnail generation failed", zap.Error(err))
		return nil, err
	}
	metrics.ArtifactsTotal.WithLabelValues(kind, "completed").Inc()

	log.Info("thumbnail generated",
		zap.String("output_bucket", res.Bucket),
		zap.String("output_key", res.Key),
		zap.Duration("offset", res.Offset),
		zap.Int64("size_bytes", res.SizeBytes),
	)
	return res, nil
}

func (s *Service) generate(ctx context.Context, bucket string, req Request, log *zap.Logger) (*Result, error) {
	if bucket == "" || req.VideoKey == "" {
		return nil, media.Fail(media.ErrInvalidRequest, "generate thumbnail", req.VideoKey, fmt.Errorf("bucket and video_key are required"))
	}
	key := req.VideoKey

	dir, cleanup, err := media.Workdir(s.tempDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, info, err := s.fetchAndProbe(ctx, kind, dir, bucket, key)
	if err != nil {
		return nil, err
	}

	run, err := s.selector.Thumbnail(info, req.position())
	if err != nil {
		return nil, media.Fail(media.KindOf(err, media.ErrDecode), "select frame", key, err)
	}
	log.Debug("frame selected", zap.Stringer("position", run.Start), zap.Duration("duration", info.Duration))

	var frames []decoder.Frame
	err = media.Stage(ctx, kind, "extract", func(ctx context.Context) error {
		frames, err = s.decoder.Extract(ctx, src, []decoder.Run{run}, s.size)
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrDecode, "extract frame", key, err)
	}
	metrics.FramesExtractedTotal.WithLabelValues(kind).Add(float64(len(frames)))

	out := filepath.Join(dir, "thumbnail.png")
	var size int64
	err = media.Stage(ctx, kind, "encode", func(ctx context.Context) error {
		size, err = media.WriteFile(out, func(w io.Writer) error {
			return media.EncodeThumbnail(w, frames[0], s.size)
		})
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrEncode, "encode thumbnail", key, err)
	}

	outBucket := s.bucket
	if outBucket == "" {
		outBucket = bucket
	}
	outKey := media.DeriveKey(key, ".png", s.keyPrefix)
	err = media.Stage(ctx, kind, "upload", func(ctx context.Context) error {
		return s.store.Store(ctx, out, outBucket, outKey, objectstore.PutOptions{
			ContentType: "image/png",
			Visibility:  s.visibility,
			Metadata: map[string]string{
				"source-bucket": bucket,
				"source-key":    key,
			},
		})
	})
	if err != nil {
		return nil, media.Fail(media.ErrUpload, "upload thumbnail", outKey, err)
	}

	res := &Result{
		Bucket:    outBucket,
		Key:       outKey,
		Width:     s.size.Width,
		Height:    s.size.Height,
		Offset:    run.Start.Offset,
		SizeBytes: size,
	}
	s.announce(ctx, bucket, key, OriginExtracted, res, log)
	return res, nil
}

// Upload validates req.Data as an image, fits it to the thumbnail size and
// stores it under the same key Generate would use.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	log := s.logger.With(zap.String("key", req.VideoKey))

	res, err := s.upload(ctx, req, log)
	if err != nil {
		metrics.ArtifactsTotal.WithLabelValues(uploadKind, "failed").Inc()
		log.Error("thumbnail upload failed", zap.Error(err))
		return nil, err
	}
	metrics.ArtifactsTotal.WithLabelValues(uploadKind, "completed").Inc()

	log.Info("thumbnail uploaded",
		zap.String("output_bucket", res.Bucket),
		zap.String("output_key", res.Key),
		zap.Int64("size_bytes", res.SizeBytes),
	)
	return res, nil
}

func (s *Service) upload(ctx context.Context, req UploadRequest, log *zap.Logger) (*Result, error) {
	key := req.VideoKey
	if key == "" || req.Data == "" {
		return nil, media.Fail(media.ErrInvalidRequest, "upload thumbnail", key, fmt.Errorf("video_key and thumbnail_data are required"))
	}
	outBucket := s.bucket
	if outBucket == "" {
		outBucket = s.sourceBucket
	}
	if outBucket == "" {
		return nil, media.Fail(media.ErrInvalidRequest, "upload thumbnail", key, fmt.Errorf("no thumbnail bucket configured"))
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Data))
	if err != nil {
		return nil, media.Fail(media.ErrInvalidRequest, "decode thumbnail data", key, err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, media.Fail(media.ErrInvalidRequest, "decode thumbnail image", key, err)
	}

	dir, cleanup, err := media.Workdir(s.tempDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out := filepath.Join(dir, "thumbnail.png")
	var size int64
	err = media.Stage(ctx, uploadKind, "encode", func(ctx context.Context) error {
		size, err = media.WriteFile(out, func(w io.Writer) error {
			return media.EncodeThumbnail(w, decoder.Frame{Image: img}, s.size)
		})
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrEncode, "encode thumbnail", key, err)
	}

	outKey := media.DeriveKey(key, ".png", s.keyPrefix)
	err = media.Stage(ctx, uploadKind, "upload", func(ctx context.Context) error {
		return s.store.Store(ctx, out, outBucket, outKey, objectstore.PutOptions{
			ContentType: "image/png",
			Visibility:  s.visibility,
			Metadata: map[string]string{
				"source-key": key,
			},
		})
	})
	if err != nil {
		return nil, media.Fail(media.ErrUpload, "upload thumbnail", outKey, err)
	}

	res := &Result{
		Bucket:    outBucket,
		Key:       outKey,
		Width:     s.size.Width,
		Height:    s.size.Height,
		SizeBytes: size,
	}
	s.announce(ctx, "", key, OriginUploaded, res, log)
	return res, nil
}

// Sheet returns Count evenly spaced frames as base64 PNGs. Nothing is uploaded.
func (s *Service) Sheet(ctx context.Context, req SheetRequest) (*SheetResult, error) {
	bucket := s.bucketOf(req.Bucket)
	log := s.logger.With(zap.String("bucket", bucket), zap.String("key", req.VideoKey))

	res, err := s.sheet(ctx, bucket, req)
	if err != nil {
		metrics.ArtifactsTotal.WithLabelValues(sheetKind, "failed").Inc()
		log.Error("thumbnail sheet failed", zap.Error(err))
		return nil, err
	}
	metrics.ArtifactsTotal.WithLabelValues(sheetKind, "completed").Inc()
	log.Info("thumbnail sheet generated", zap.Int("thumbnails", len(res.Thumbnails)))
	return res, nil
}

func (s *Service) sheet(ctx context.Context, bucket string, req SheetRequest) (*SheetResult, error) {
	if bucket == "" || req.VideoKey == "" {
		return nil, media.Fail(media.ErrInvalidRequest, "generate sheet", req.VideoKey, fmt.Errorf("bucket and video_key are required"))
	}
	if req.Count < 0 {
		return nil, media.Fail(media.ErrInvalidRequest, "generate sheet", req.VideoKey, fmt.Errorf("count must not be negative, got %d", req.Count))
	}
	count := req.Count
	if count == 0 {
		count = s.sheetCount
	}
	key := req.VideoKey

	dir, cleanup, err := media.Workdir(s.tempDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, info, err := s.fetchAndProbe(ctx, sheetKind, dir, bucket, key)
	if err != nil {
		return nil, err
	}

	runs, err := s.selector.Sheet(info, count)
	if err != nil {
		return nil, media.Fail(media.KindOf(err, media.ErrDecode), "select frames", key, err)
	}

	var frames []decoder.Frame
	err = media.Stage(ctx, sheetKind, "extract", func(ctx context.Context) error {
		frames, err = s.decoder.Extract(ctx, src, runs, s.size)
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrDecode, "extract frames", key, err)
	}
	metrics.FramesExtractedTotal.WithLabelValues(sheetKind).Add(float64(len(frames)))

	var thumbs []string
	err = media.Stage(ctx, sheetKind, "encode", func(ctx context.Context) error {
		thumbs, err = media.EncodeSheet(frames, s.size)
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrEncode, "encode sheet", key, err)
	}
	return &SheetResult{Thumbnails: thumbs}, nil
}

func (s *Service) fetchAndProbe(ctx context.Context, stageKind, dir, bucket, key string) (string, decoder.VideoInfo, error) {
	src := filepath.Join(dir, "source"+path.Ext(key))
	err := media.Stage(ctx, stageKind, "download", func(ctx context.Context) error {
		return s.store.Fetch(ctx, bucket, key, src)
	})
	if err != nil {
		return "", decoder.VideoInfo{}, media.Fail(media.ErrDownload, "download video", key, err)
	}

	var info decoder.VideoInfo
	err = media.Stage(ctx, stageKind, "probe", func(ctx context.Context) error {
		info, err = s.decoder.Probe(ctx, src)
		return err
	})
	if err != nil {
		return "", decoder.VideoInfo{}, media.Fail(media.ErrDecode, "probe video", key, err)
	}
	return src, info, nil
}

func (s *Service) bucketOf(requested string) string {
	if requested != "" {
		return requested
	}
	return s.sourceBucket
}

func (s *Service) announce(ctx context.Context, bucket, key, origin string, res *Result, log *zap.Logger) {
	if s.publisher == nil {
		return
	}
	event := Created{
		ID:           uuid.NewString(),
		SourceBucket: bucket,
		SourceKey:    key,
		Bucket:       res.Bucket,
		Key:          res.Key,
		Origin:       origin,
		OffsetMillis: res.Offset.Milliseconds(),
		Width:        res.Width,
		Height:       res.Height,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, res.Key, EventCreated, event); err != nil {
		log.Warn("publish thumbnail event failed", zap.Error(err))
	}
}
