package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/pkg/decoder"
	"github.com/your-org/framegen/pkg/metrics"
	"github.com/your-org/framegen/pkg/storage/objectstore"
)

const kind = "preview"

// Publisher announces finished artifacts.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, event any) error
}

// Service turns uploaded videos into looping GIF previews.
type Service struct {
	store      objectstore.Client
	decoder    decoder.Decoder
	publisher  Publisher
	logger     *zap.Logger
	selector   media.Selector
	size       decoder.Resolution
	delay      time.Duration
	bucket     string
	keyPrefix  string
	visibility objectstore.Visibility
	tempDir    string
}

type Params struct {
	Store   objectstore.Client
	Decoder decoder.Decoder
	// Publisher may be nil to skip completion events.
	Publisher  Publisher
	Logger     *zap.Logger
	Selector   media.Selector
	Size       decoder.Resolution
	FrameDelay time.Duration
	// OutputBucket receives {id}.gif, prefixed with KeyPrefix.
	OutputBucket string
	KeyPrefix    string
	Visibility   objectstore.Visibility
	TempDir      string
}

// Result describes an uploaded preview.
type Result struct {
	Bucket    string
	Key       string
	Frames    int
	SizeBytes int64
}

// NewService constructs a preview Service.
func NewService(p Params) *Service {
	return &Service{
		store:      p.Store,
		decoder:    p.Decoder,
		publisher:  p.Publisher,
		logger:     p.Logger,
		selector:   p.Selector,
		size:       p.Size,
		delay:      p.FrameDelay,
		bucket:     p.OutputBucket,
		keyPrefix:  p.KeyPrefix,
		visibility: p.Visibility,
		tempDir:    p.TempDir,
	}
}

// HandleNotification decodes a storage event notification and generates a
// preview for each created object it lists.
func (s *Service) HandleNotification(ctx context.Context, payload []byte) error {
	var event events.S3Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return media.Fail(media.ErrInvalidRequest, "decode notification", "", err)
	}
	return s.HandleS3Event(ctx, event)
}

// HandleS3Event processes records in order and stops at the first failure.
func (s *Service) HandleS3Event(ctx context.Context, event events.S3Event) error {
	if len(event.Records) == 0 {
		return media.Fail(media.ErrInvalidRequest, "decode notification", "", fmt.Errorf("no records"))
	}

	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := media.DecodeEventKey(record.S3.Object.Key)

		if !isCreate(record.EventName) {
			s.logger.Debug("skipping non-create record",
				zap.String("event", record.EventName),
				zap.String("bucket", bucket),
				zap.String("key", key),
			)
			continue
		}
		if _, err := s.Generate(ctx, bucket, key); err != nil {
			return err
		}
	}
	return nil
}

func isCreate(eventName string) bool {
	return eventName == "" || strings.HasPrefix(strings.TrimPrefix(eventName, "s3:"), "ObjectCreated")
}

// Generate downloads bucket/key, samples the configured run of frames and
// uploads the assembled GIF.
func (s *Service) Generate(ctx context.Context, bucket, key string) (*Result, error) {
	log := s.logger.With(zap.String("bucket", bucket), zap.String("key", key))

	res, err := s.generate(ctx, bucket, key, log)
	if err != nil {
		metrics.ArtifactsTotal.WithLabelValues(kind, "failed").Inc()
		log.Error("preview generation failed", zap.Error(err))
		return nil, err
	}
	metrics.ArtifactsTotal.WithLabelValues(kind, "completed").Inc()

	log.Info("preview generated",
		zap.String("output_bucket", res.Bucket),
		zap.String("output_key", res.Key),
		zap.Int("frames", res.Frames),
		zap.Int64("size_bytes", res.SizeBytes),
	)
	return res, nil
}

func (s *Service) generate(ctx context.Context, bucket, key string, log *zap.Logger) (*Result, error) {
	if bucket == "" || key == "" {
		return nil, media.Fail(media.ErrInvalidRequest, "generate preview", key, fmt.Errorf("bucket and key are required"))
	}

	dir, cleanup, err := media.Workdir(s.tempDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src := filepath.Join(dir, "source"+path.Ext(key))
	err = media.Stage(ctx, kind, "download", func(ctx context.Context) error {
		return s.store.Fetch(ctx, bucket, key, src)
	})
	if err != nil {
		return nil, media.Fail(media.ErrDownload, "download video", key, err)
	}

	var info decoder.VideoInfo
	err = media.Stage(ctx, kind, "probe", func(ctx context.Context) error {
		info, err = s.decoder.Probe(ctx, src)
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrDecode, "probe video", key, err)
	}

	runs, err := s.selector.Preview(info)
	if err != nil {
		return nil, media.Fail(media.KindOf(err, media.ErrDecode), "select frames", key, err)
	}
	log.Debug("frames selected",
		zap.Int64("frame_count", info.FrameCount),
		zap.Duration("duration", info.Duration),
		zap.Stringer("start", runs[0].Start),
		zap.Int("count", runs[0].Count),
	)

	var frames []decoder.Frame
	err = media.Stage(ctx, kind, "extract", func(ctx context.Context) error {
		frames, err = s.decoder.Extract(ctx, src, runs, s.size)
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrDecode, "extract frames", key, err)
	}
	metrics.FramesExtractedTotal.WithLabelValues(kind).Add(float64(len(frames)))

	out := filepath.Join(dir, "preview.gif")
	var size int64
	err = media.Stage(ctx, kind, "encode", func(ctx context.Context) error {
		size, err = media.WriteFile(out, func(w io.Writer) error {
			return media.AssemblePreview(w, frames, media.PreviewOptions{Delay: s.delay})
		})
		return err
	})
	if err != nil {
		return nil, media.Fail(media.ErrEncode, "assemble preview", key, err)
	}

	outKey := media.DeriveKey(key, ".gif", s.keyPrefix)
	err = media.Stage(ctx, kind, "upload", func(ctx context.Context) error {
		return s.store.Store(ctx, out, s.bucket, outKey, objectstore.PutOptions{
			ContentType: "image/gif",
			Visibility:  s.visibility,
			Metadata: map[string]string{
				"source-bucket": bucket,
				"source-key":    key,
			},
		})
	})
	if err != nil {
		return nil, media.Fail(media.ErrUpload, "upload preview", outKey, err)
	}

	res := &Result{Bucket: s.bucket, Key: outKey, Frames: len(frames), SizeBytes: size}
	s.announce(ctx, bucket, key, res, log)
	return res, nil
}

// announce publishes the completion event. The preview is already stored,
// so a publish failure is only logged.
func (s *Service) announce(ctx context.Context, bucket, key string, res *Result, log *zap.Logger) {
	if s.publisher == nil {
		return
	}
	event := Created{
		ID:           uuid.NewString(),
		SourceBucket: bucket,
		SourceKey:    key,
		Bucket:       res.Bucket,
		Key:          res.Key,
		Frames:       res.Frames,
		SizeBytes:    res.SizeBytes,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, res.Key, EventCreated, event); err != nil {
		log.Warn("publish preview event failed", zap.Error(err))
	}
}
