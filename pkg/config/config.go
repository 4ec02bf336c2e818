package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for a MediaFlow generator.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
	Media     MediaConfig
	Preview   PreviewConfig
	Thumbnail ThumbnailConfig
	Upload    UploadConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"mediaflow-framegen"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"APP_LOG_ENCODING" envDefault:"json"`
	// Runtime picks the invocation source: kafka or lambda for previews,
	// http or lambda for thumbnails. Empty uses the binary's default.
	Runtime string `env:"APP_RUNTIME"`
	TempDir string `env:"TEMP_DIR" envDefault:"/tmp/mediaflow"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type KafkaConfig struct {
	Brokers           []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	NotificationTopic string        `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"mediaflow.uploads"`
	EventsTopic       string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"mediaflow.artifacts"`
	DeadLetterTopic   string        `env:"KAFKA_DEAD_LETTER_TOPIC" envDefault:"mediaflow.uploads.dlq"`
	GroupID           string        `env:"KAFKA_GROUP_ID" envDefault:"mediaflow-preview"`
	Retries           int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec  string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize         int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout      time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`
	MaxWait           time.Duration `env:"KAFKA_MAX_WAIT" envDefault:"1s"`
	// EventsDisabled skips artifact events; consuming notifications still needs brokers.
	EventsDisabled bool `env:"KAFKA_EVENTS_DISABLED" envDefault:"false"`
}

type StorageConfig struct {
	Provider        string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint        string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	AccessKey       string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey       string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	SourceBucket    string `env:"STORAGE_SOURCE_BUCKET" envDefault:"minitube.video"`
	PreviewBucket   string `env:"STORAGE_PREVIEW_BUCKET" envDefault:"minitube.previews"`
	ThumbnailBucket string `env:"STORAGE_THUMBNAIL_BUCKET" envDefault:"minitube.thumbnail"`
	Visibility      string `env:"STORAGE_OUTPUT_VISIBILITY" envDefault:"public-read"`
	EnsureBuckets   bool   `env:"STORAGE_ENSURE_BUCKETS" envDefault:"false"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=mediaflow"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9102"`
}

type MediaConfig struct {
	Decoder     string        `env:"MEDIA_DECODER" envDefault:"ffmpeg"`
	FFmpegPath  string        `env:"MEDIA_FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string        `env:"MEDIA_FFPROBE_PATH" envDefault:"ffprobe"`
	Width       int           `env:"MEDIA_WIDTH" envDefault:"240"`
	Height      int           `env:"MEDIA_HEIGHT" envDefault:"135"`
	Timeout     time.Duration `env:"MEDIA_EXTRACT_TIMEOUT" envDefault:"0s"`
}

type PreviewConfig struct {
	Frames      int           `env:"PREVIEW_FRAMES" envDefault:"30"`
	StartPolicy string        `env:"PREVIEW_START_POLICY" envDefault:"frame-midpoint"`
	StartOffset time.Duration `env:"PREVIEW_START_OFFSET" envDefault:"0s"`
	FrameDelay  time.Duration `env:"PREVIEW_FRAME_DELAY" envDefault:"100ms"`
	KeyPrefix   string        `env:"PREVIEW_KEY_PREFIX"`
}

type ThumbnailConfig struct {
	SheetCount int    `env:"THUMBNAIL_SHEET_COUNT" envDefault:"5"`
	KeyPrefix  string `env:"THUMBNAIL_KEY_PREFIX"`
}

type UploadConfig struct {
	MaxSizeBytes      int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"10737418240"`
	MultipartMemBytes int64 `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"52428800"`
	// Extensions lists accepted video file extensions, lower case with the dot.
	Extensions []string `env:"UPLOAD_EXTENSIONS" envSeparator:"," envDefault:".mp4,.mov,.mkv,.avi,.webm"`
}

// Load parses environment variables into Config and validates enumerations.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the generators cannot act on.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "minio", "s3":
	default:
		return fmt.Errorf("STORAGE_PROVIDER: unsupported value %q", c.Storage.Provider)
	}
	switch c.Storage.Visibility {
	case "private", "public-read":
	default:
		return fmt.Errorf("STORAGE_OUTPUT_VISIBILITY: unsupported value %q", c.Storage.Visibility)
	}
	switch c.Media.Decoder {
	case "ffmpeg", "gocv":
	default:
		return fmt.Errorf("MEDIA_DECODER: unsupported value %q", c.Media.Decoder)
	}
	switch c.Preview.StartPolicy {
	case "frame-midpoint", "duration-midpoint", "fixed":
	default:
		return fmt.Errorf("PREVIEW_START_POLICY: unsupported value %q", c.Preview.StartPolicy)
	}
	switch c.App.Runtime {
	case "", "kafka", "http", "lambda":
	default:
		return fmt.Errorf("APP_RUNTIME: unsupported value %q", c.App.Runtime)
	}
	if c.Media.Width <= 0 || c.Media.Height <= 0 {
		return fmt.Errorf("MEDIA_WIDTH/MEDIA_HEIGHT must be positive, got %dx%d", c.Media.Width, c.Media.Height)
	}
	if c.Upload.MaxSizeBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE_BYTES must be positive, got %d", c.Upload.MaxSizeBytes)
	}
	if c.Preview.Frames <= 0 {
		return fmt.Errorf("PREVIEW_FRAMES must be positive, got %d", c.Preview.Frames)
	}
	return nil
}
