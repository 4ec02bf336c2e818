package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
	"github.com/your-org/framegen/internal/preview"
	"github.com/your-org/framegen/pkg/config"
	"github.com/your-org/framegen/pkg/decoder"
	"github.com/your-org/framegen/pkg/kafka"
	"github.com/your-org/framegen/pkg/logger"
	"github.com/your-org/framegen/pkg/metrics"
	"github.com/your-org/framegen/pkg/storage/objectstore"
	"github.com/your-org/framegen/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	runtime := cfg.App.Runtime
	if runtime == "" {
		runtime = "kafka"
	}
	if runtime != "kafka" && runtime != "lambda" {
		log.Fatalf("APP_RUNTIME %q is not supported by the preview generator", runtime)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.LogEncoding, cfg.App.Name+"-preview")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name + "-preview",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	metricsServer := metrics.StartServer(cfg.Metrics.Addr, logr)

	store, err := objectstore.New(ctx, objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	if cfg.Storage.EnsureBuckets {
		if err := store.EnsureBuckets(ctx, cfg.Storage.PreviewBucket); err != nil {
			logr.Fatal("ensure buckets", zap.Error(err))
		}
	}

	dec, err := decoder.New(decoder.Config{
		Backend:     cfg.Media.Decoder,
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
		ScratchDir:  cfg.App.TempDir,
		Timeout:     cfg.Media.Timeout,
	})
	if err != nil {
		logr.Fatal("init decoder", zap.Error(err))
	}

	policy, err := media.ParseStartPolicy(cfg.Preview.StartPolicy)
	if err != nil {
		logr.Fatal("parse start policy", zap.Error(err))
	}

	params := preview.Params{
		Store:   store,
		Decoder: dec,
		Logger:  logr,
		Selector: media.Selector{
			Policy: policy,
			Frames: cfg.Preview.Frames,
			Offset: cfg.Preview.StartOffset,
		},
		Size:         decoder.Resolution{Width: cfg.Media.Width, Height: cfg.Media.Height},
		FrameDelay:   cfg.Preview.FrameDelay,
		OutputBucket: cfg.Storage.PreviewBucket,
		KeyPrefix:    cfg.Preview.KeyPrefix,
		Visibility:   objectstore.Visibility(cfg.Storage.Visibility),
		TempDir:      cfg.App.TempDir,
	}

	var producers []*kafka.Producer
	newProducer := func(topic string) *kafka.Producer {
		p := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		producers = append(producers, p)
		return p
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, p := range producers {
			if err := p.Close(shutdownCtx); err != nil {
				logr.Error("producer shutdown failed", zap.Error(err))
			}
		}
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx) //nolint:errcheck
		}
	}()

	if !cfg.Kafka.EventsDisabled {
		params.Publisher = newProducer(cfg.Kafka.EventsTopic)
	}
	service := preview.NewService(params)

	if runtime == "lambda" {
		logr.Info("preview generator starting", zap.String("runtime", runtime))
		lambda.StartWithOptions(service.HandleS3Event, lambda.WithContext(ctx))
		return
	}

	var deadLetter kafka.Publisher
	if cfg.Kafka.DeadLetterTopic != "" {
		deadLetter = newProducer(cfg.Kafka.DeadLetterTopic)
	}
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.NotificationTopic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.Kafka.MaxWait,
	}, deadLetter, logr)
	defer consumer.Close() //nolint:errcheck

	logr.Info("preview generator starting",
		zap.String("runtime", runtime),
		zap.String("topic", cfg.Kafka.NotificationTopic),
		zap.String("group", cfg.Kafka.GroupID),
	)
	err = consumer.Run(ctx, func(ctx context.Context, msg kafkago.Message) error {
		return service.HandleNotification(ctx, msg.Value)
	})
	if err != nil {
		logr.Error("consumer stopped", zap.Error(err))
		return
	}
	logr.Info("preview generator stopped")
}
