package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/ingestion"
	"github.com/your-org/framegen/internal/thumbnail"
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
		runtime = "http"
	}
	if runtime != "http" && runtime != "lambda" {
		log.Fatalf("APP_RUNTIME %q is not supported by the thumbnail generator", runtime)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.LogEncoding, cfg.App.Name+"-thumbnail")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name + "-thumbnail",
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
		if err := store.EnsureBuckets(ctx, cfg.Storage.SourceBucket, cfg.Storage.ThumbnailBucket); err != nil {
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

	params := thumbnail.Params{
		Store:        store,
		Decoder:      dec,
		Logger:       logr,
		Size:         decoder.Resolution{Width: cfg.Media.Width, Height: cfg.Media.Height},
		SourceBucket: cfg.Storage.SourceBucket,
		OutputBucket: cfg.Storage.ThumbnailBucket,
		KeyPrefix:    cfg.Thumbnail.KeyPrefix,
		Visibility:   objectstore.Visibility(cfg.Storage.Visibility),
		SheetCount:   cfg.Thumbnail.SheetCount,
		TempDir:      cfg.App.TempDir,
	}

	var producer *kafka.Producer
	if !cfg.Kafka.EventsDisabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		params.Publisher = producer
	}
	service := thumbnail.NewService(params)

	if runtime == "lambda" {
		logr.Info("thumbnail generator starting", zap.String("runtime", runtime))
		lambda.StartWithOptions(service.Generate, lambda.WithContext(ctx))
		return
	}

	uploadParams := ingestion.Params{
		Store:      store,
		Logger:     logr,
		Bucket:     cfg.Storage.SourceBucket,
		Extensions: cfg.Upload.Extensions,
	}
	if producer != nil {
		uploadParams.Publisher = producer
	}
	uploads := ingestion.NewService(uploadParams)
	uploadHandler := ingestion.NewHTTPHandler(uploads, logr, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes)

	handler := thumbnail.NewHTTPHandler(service, logr, cfg.HTTP.WriteTimeout, uploadHandler.Routes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx) //nolint:errcheck
		}
		if producer != nil {
			if err := producer.Close(shutdownCtx); err != nil {
				logr.Error("producer shutdown failed", zap.Error(err))
			}
		}
	}()

	logr.Info("thumbnail generator starting",
		zap.String("runtime", runtime),
		zap.String("addr", cfg.HTTP.Addr),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}
