package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 240, cfg.Media.Width)
	assert.Equal(t, 135, cfg.Media.Height)
	assert.Equal(t, 30, cfg.Preview.Frames)
	assert.Equal(t, "frame-midpoint", cfg.Preview.StartPolicy)
	assert.Equal(t, "public-read", cfg.Storage.Visibility)
	assert.Equal(t, time.Duration(0), cfg.Media.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(10737418240), cfg.Upload.MaxSizeBytes)
	assert.Contains(t, cfg.Upload.Extensions, ".mp4")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PREVIEW_START_POLICY", "duration-midpoint")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MEDIA_EXTRACT_TIMEOUT", "90s")
	t.Setenv("STORAGE_PROVIDER", "s3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "duration-midpoint", cfg.Preview.StartPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Media.Timeout)
	assert.Equal(t, "s3", cfg.Storage.Provider)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"STORAGE_PROVIDER":          "ftp",
		"MEDIA_DECODER":             "vlc",
		"PREVIEW_START_POLICY":      "random",
		"APP_RUNTIME":               "grpc",
		"STORAGE_OUTPUT_VISIBILITY": "public-read-write",
		"PREVIEW_FRAMES":            "0",
		"UPLOAD_MAX_SIZE_BYTES":     "0",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			assert.ErrorContains(t, err, name)
		})
	}
}
