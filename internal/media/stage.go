package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/your-org/framegen/pkg/metrics"
)

// Workdir creates a private scratch directory under root. The returned
// cleanup removes it and everything inside.
func Workdir(root string) (string, func(), error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("create workdir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// Stage runs fn inside a span named after the stage and records its
// duration under the given artifact kind.
func Stage(ctx context.Context, kind, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer(kind).Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(kind, name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
