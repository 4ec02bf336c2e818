package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArtifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaflow_artifacts_total",
		Help: "Generated artifacts by kind and outcome",
	}, []string{"kind", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediaflow_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "stage"})

	FramesExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaflow_frames_extracted_total",
		Help: "Frames decoded across all invocations",
	}, []string{"kind"})
)
