package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecompare_runs_total",
		Help: "Total number of comparison runs, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecompare_stage_duration_seconds",
		Help:    "Duration of each comparison stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	ScreenshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecompare_screenshots_total",
		Help: "Total number of screenshots attempted, by result",
	}, []string{"result"})

	TracksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecompare_tracks_dropped_total",
		Help: "Total number of tracks dropped by the processing pipeline",
	})

	UploadRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecompare_upload_requests_total",
		Help: "Total number of slow.pics requests, by stage and status code",
	}, []string{"stage", "code"})

	UploadRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecompare_upload_retries_total",
		Help: "Total number of retried slow.pics requests",
	}, []string{"stage"})

	ChunkFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecompare_chunk_fallbacks_total",
		Help: "Total number of uploads split into chunks after a failed whole batch",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecompare_active_runs",
		Help: "Number of comparison runs in progress",
	})
)
