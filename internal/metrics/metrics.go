// Package metrics exposes prometheus collectors for mining runs and the
// task scheduler.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panda-miner/pkg/utils"
)

const namespace = "panda"

// Collector owns a registry and every mining metric. It satisfies
// miner.Recorder.
type Collector struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runPatterns    prometheus.Histogram
	runCompression prometheus.Histogram
	patternArea    prometheus.Histogram
	patternNoise   prometheus.Histogram
	tasks          *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	activeWorkers  prometheus.Gauge
}

// NewCollector registers all metrics on a fresh registry, together with
// the go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "runs_total",
			Help:      "Mining runs by stop reason and outcome",
		}, []string{"stop_reason", "status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one mining run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		runPatterns: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "patterns_per_run",
			Help:      "Patterns committed per run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		}),
		runCompression: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "compression_ratio",
			Help:      "Final cost divided by initial cost",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		patternArea: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pattern",
			Name:      "area_cells",
			Help:      "Cells covered by a committed pattern",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		patternNoise: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pattern",
			Name:      "false_positives",
			Help:      "False positive cells of a committed pattern",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 500},
		}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Tasks finished by terminal status",
		}, []string{"status"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Tasks waiting for a worker",
		}),
		activeWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_workers",
			Help:      "Workers currently mining",
		}),
	}
}

// ObservePattern records one committed pattern.
func (c *Collector) ObservePattern(area, falsePositives int, _ float64) {
	c.patternArea.Observe(float64(area))
	c.patternNoise.Observe(float64(falsePositives))
}

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(stopReason string, elapsed time.Duration, patterns int, compressionRatio float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.runs.WithLabelValues(stopReason, status).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	c.runPatterns.Observe(float64(patterns))
	c.runCompression.Observe(compressionRatio)
}

// ObserveTask counts a task reaching a terminal status.
func (c *Collector) ObserveTask(status string) {
	c.tasks.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the scheduler backlog.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// SetActiveWorkers reports the number of busy workers.
func (c *Collector) SetActiveWorkers(n int) {
	c.activeWorkers.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Server exposes the collector over HTTP.
type Server struct {
	server *http.Server
	logger utils.Logger
}

// NewServer builds a metrics server on addr serving path.
func NewServer(c *Collector, addr, path string, logger utils.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Metrics server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error: %v", err)
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the server's mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
