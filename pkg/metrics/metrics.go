// Package metrics exposes Prometheus counters for the reader and writer.
//
// Every metric is labelled with the logical dataset name so that a process
// reading several datasets can tell them apart.
//
// # Basic Usage
//
//	metrics.RowsIterated.WithLabelValues("DecayTree").Inc()
//
//	timer := metrics.NewTimer("open")
//	f, err := backend.Open(ctx, path, dataset)
//	metrics.FileOpenSeconds.WithLabelValues(dataset).Observe(timer.Stop().Seconds())
//
// Serve exposes the default registry over HTTP for long-running jobs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// RowsIterated counts rows visited by the row iterator.
	RowsIterated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_iterated_total",
			Help: "Total number of rows visited by iterators",
		},
		[]string{"dataset"},
	)

	// ColumnDecodes counts single-row column decodes performed by the cache.
	ColumnDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_column_decodes_total",
			Help: "Total number of column values decoded from backing files",
		},
		[]string{"dataset"},
	)

	// BufferReallocations counts cache buffer growth events.
	BufferReallocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_buffer_reallocations_total",
			Help: "Total number of column cache buffer reallocations",
		},
		[]string{"dataset"},
	)

	// FormulaCompilations counts formula texts compiled by sessions.
	FormulaCompilations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_formula_compilations_total",
			Help: "Total number of formulas compiled",
		},
		[]string{"dataset"},
	)

	// RowsWritten counts rows committed by writers.
	// Labels: dataset, mode (unified/independent)
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_written_total",
			Help: "Total number of rows committed by writers",
		},
		[]string{"dataset", "mode"},
	)

	// WriterDiagnostics counts writer-side problems that were logged and
	// skipped rather than returned.
	// Labels: dataset, kind (unknown_column/type_mismatch)
	WriterDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_writer_diagnostics_total",
			Help: "Total number of writer diagnostics",
		},
		[]string{"dataset", "kind"},
	)

	// FileOpenSeconds tracks how long backing files take to open.
	FileOpenSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strata_file_open_seconds",
			Help:    "Backing file open latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"dataset"},
	)

	// Throughput tracks rows per second of the most recent iteration window.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_throughput_rows_per_second",
			Help: "Current iteration throughput in rows per second",
		},
		[]string{"dataset"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	dataset   string
	now       func() time.Time
}

// NewThroughputTracker creates a tracker for one dataset.
func NewThroughputTracker(dataset string, now func() time.Time) *ThroughputTracker {
	if now == nil {
		now = time.Now
	}
	return &ThroughputTracker{
		lastReset: now(),
		dataset:   dataset,
		now:       now,
	}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns rows per second since the last reset, publishes it to
// the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := now.Sub(t.lastReset).Seconds()
	if elapsed <= 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = now

	Throughput.WithLabelValues(t.dataset).Set(throughput)
	return throughput
}

// Memory is a snapshot of this process's memory use.
type Memory struct {
	RSS     uint64
	VMS     uint64
	Percent float32
}

// ProcessMemory reports the current process's resident and virtual memory.
func ProcessMemory() (Memory, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Memory{}, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return Memory{}, err
	}
	pct, _ := proc.MemoryPercent()
	return Memory{RSS: info.RSS, VMS: info.VMS, Percent: pct}, nil
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
