// Package profiler - Stage timings and counters for the register pipeline.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pipeline stage names recorded by the grid detector and the attendance processor.
const (
	StageDecode    = "decode"
	StageBinarize  = "binarize"
	StageLines     = "lines"
	StageFuse      = "fuse"
	StageCells     = "cells"
	StageOrder     = "order"
	StageCrop      = "crop"
	StageRecognize = "recognize"
	StageClassify  = "classify"
	StageProcess   = "process"
)

// MetricsCollector defines the interface for collecting custom metrics at
// every report tick.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks operation timings and custom metrics and periodically
// logs a summary.
//
// All methods are safe for concurrent use. A nil *RuntimeProfiler is valid and
// records nothing, so pipeline code can call it unconditionally.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	log            *logrus.Entry

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	collectors     []MetricsCollector
	customMetrics  map[string]*MetricTracker
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks a rolling window of values for one custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks a rolling window of durations for one operation.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to log a status report (default: 1m).
	ReportInterval time.Duration
	// MaxSamples bounds the rolling window per metric (default: 1000).
	MaxSamples int
	// Logger receives the periodic reports (default: the logrus standard logger).
	Logger *logrus.Entry
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler.
//
// Returns:
// - A configured RuntimeProfiler instance. Reporting begins after Start.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = time.Minute
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1000
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		log:            opts.Logger.WithField("component", "profiler"),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins the periodic reporting goroutine. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.collect()
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop halts reporting and waits for the reporting goroutine to exit.
func (rp *RuntimeProfiler) Stop() {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector polled at every report tick.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric.
// - value: The metric value to record.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track, usually one of the Stage constants.
//
// Returns:
// - A function to call when the operation completes.
//
// @example
// stop := rp.StartOperation(profiler.StageBinarize)
// mask, err := grid.Binarize(img, cfg)
// stop()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		rp.recordOperationTime(name, time.Since(start))
	}
}

func (rp *RuntimeProfiler) recordOperationTime(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	tracker.minTime = min(tracker.minTime, duration)
	tracker.maxTime = max(tracker.maxTime, duration)
}

// collect polls the registered collectors.
func (rp *RuntimeProfiler) collect() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetricLocked(name, value)
		}
	}
}

// emitStatusReport logs one line per tracked operation and metric.
func (rp *RuntimeProfiler) emitStatusReport() {
	stats := rp.GetCurrentStats()

	rp.log.WithFields(logrus.Fields{
		"uptime":     stats.Uptime.Truncate(time.Second).String(),
		"goroutines": stats.Goroutines,
		"heap_alloc": stats.Memory.HeapAlloc,
		"gc_cycles":  stats.Memory.GCCycles,
	}).Info("runtime status")

	for _, op := range stats.Operations {
		rp.log.WithFields(logrus.Fields{
			"operation": op.Name,
			"count":     op.Count,
			"avg":       op.Avg.Truncate(time.Microsecond).String(),
			"min":       op.Min.Truncate(time.Microsecond).String(),
			"max":       op.Max.Truncate(time.Microsecond).String(),
		}).Debug("operation timing")
	}
	for _, m := range stats.Metrics {
		rp.log.WithFields(logrus.Fields{
			"metric": m.Name,
			"avg":    m.Avg,
			"min":    m.Min,
			"max":    m.Max,
			"count":  m.Count,
		}).Debug("custom metric")
	}
}

// Stats is a point-in-time snapshot of the profiler, suitable for JSON.
type Stats struct {
	Uptime     time.Duration    `json:"uptime_ns"`
	Goroutines int              `json:"goroutines"`
	Memory     MemoryStats      `json:"memory"`
	Operations []OperationStats `json:"operations"`
	Metrics    []MetricStats    `json:"metrics"`
}

// MemoryStats is the subset of runtime.MemStats reported by the service.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	GCCycles   uint32 `json:"gc_cycles"`
}

// OperationStats summarizes the rolling window of one operation.
type OperationStats struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
}

// MetricStats summarizes the rolling window of one custom metric.
type MetricStats struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// GetCurrentStats returns the current profiling statistics as a snapshot.
// Operations and metrics are sorted by name.
func (rp *RuntimeProfiler) GetCurrentStats() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      mem.Alloc,
			TotalAlloc: mem.TotalAlloc,
			Sys:        mem.Sys,
			HeapAlloc:  mem.HeapAlloc,
			GCCycles:   mem.NumGC,
		},
		Operations: []OperationStats{},
		Metrics:    []MetricStats{},
	}
	if rp == nil {
		return stats
	}

	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats.Uptime = time.Since(rp.startTime)

	for name, tracker := range rp.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		stats.Operations = append(stats.Operations, OperationStats{
			Name:  name,
			Count: tracker.count,
			Avg:   tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
		})
	}
	for name, tracker := range rp.customMetrics {
		if len(tracker.values) == 0 {
			continue
		}
		stats.Metrics = append(stats.Metrics, MetricStats{
			Name:  name,
			Count: tracker.count,
			Avg:   tracker.sum / float64(len(tracker.values)),
			Min:   tracker.min,
			Max:   tracker.max,
		})
	}

	sort.Slice(stats.Operations, func(i, j int) bool { return stats.Operations[i].Name < stats.Operations[j].Name })
	sort.Slice(stats.Metrics, func(i, j int) bool { return stats.Metrics[i].Name < stats.Metrics[j].Name })
	return stats
}
