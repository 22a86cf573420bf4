package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// System call metrics
	SyscallsTotal   *prometheus.CounterVec
	SyscallDuration *prometheus.HistogramVec
	KillsTotal      *prometheus.CounterVec

	// Process metrics
	ProcessesStarted prometheus.Counter
	ProcessExits     *prometheus.CounterVec
	ProcessesActive  prometheus.Gauge

	// Kernel memory metrics
	ArenaLive        *prometheus.GaugeVec
	ArenaLimit       *prometheus.GaugeVec
	ArenaAllocations *prometheus.GaugeVec

	// Filesystem metrics
	FSLockWait prometheus.Histogram

	// Admin HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	Syscalls        int64          `json:"syscalls"`
	Kills           int64          `json:"kills"`
	ProcessesActive int64          `json:"processes_active"`
	ProcessesTotal  int64          `json:"processes_total"`
	ArenaLive       map[string]int    `json:"arena_live"`
	ArenaLimit      map[string]int    `json:"arena_limit"`
	ArenaAllocated  map[string]uint64 `json:"arena_allocated"`
	UptimeSeconds   float64           `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		snapshot: MetricsSnapshot{
			ArenaLive:      make(map[string]int),
			ArenaLimit:     make(map[string]int),
			ArenaAllocated: make(map[string]uint64),
		},

		// System call metrics
		SyscallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_syscalls_total",
				Help: "Total number of system calls dispatched",
			},
			[]string{"call"},
		),
		SyscallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_syscall_duration_seconds",
				Help:    "System call handling time in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"call"},
		),
		KillsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_process_kills_total",
				Help: "Processes terminated for protocol violations",
			},
			[]string{"reason"},
		),

		// Process metrics
		ProcessesStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_processes_started_total",
				Help: "Total number of processes started",
			},
		),
		ProcessExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_process_exits_total",
				Help: "Total number of process exits by outcome",
			},
			[]string{"outcome"},
		),
		ProcessesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_processes_active",
				Help: "Number of running processes",
			},
		),

		// Kernel memory metrics
		ArenaLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kernel_arena_live_objects",
				Help: "Live objects per kernel arena",
			},
			[]string{"arena"},
		),
		ArenaLimit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kernel_arena_limit",
				Help: "Capacity per kernel arena, zero when unbounded",
			},
			[]string{"arena"},
		),
		ArenaAllocations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kernel_arena_allocations",
				Help: "Allocations ever made per kernel arena",
			},
			[]string{"arena"},
		),

		// Filesystem metrics
		FSLockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kernel_fs_lock_wait_seconds",
				Help:    "Time spent waiting for the global filesystem lock",
				Buckets: []float64{.000001, .00001, .0001, .001, .01, .1},
			},
		),

		// Admin HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_admin_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_admin_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "kernel_uptime_seconds",
			Help: "Machine uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSyscall records one dispatched system call
func (m *Metrics) RecordSyscall(call string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SyscallsTotal.WithLabelValues(call).Inc()
	m.SyscallDuration.WithLabelValues(call).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Syscalls++
	m.mu.Unlock()
}

// RecordKill records a forced termination
func (m *Metrics) RecordKill(reason string) {
	if m == nil {
		return
	}
	m.KillsTotal.WithLabelValues(reason).Inc()

	m.mu.Lock()
	m.snapshot.Kills++
	m.mu.Unlock()
}

// ProcessStarted records a process start
func (m *Metrics) ProcessStarted() {
	if m == nil {
		return
	}
	m.ProcessesStarted.Inc()
	m.ProcessesActive.Inc()

	m.mu.Lock()
	m.snapshot.ProcessesActive++
	m.snapshot.ProcessesTotal++
	m.mu.Unlock()
}

// ProcessExited records a process exit with the given status
func (m *Metrics) ProcessExited(status int) {
	if m == nil {
		return
	}
	outcome := "success"
	if status != 0 {
		outcome = "failure"
	}
	m.ProcessExits.WithLabelValues(outcome).Inc()
	m.ProcessesActive.Dec()

	m.mu.Lock()
	m.snapshot.ProcessesActive--
	m.mu.Unlock()
}

// ObserveArena records the occupancy of a kernel arena
func (m *Metrics) ObserveArena(arena string, live, limit int, allocated uint64) {
	if m == nil {
		return
	}
	m.ArenaLive.WithLabelValues(arena).Set(float64(live))
	m.ArenaLimit.WithLabelValues(arena).Set(float64(limit))
	m.ArenaAllocations.WithLabelValues(arena).Set(float64(allocated))

	m.mu.Lock()
	m.snapshot.ArenaLive[arena] = live
	m.snapshot.ArenaLimit[arena] = limit
	m.snapshot.ArenaAllocated[arena] = allocated
	m.mu.Unlock()
}

// ObserveLockWait records time spent acquiring the filesystem lock
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.FSLockWait.Observe(d.Seconds())
}

// RecordHTTPRequest records an admin HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.ArenaLive = make(map[string]int, len(m.snapshot.ArenaLive))
	for k, v := range m.snapshot.ArenaLive {
		s.ArenaLive[k] = v
	}
	s.ArenaLimit = make(map[string]int, len(m.snapshot.ArenaLimit))
	for k, v := range m.snapshot.ArenaLimit {
		s.ArenaLimit[k] = v
	}
	s.ArenaAllocated = make(map[string]uint64, len(m.snapshot.ArenaAllocated))
	for k, v := range m.snapshot.ArenaAllocated {
		s.ArenaAllocated[k] = v
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
