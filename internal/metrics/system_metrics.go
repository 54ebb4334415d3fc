package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager owns the registry every metric in this package is
// registered with.
type MetricsManager struct {
	registry *prometheus.Registry

	mu      sync.Mutex
	started bool
	hostCPU *prometheus.GaugeVec
	hostMem *prometheus.GaugeVec
	runtime *prometheus.GaugeVec
	gcPause prometheus.Histogram
}

var (
	instance *MetricsManager
	once     sync.Once
)

func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{registry: prometheus.NewRegistry()}
	})
	return instance
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

// register adds the host and runtime collectors once.
func (mm *MetricsManager) register() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.started {
		return
	}

	mm.hostCPU = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "system_cpu_usage_percent",
		Help: "CPU usage per core",
	}, []string{"core"})
	mm.hostMem = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "system_memory_usage_bytes",
		Help: "Host memory by kind",
	}, []string{"type"})
	mm.runtime = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clinic_runtime",
		Help: "Go runtime readings sampled by the collector loop",
	}, []string{"stat"})
	mm.gcPause = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinic_gc_pause_nanoseconds",
		Help:    "Most recent GC pause at each sample",
		Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
	})

	mm.registry.MustRegister(
		mm.hostCPU,
		mm.hostMem,
		mm.runtime,
		mm.gcPause,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mm.started = true
}

// StartSystemMetrics samples host and runtime metrics every interval until
// ctx ends. It does nothing unless ENABLE_SYSTEM_METRICS=true.
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	if os.Getenv("ENABLE_SYSTEM_METRICS") != "true" {
		return
	}

	mm := GetInstance()
	mm.register()
	mm.sample()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.sample()
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("System metrics collection started")
}

func (mm *MetricsManager) sample() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if !mm.started {
		return
	}

	if perCore, err := cpu.Percent(0, true); err == nil {
		for i, pct := range perCore {
			mm.hostCPU.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(pct)
		}
	} else {
		log.Debug().Err(err).Msg("CPU sample failed")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		for kind, v := range map[string]uint64{
			"total":     vm.Total,
			"available": vm.Available,
			"used":      vm.Used,
			"free":      vm.Free,
		} {
			mm.hostMem.WithLabelValues(kind).Set(float64(v))
		}
	} else {
		log.Debug().Err(err).Msg("Memory sample failed")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	for stat, v := range map[string]float64{
		"goroutines":       float64(runtime.NumGoroutine()),
		"gomaxprocs":       float64(runtime.GOMAXPROCS(0)),
		"heap_alloc_bytes": float64(ms.HeapAlloc),
		"heap_sys_bytes":   float64(ms.HeapSys),
		"gc_cpu_fraction":  ms.GCCPUFraction,
	} {
		mm.runtime.WithLabelValues(stat).Set(v)
	}
	mm.gcPause.Observe(float64(ms.PauseNs[(ms.NumGC+255)%256]))
}
