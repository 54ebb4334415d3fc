package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	appointmentsBooked     *prometheus.CounterVec
	sampleDataSeeds        *prometheus.CounterVec
	remoteRequestsTotal    *prometheus.CounterVec
	remoteRequestDuration  *prometheus.HistogramVec
	portalFallbacksTotal   *prometheus.CounterVec

	clinicMetricsOnce sync.Once
)

func initializeClinicMetrics() {
	clinicMetricsOnce.Do(func() {
		storeOperationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvstore_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"operation", "backend", "status"},
		)

		storeOperationDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvstore_operation_duration_seconds",
				Help:    "Duration of key-value store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		)

		appointmentsBooked = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_appointments_booked_total",
				Help: "Total number of appointment booking attempts",
			},
			[]string{"result"},
		)

		sampleDataSeeds = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_sample_data_seeds_total",
				Help: "Total number of sample data seeding runs",
			},
			[]string{"role", "result"},
		)

		remoteRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_remote_requests_total",
				Help: "Total number of requests made by the portal client",
			},
			[]string{"endpoint", "status"},
		)

		remoteRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_remote_request_duration_seconds",
				Help:    "Duration of portal client requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		portalFallbacksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_local_fallbacks_total",
				Help: "Total number of reads served from local data after a network failure",
			},
			[]string{"resource"},
		)

		GetInstance().registry.MustRegister(
			storeOperationsTotal,
			storeOperationDuration,
			appointmentsBooked,
			sampleDataSeeds,
			remoteRequestsTotal,
			remoteRequestDuration,
			portalFallbacksTotal,
		)
	})
}

// RecordStoreOperation records one key-value store call
func RecordStoreOperation(operation, backend string, startTime time.Time, err error) {
	if !businessMetricsEnabled() {
		return
	}
	initializeClinicMetrics()

	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	storeOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(startTime).Seconds())
}

// RecordBooking counts booking attempts by result ("success", "not_found", "invalid", "error")
func RecordBooking(result string) {
	if !businessMetricsEnabled() {
		return
	}
	initializeClinicMetrics()
	appointmentsBooked.WithLabelValues(result).Inc()
}

func RecordSeed(role, result string) {
	if !businessMetricsEnabled() {
		return
	}
	initializeClinicMetrics()
	sampleDataSeeds.WithLabelValues(role, result).Inc()
}

// RecordRemoteRequest records a call from the portal client to the API.
// statusCode 0 means the request never got a response.
func RecordRemoteRequest(endpoint string, startTime time.Time, statusCode int) {
	if !businessMetricsEnabled() {
		return
	}
	initializeClinicMetrics()

	status := "network_error"
	if statusCode != 0 {
		status = strconv.Itoa(statusCode)
	}
	remoteRequestsTotal.WithLabelValues(endpoint, status).Inc()
	remoteRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
}

func RecordFallback(resource string) {
	if !businessMetricsEnabled() {
		return
	}
	initializeClinicMetrics()
	portalFallbacksTotal.WithLabelValues(resource).Inc()
}
