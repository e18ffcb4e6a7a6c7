package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal        uint64
	RequestsInProgress   uint64
	RequestsSuccess      uint64
	RequestsFailed       uint64
	AnalysesTotal        uint64
	StageFailures        uint64
	PersistenceFallbacks uint64
	PersistenceExhausted uint64
	StartTime            time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

// IncrementSuccess increments successful request counter
func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementAnalyses increments total pipeline run counter
func IncrementAnalyses() {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
}

// AddStageFailures records the number of failed stages of one run
func AddStageFailures(n int) {
	if n > 0 {
		atomic.AddUint64(&globalMetrics.StageFailures, uint64(n))
	}
}

// IncrementPersistenceFallbacks counts runs stored on a non-primary backend
func IncrementPersistenceFallbacks() {
	atomic.AddUint64(&globalMetrics.PersistenceFallbacks, 1)
}

// IncrementPersistenceExhausted counts runs no backend accepted
func IncrementPersistenceExhausted() {
	atomic.AddUint64(&globalMetrics.PersistenceExhausted, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":        atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":  atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":      atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":       atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":        atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"stage_failures":        atomic.LoadUint64(&globalMetrics.StageFailures),
		"persistence_fallbacks": atomic.LoadUint64(&globalMetrics.PersistenceFallbacks),
		"persistence_exhausted": atomic.LoadUint64(&globalMetrics.PersistenceExhausted),
		"uptime_seconds":        time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
