package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics tracks frame-loop, dispatch, and transport counters alongside the
// ambient process/API metrics the ops HTTP surface exposes.
type Metrics struct {
	// Frame loop metrics
	FrameCount    int64   `json:"frame_count"`
	OverrunCount  int64   `json:"overrun_count"`
	CurrentFPS    float64 `json:"current_fps"`
	ActiveScenes  int64   `json:"active_scenes"`

	// Control dispatch metrics
	DispatchedMessages int64 `json:"dispatched_messages"`
	DispatchErrors     int64 `json:"dispatch_errors"`
	HandlerTimeouts    int64 `json:"handler_timeouts"`

	// Output transport metrics
	TransportSends  int64 `json:"transport_sends"`
	TransportErrors int64 `json:"transport_errors"`

	// System metrics
	Uptime         int64   `json:"uptime_seconds"`
	MemoryUsed     uint64  `json:"memory_used_bytes"`
	MemoryTotal    uint64  `json:"memory_total_bytes"`
	GoroutineCount int     `json:"goroutine_count"`

	// Ops API metrics
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`

	mu        sync.RWMutex
	startTime time.Time
}

// NewMetrics constructs a Metrics with its uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordFrame updates the rolling frame-loop counters from the engine.
func (m *Metrics) RecordFrame(frameCount, overrunCount uint64, fps float64, activeScenes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FrameCount = int64(frameCount)
	m.OverrunCount = int64(overrunCount)
	m.CurrentFPS = fps
	m.ActiveScenes = int64(activeScenes)
}

// IncrementDispatched counts one successfully routed control message.
func (m *Metrics) IncrementDispatched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchedMessages++
}

// IncrementDispatchErrors counts one control message that failed to decode
// or had no matching handler.
func (m *Metrics) IncrementDispatchErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchErrors++
}

// IncrementHandlerTimeouts counts one handler that exceeded the soft
// per-handler timeout.
func (m *Metrics) IncrementHandlerTimeouts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandlerTimeouts++
}

// RecordTransportSend counts one frame send attempt and whether it failed.
func (m *Metrics) RecordTransportSend(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransportSends++
	if failed {
		m.TransportErrors++
	}
}

// IncrementRequests counts one ops HTTP request.
func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

// IncrementErrors counts one ops HTTP request that returned >=400.
func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalErrors++
}

// RecordResponseTime folds duration into an exponential moving average.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := float64(duration.Milliseconds())
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = ms
	} else {
		m.AvgResponseTime = (m.AvgResponseTime * 0.9) + (ms * 0.1)
	}
}

// UpdateSystemMetrics refreshes uptime, memory, and goroutine counters.
func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uptime = int64(time.Since(m.startTime).Seconds())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsed = memStats.Alloc
	m.MemoryTotal = memStats.Sys

	m.GoroutineCount = runtime.NumGoroutine()
}

// GetMetrics returns a JSON-ready snapshot.
func (m *Metrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"frame_loop": map[string]interface{}{
			"frame_count":   m.FrameCount,
			"overrun_count": m.OverrunCount,
			"fps":           m.CurrentFPS,
			"active_scenes": m.ActiveScenes,
		},
		"dispatch": map[string]interface{}{
			"dispatched":       m.DispatchedMessages,
			"errors":           m.DispatchErrors,
			"handler_timeouts": m.HandlerTimeouts,
		},
		"transport": map[string]interface{}{
			"sends":  m.TransportSends,
			"errors": m.TransportErrors,
			"error_rate": func() float64 {
				if m.TransportSends == 0 {
					return 0.0
				}
				return float64(m.TransportErrors) / float64(m.TransportSends) * 100
			}(),
		},
		"system": map[string]interface{}{
			"uptime_seconds":     m.Uptime,
			"memory_used_bytes":  m.MemoryUsed,
			"memory_total_bytes": m.MemoryTotal,
			"memory_used_mb":     m.MemoryUsed / 1024 / 1024,
			"goroutines":         m.GoroutineCount,
		},
		"api": map[string]interface{}{
			"total_requests":       m.TotalRequests,
			"total_errors":         m.TotalErrors,
			"avg_response_time_ms": m.AvgResponseTime,
			"error_rate": func() float64 {
				if m.TotalRequests == 0 {
					return 0.0
				}
				return float64(m.TotalErrors) / float64(m.TotalRequests) * 100
			}(),
		},
	}
}

// PrometheusFormat renders the metrics in Prometheus text exposition format.
func (m *Metrics) PrometheusFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return `# HELP ledengine_frame_count_total Total frames rendered
# TYPE ledengine_frame_count_total counter
ledengine_frame_count_total ` + formatInt64(m.FrameCount) + `

# HELP ledengine_overrun_count_total Total frame loop overruns
# TYPE ledengine_overrun_count_total counter
ledengine_overrun_count_total ` + formatInt64(m.OverrunCount) + `

# HELP ledengine_fps Current rolling frames per second
# TYPE ledengine_fps gauge
ledengine_fps ` + formatFloat64(m.CurrentFPS) + `

# HELP ledengine_active_scenes Number of loaded scenes
# TYPE ledengine_active_scenes gauge
ledengine_active_scenes ` + formatInt64(m.ActiveScenes) + `

# HELP ledengine_dispatch_total Total control messages dispatched
# TYPE ledengine_dispatch_total counter
ledengine_dispatch_total ` + formatInt64(m.DispatchedMessages) + `

# HELP ledengine_dispatch_errors_total Total control messages that failed to dispatch
# TYPE ledengine_dispatch_errors_total counter
ledengine_dispatch_errors_total ` + formatInt64(m.DispatchErrors) + `

# HELP ledengine_handler_timeouts_total Total control handlers exceeding the soft timeout
# TYPE ledengine_handler_timeouts_total counter
ledengine_handler_timeouts_total ` + formatInt64(m.HandlerTimeouts) + `

# HELP ledengine_transport_sends_total Total output frame send attempts
# TYPE ledengine_transport_sends_total counter
ledengine_transport_sends_total ` + formatInt64(m.TransportSends) + `

# HELP ledengine_transport_errors_total Total output frame send failures
# TYPE ledengine_transport_errors_total counter
ledengine_transport_errors_total ` + formatInt64(m.TransportErrors) + `

# HELP ledengine_uptime_seconds Uptime in seconds
# TYPE ledengine_uptime_seconds gauge
ledengine_uptime_seconds ` + formatInt64(m.Uptime) + `

# HELP ledengine_memory_used_bytes Memory used in bytes
# TYPE ledengine_memory_used_bytes gauge
ledengine_memory_used_bytes ` + formatUint64(m.MemoryUsed) + `

# HELP ledengine_goroutines Number of goroutines
# TYPE ledengine_goroutines gauge
ledengine_goroutines ` + formatInt(m.GoroutineCount) + `

# HELP ledengine_api_requests_total Total number of ops API requests
# TYPE ledengine_api_requests_total counter
ledengine_api_requests_total ` + formatInt64(m.TotalRequests) + `

# HELP ledengine_api_errors_total Total number of ops API errors
# TYPE ledengine_api_errors_total counter
ledengine_api_errors_total ` + formatInt64(m.TotalErrors) + `

# HELP ledengine_api_response_time_ms Average ops API response time in milliseconds
# TYPE ledengine_api_response_time_ms gauge
ledengine_api_response_time_ms ` + formatFloat64(m.AvgResponseTime) + `
`
}

// Middleware is a fiber middleware that records request counts, error
// counts, and response times.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		m.IncrementRequests()

		err := c.Next()

		duration := time.Since(start)
		m.RecordResponseTime(duration)

		if c.Response().StatusCode() >= 400 {
			m.IncrementErrors()
		}

		return err
	}
}

func formatInt64(n int64) string {
	return fmt.Sprintf("%d", n)
}

func formatUint64(n uint64) string {
	return fmt.Sprintf("%d", n)
}

func formatInt(n int) string {
	return fmt.Sprintf("%d", n)
}

func formatFloat64(n float64) string {
	return fmt.Sprintf("%.2f", n)
}
