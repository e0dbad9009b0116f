package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health states
const (
	StatusStarting  = "starting"
	StatusHealthy   = "healthy"
	StatusStale     = "stale"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker tracks the outcome of the most recent cycles
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	staleAfter    time.Duration
	lastCycle     time.Time
	lastError     string
	fatal         bool
	cycles        int
	openPositions int
	errors        []string
	now           func() time.Time
}

// HealthStatus is the JSON body served on /health
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastCycle     time.Time `json:"last_cycle,omitempty"`
	Cycles        int       `json:"cycles"`
	OpenPositions int       `json:"open_positions"`
	LastError     string    `json:"last_error,omitempty"`
	Uptime        string    `json:"uptime"`
	Errors        []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a checker that reports stale once no cycle has
// completed within staleAfter
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		staleAfter: staleAfter,
		errors:     make([]string, 0),
		now:        time.Now,
	}
}

// RecordCycle stores the outcome of a completed cycle. unitErrors are the
// per-unit failures the cycle tolerated.
func (h *HealthChecker) RecordCycle(at time.Time, openPositions int, fatal error, unitErrors []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCycle = at
	h.cycles++
	h.openPositions = openPositions
	h.fatal = fatal != nil
	h.lastError = ""
	if fatal != nil {
		h.lastError = fatal.Error()
	}
	h.errors = append(h.errors[:0], unitErrors...)
}

// Status computes the current health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := StatusHealthy
	switch {
	case h.fatal:
		status = StatusUnhealthy
	case h.cycles == 0:
		status = StatusStarting
	case h.staleAfter > 0 && now.Sub(h.lastCycle) > h.staleAfter:
		status = StatusStale
	}

	return HealthStatus{
		Status:        status,
		Timestamp:     now,
		LastCycle:     h.lastCycle,
		Cycles:        h.cycles,
		OpenPositions: h.openPositions,
		LastError:     h.lastError,
		Uptime:        now.Sub(h.startTime).Round(time.Second).String(),
		Errors:        append([]string(nil), h.errors...),
	}
}

// HTTPStatus maps a health state to a response code
func HTTPStatus(status string) int {
	switch status {
	case StatusUnhealthy:
		return http.StatusInternalServerError
	case StatusStale:
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(health.Status))
	json.NewEncoder(w).Encode(health)
}
