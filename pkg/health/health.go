package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// Checker is a single component health probe.
type Checker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

// Manager runs registered checkers and reports combined health.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	started  time.Time
}

func NewManager() *Manager {
	return &Manager{started: time.Now()}
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Check runs all checkers. Overall status is the worst component status.
func (m *Manager) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	checkers := append([]Checker{}, m.checkers...)
	m.mu.RUnlock()

	sys := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Uptime:     time.Since(m.started),
		Components: make(map[string]ComponentHealth, len(checkers)),
	}
	for _, c := range checkers {
		h := c.Check(ctx)
		sys.Components[c.Name()] = h
		switch h.Status {
		case HealthStatusUnhealthy:
			sys.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if sys.Status == HealthStatusHealthy {
				sys.Status = HealthStatusDegraded
			}
		}
	}
	return sys
}

// Handler exposes health as JSON; 503 when unhealthy.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		sys := m.Check(ctx)
		w.Header().Set("Content-Type", "application/json")
		if sys.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(sys)
	})
}

// DBChecker probes database connectivity with a ping.
type DBChecker struct {
	DB *sql.DB
}

func (c *DBChecker) Name() string { return "database" }

func (c *DBChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	h := ComponentHealth{Name: "database", Status: HealthStatusHealthy, LastChecked: start}
	if err := c.DB.PingContext(ctx); err != nil {
		h.Status = HealthStatusUnhealthy
		h.Error = err.Error()
		h.Message = "ping failed"
	}
	h.Duration = time.Since(start)
	return h
}
