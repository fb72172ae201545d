package intervention

import "sync"

const (
	SubsystemModel      = "model"
	SubsystemCurriculum = "curriculum"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
)

// GatewayHealth is the read-only health surface: one boolean per tracked
// subsystem plus the derived overall status.
type GatewayHealth struct {
	Status     HealthStatus    `json:"status"`
	Subsystems map[string]bool `json:"subsystems"`
}

// HealthMonitor keeps a read-mostly liveness cache. Gateways update their
// own flag after each call or probe; Snapshot recomputes the overall status
// on every read and never fails. A subsystem with no recorded state counts
// as not live.
type HealthMonitor struct {
	mu      sync.RWMutex
	tracked []string
	live    map[string]bool
}

func NewHealthMonitor(subsystems ...string) *HealthMonitor {
	if len(subsystems) == 0 {
		subsystems = []string{SubsystemModel}
	}
	return &HealthMonitor{
		tracked: subsystems,
		live:    make(map[string]bool, len(subsystems)),
	}
}

func (h *HealthMonitor) SetLive(subsystem string, live bool) {
	h.mu.Lock()
	h.live[subsystem] = live
	h.mu.Unlock()
}

func (h *HealthMonitor) Snapshot() GatewayHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := GatewayHealth{
		Status:     StatusHealthy,
		Subsystems: make(map[string]bool, len(h.tracked)),
	}
	for _, name := range h.tracked {
		live := h.live[name]
		out.Subsystems[name] = live
		if !live {
			out.Status = StatusDegraded
		}
	}
	return out
}
