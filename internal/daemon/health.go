package daemon

import (
	"time"

	"git.home.luguber.info/inful/nasstate/internal/relay"
	"git.home.luguber.info/inful/nasstate/internal/services"
	"git.home.luguber.info/inful/nasstate/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// Health runs every check. The daemon is unhealthy when it is not running
// and degraded when the relay is not connected.
func (d *Daemon) Health() HealthResponse {
	checks := []HealthCheck{d.checkDaemon(), d.checkStore()}
	checks = append(checks, d.checkServices()...)
	if d.monitor != nil {
		checks = append(checks, d.checkRelay())
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}
	return HealthResponse{
		Status:    overall,
		Timestamp: d.clock.Now(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func (d *Daemon) checkDaemon() HealthCheck {
	if s := d.Status(); s != StatusRunning {
		return HealthCheck{Name: "daemon", Status: HealthStatusUnhealthy, Message: "daemon is " + string(s)}
	}
	return HealthCheck{Name: "daemon", Status: HealthStatusHealthy}
}

func (d *Daemon) checkStore() HealthCheck {
	if d.store.Version() == 0 {
		return HealthCheck{Name: "store", Status: HealthStatusDegraded, Message: "no state loaded yet"}
	}
	return HealthCheck{Name: "store", Status: HealthStatusHealthy}
}

func (d *Daemon) checkRelay() HealthCheck {
	st := d.monitor.Status()
	c := HealthCheck{Name: "relay", Status: HealthStatusHealthy, Message: string(st.Status)}
	switch st.Status {
	case relay.StatusConnected:
	case relay.StatusError:
		c.Status = HealthStatusDegraded
		if st.Error != nil {
			c.Message = *st.Error
		}
	default:
		c.Status = HealthStatusDegraded
	}
	return c
}

// checkServices reports components that failed to start or stop.
func (d *Daemon) checkServices() []HealthCheck {
	var checks []HealthCheck
	for _, info := range d.services.AllServiceInfo() {
		if info.Status == services.StatusFailed {
			checks = append(checks, HealthCheck{
				Name:    "service:" + info.Name,
				Status:  HealthStatusUnhealthy,
				Message: info.LastError,
			})
		}
	}
	return checks
}
