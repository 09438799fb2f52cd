package traffic

import (
	"net/http"
	"time"
)

// Status is the service state reported by /health.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusIdle         Status = "idle"
	StatusDegraded     Status = "degraded"
	StatusOverloaded   Status = "overloaded"
	StatusShuttingDown Status = "shutting-down"
)

// HTTPCode maps a status to the /health response code. Idle still serves traffic.
func (s Status) HTTPCode() int {
	switch s {
	case StatusHealthy, StatusIdle:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

// Thresholds configures when the tracker reports overloaded, degraded or idle.
// A zero window disables the corresponding check.
type Thresholds struct {
	RateLimitRPS         int
	OverloadWindow       time.Duration
	OverloadThresholdPct int

	DegradedWindow   time.Duration
	DegradedErrorPct int

	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
}

// Assessment is the outcome of Evaluate.
type Assessment struct {
	Status Status
	Reason string
}

// Evaluate applies the health decision order:
// shutting-down > overloaded > degraded > idle > healthy.
func (t *Tracker) Evaluate(th Thresholds, shuttingDown bool, uptime time.Duration) Assessment {
	if shuttingDown {
		return Assessment{StatusShuttingDown, "signal"}
	}
	if th.OverloadWindow > 0 && th.RateLimitRPS > 0 && th.OverloadThresholdPct > 0 {
		limit := float64(th.RateLimitRPS) * th.OverloadWindow.Seconds() * float64(th.OverloadThresholdPct) / 100
		if float64(t.RequestCount(th.OverloadWindow)) > limit {
			return Assessment{StatusOverloaded, "overload_threshold"}
		}
	}
	if th.DegradedWindow > 0 && th.DegradedErrorPct > 0 {
		errs, total := t.ErrorRate(th.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(th.DegradedErrorPct) {
			return Assessment{StatusDegraded, "error_rate_breach"}
		}
	}
	if th.IdleWindow > 0 && uptime >= th.MinimumLifespan {
		perMin := float64(t.RequestCount(th.IdleWindow)) / th.IdleWindow.Minutes()
		if perMin < float64(th.IdleThresholdReqPerMin) {
			return Assessment{StatusIdle, "low_traffic"}
		}
	}
	return Assessment{Status: StatusHealthy}
}
