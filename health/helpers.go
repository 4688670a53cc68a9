package health

import (
	"strings"
	"time"
)

const (
	stateHealthy   = "healthy"
	stateUnhealthy = "unhealthy"
	stateDegraded  = "degraded"
)

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == stateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, stateHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, stateUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, stateDegraded, message)
}

// Aggregate folds sub-statuses into one: unhealthy if any child is unhealthy,
// otherwise degraded if any child is degraded, otherwise healthy.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "nothing to check")
	}

	var unhealthy, degraded []string
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component, "unhealthy: "+strings.Join(unhealthy, ", "))
	case len(degraded) > 0:
		status = NewDegraded(component, "degraded: "+strings.Join(degraded, ", "))
	default:
		status = NewHealthy(component, "all checks passed")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)

	return status
}
