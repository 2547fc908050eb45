package status

import "github.com/bissquit/statusroom/internal/domain"

// statusAfterIncidentOpened returns the service status once an incident is
// opened. Only Operational is forced down; worse statuses are kept.
func statusAfterIncidentOpened(current domain.ServiceStatus) domain.ServiceStatus {
	if current.IsOperational() {
		return domain.ServiceStatusDegraded
	}
	return current
}

// statusAfterIncidentClosed returns the service status once an incident is
// resolved or deleted and openRemaining incidents are still open.
func statusAfterIncidentClosed(current domain.ServiceStatus, openRemaining int) domain.ServiceStatus {
	if openRemaining == 0 {
		return domain.ServiceStatusOperational
	}
	return current
}

// statusChangePlan lists the incident side effects of a manual status edit.
type statusChangePlan struct {
	resolveOpen  bool
	autoIncident bool
}

// planStatusChange decides the incident side effects of moving a service to
// next while openCount incidents are open.
//
// A non-Operational target with no open incident gets exactly one auto
// incident; this is the Operational -> degraded transition, and also repairs
// rows that violate the open-incident invariant.
func planStatusChange(next domain.ServiceStatus, openCount int) statusChangePlan {
	if next.IsOperational() {
		return statusChangePlan{resolveOpen: openCount > 0}
	}
	return statusChangePlan{autoIncident: openCount == 0}
}
