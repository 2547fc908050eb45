package domain

import (
	"fmt"
	"time"
)

type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "open"
	IncidentStatusResolved IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	return s == IncidentStatusOpen || s == IncidentStatusResolved
}

type Incident struct {
	ID           string         `json:"id"`
	ServiceID    string         `json:"service_id"`
	Name         string         `json:"name"`
	IssueMessage string         `json:"issue_message"`
	Status       IncidentStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsOpen reports whether the incident still affects its service.
func (i *Incident) IsOpen() bool {
	return i.Status == IncidentStatusOpen
}

// AutoIncidentName returns the name of the incident created when a service
// leaves Operational without an open incident.
func AutoIncidentName(status ServiceStatus) string {
	return fmt.Sprintf("Auto Incident – %s", status)
}

// AutoIncidentMessage returns the issue message of an auto-created incident.
func AutoIncidentMessage(from, to ServiceStatus) string {
	return fmt.Sprintf("Auto-generated incident due to status change from %s to %s", from, to)
}
