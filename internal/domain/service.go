package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational   ServiceStatus = "Operational"
	ServiceStatusDegraded      ServiceStatus = "Degraded Performance"
	ServiceStatusPartialOutage ServiceStatus = "Partial Outage"
	ServiceStatusMajorOutage   ServiceStatus = "Major Outage"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartialOutage, ServiceStatusMajorOutage:
		return true
	}
	return false
}

// IsOperational reports whether the status is Operational.
func (s ServiceStatus) IsOperational() bool {
	return s == ServiceStatusOperational
}

// Service represents a monitored service owned by an organization.
type Service struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Status         ServiceStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
