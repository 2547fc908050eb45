package domain

import "time"

// CollaborationStatus is the state of a collaboration request.
type CollaborationStatus string

// Collaboration request states.
const (
	CollaborationPending  CollaborationStatus = "Pending"
	CollaborationAccepted CollaborationStatus = "Accepted"
	CollaborationRejected CollaborationStatus = "Rejected"
)

// IsDecision reports whether the status is a valid admin response.
func (s CollaborationStatus) IsDecision() bool {
	return s == CollaborationAccepted || s == CollaborationRejected
}

// CollaborationRequest governs non-admin write access to an organization.
type CollaborationRequest struct {
	ID             string              `json:"id"`
	OrganizationID string              `json:"organization_id"`
	UserID         string              `json:"user_id"`
	Status         CollaborationStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// CollaborationRequestView is a request joined with display data.
type CollaborationRequestView struct {
	CollaborationRequest
	OrganizationName string `json:"organization_name"`
	UserName         string `json:"user_name"`
	UserEmail        string `json:"user_email"`
}
