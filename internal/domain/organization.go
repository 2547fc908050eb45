package domain

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Organization is the tenant boundary owning services. It has exactly one
// admin and a set of collaborators that never contains the admin.
type Organization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AdminID       string    `json:"admin_id"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasCollaborator reports whether userID is an accepted collaborator.
func (o *Organization) HasCollaborator(userID string) bool {
	return slices.Contains(o.Collaborators, userID)
}

// OrganizationSummary is an organization as listed for a particular user.
type OrganizationSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	IsAdmin        bool      `json:"is_admin"`
	IsCollaborator bool      `json:"is_collaborator"`
	ServiceCount   int       `json:"service_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NameKey returns the normalized form used to enforce name uniqueness, so
// "API" and "api " collide.
func NameKey(name string) string {
	// A Caser keeps state and cannot be shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(name))
}
