package domain

import "time"

// SnapshotIncident is an open incident as broadcast to viewers.
type SnapshotIncident struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	IssueMessage string         `json:"issueMessage"`
	Status       IncidentStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SnapshotService is a service annotated with its open incidents.
type SnapshotService struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Status    ServiceStatus      `json:"status"`
	Incidents []SnapshotIncident `json:"incidents"`
}

// Snapshot is the full current view of an organization's status page.
// Resolved incidents never appear in it.
type Snapshot struct {
	OrganizationID string            `json:"organization_id"`
	Services       []SnapshotService `json:"services"`

	// Version identifies the database state the snapshot was read from.
	// It is not sent to viewers.
	Version SnapshotVersion `json:"-"`
}

// SnapshotVersion orders snapshots by the database state they were read
// from. Horizon is the first transaction ID the read could not see; InFlight
// counts transactions below Horizon still running at read time. For a fixed
// Horizon that count only shrinks, so the pair grows with every later read.
// The zero value sorts before any read.
type SnapshotVersion struct {
	Horizon  int64
	InFlight int64
}

// Before reports whether v was read from an older state than other.
func (v SnapshotVersion) Before(other SnapshotVersion) bool {
	if v.Horizon != other.Horizon {
		return v.Horizon < other.Horizon
	}
	return v.InFlight > other.InFlight
}
