// Package postgres provides PostgreSQL implementation of the collaboration repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/statusroom/internal/collaboration"
	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

// Repository implements collaboration.Repository using PostgreSQL.
type Repository struct {
	db *postgres.DB
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

// RunInTx executes fn in a transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.RunInTx(ctx, fn)
}

// LockOrganization retrieves an organization and locks its row.
func (r *Repository) LockOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	q := r.db.Q(ctx)

	var org domain.Organization
	err := q.QueryRow(ctx, `
		SELECT id, name, admin_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&org.ID, &org.Name, &org.AdminID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, collaboration.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("lock organization: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT user_id FROM organization_collaborators
		WHERE organization_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query collaborators: %w", err)
	}
	org.Collaborators, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan collaborators: %w", err)
	}
	return &org, nil
}

// AddCollaborator adds a user to the organization's collaborators.
func (r *Repository) AddCollaborator(ctx context.Context, organizationID, userID string) error {
	query := `
		INSERT INTO organization_collaborators (organization_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.Q(ctx).Exec(ctx, query, organizationID, userID); err != nil {
		return fmt.Errorf("add collaborator: %w", err)
	}
	return nil
}

// RemoveCollaborator removes a user from the organization's collaborators.
func (r *Repository) RemoveCollaborator(ctx context.Context, organizationID, userID string) error {
	query := `DELETE FROM organization_collaborators WHERE organization_id = $1 AND user_id = $2`
	result, err := r.db.Q(ctx).Exec(ctx, query, organizationID, userID)
	if err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	if result.RowsAffected() == 0 {
		return collaboration.ErrCollaboratorNotFound
	}
	return nil
}

// CreateRequest inserts a collaboration request.
func (r *Repository) CreateRequest(ctx context.Context, request *domain.CollaborationRequest) error {
	query := `
		INSERT INTO collaboration_requests (organization_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Q(ctx).QueryRow(ctx, query,
		request.OrganizationID,
		request.UserID,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return domain.ErrDuplicatePending
		}
		return fmt.Errorf("create collaboration request: %w", err)
	}
	return nil
}

// GetRequest retrieves a collaboration request by ID.
func (r *Repository) GetRequest(ctx context.Context, id string) (*domain.CollaborationRequest, error) {
	query := `
		SELECT id, organization_id, user_id, status, created_at, updated_at
		FROM collaboration_requests
		WHERE id = $1
	`
	var request domain.CollaborationRequest
	err := r.db.Q(ctx).QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.OrganizationID,
		&request.UserID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, collaboration.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get collaboration request: %w", err)
	}
	return &request, nil
}

// HasPendingRequest reports whether the user has a pending request for the organization.
func (r *Repository) HasPendingRequest(ctx context.Context, organizationID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM collaboration_requests
			WHERE organization_id = $1 AND user_id = $2 AND status = 'Pending'
		)
	`
	var exists bool
	if err := r.db.Q(ctx).QueryRow(ctx, query, organizationID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists, nil
}

// UpdateRequestStatus sets the status of a collaboration request.
func (r *Repository) UpdateRequestStatus(ctx context.Context, id string, status domain.CollaborationStatus) error {
	query := `UPDATE collaboration_requests SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Q(ctx).Exec(ctx, query, id, status)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return domain.ErrDuplicatePending
		}
		return fmt.Errorf("update collaboration request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return collaboration.ErrRequestNotFound
	}
	return nil
}

const viewColumns = `
	cr.id, cr.organization_id, cr.user_id, cr.status, cr.created_at, cr.updated_at,
	o.name, u.name, u.email
`

// ListRequestsForAdmin retrieves requests with the given status for every
// organization administered by adminID.
func (r *Repository) ListRequestsForAdmin(ctx context.Context, adminID string, status domain.CollaborationStatus) ([]domain.CollaborationRequestView, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM collaboration_requests cr
		JOIN organizations o ON o.id = cr.organization_id
		JOIN users u ON u.id = cr.user_id
		WHERE o.admin_id = $1 AND cr.status = $2
		ORDER BY cr.created_at DESC
	`
	return r.listViews(ctx, query, adminID, status)
}

// ListRequestsByUser retrieves every request filed by userID.
func (r *Repository) ListRequestsByUser(ctx context.Context, userID string) ([]domain.CollaborationRequestView, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM collaboration_requests cr
		JOIN organizations o ON o.id = cr.organization_id
		JOIN users u ON u.id = cr.user_id
		WHERE cr.user_id = $1
		ORDER BY cr.created_at DESC
	`
	return r.listViews(ctx, query, userID)
}

func (r *Repository) listViews(ctx context.Context, query string, args ...any) ([]domain.CollaborationRequestView, error) {
	rows, err := r.db.Q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collaboration requests: %w", err)
	}

	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CollaborationRequestView, error) {
		var v domain.CollaborationRequestView
		err := row.Scan(
			&v.ID,
			&v.OrganizationID,
			&v.UserID,
			&v.Status,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.OrganizationName,
			&v.UserName,
			&v.UserEmail,
		)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan collaboration requests: %w", err)
	}
	return views, nil
}
