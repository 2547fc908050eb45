// Package postgres provides PostgreSQL implementation of the organizations repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/organizations"
	"github.com/bissquit/statusroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

// Repository implements organizations.Repository using PostgreSQL.
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

// Create inserts an organization.
func (r *Repository) Create(ctx context.Context, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (name, name_key, admin_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Q(ctx).QueryRow(ctx, query, org.Name, domain.NameKey(org.Name), org.AdminID).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return organizations.ErrOrganizationExists
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// Get retrieves an organization with its collaborators.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Organization, error) {
	return r.get(ctx, id, false)
}

// Lock retrieves an organization and locks its row.
func (r *Repository) Lock(ctx context.Context, id string) (*domain.Organization, error) {
	return r.get(ctx, id, true)
}

func (r *Repository) get(ctx context.Context, id string, lock bool) (*domain.Organization, error) {
	query := `
		SELECT o.id, o.name, o.admin_id, o.created_at, o.updated_at,
		       ARRAY(
		           SELECT c.user_id::text FROM organization_collaborators c
		           WHERE c.organization_id = o.id
		           ORDER BY c.created_at
		       )
		FROM organizations o
		WHERE o.id = $1
	`
	if lock {
		query += " FOR UPDATE OF o"
	}

	var org domain.Organization
	err := r.db.Q(ctx).QueryRow(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.AdminID, &org.CreatedAt, &org.UpdatedAt, &org.Collaborators,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, organizations.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// Delete removes an organization. Services, incidents, collaborators and
// requests go with it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return organizations.ErrOrganizationNotFound
		}
		return fmt.Errorf("delete organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organizations.ErrOrganizationNotFound
	}
	return nil
}

// ListForUser returns every organization annotated for userID.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]domain.OrganizationSummary, error) {
	query := `
		SELECT o.id, o.name,
		       o.admin_id = $1::uuid,
		       EXISTS (
		           SELECT 1 FROM organization_collaborators c
		           WHERE c.organization_id = o.id AND c.user_id = $1::uuid
		       ),
		       (SELECT COUNT(*) FROM services s WHERE s.organization_id = o.id),
		       o.created_at, o.updated_at
		FROM organizations o
		ORDER BY o.name_key
	`
	return r.list(ctx, query, userID)
}

// ListByAdmin returns the organizations administered by adminID.
func (r *Repository) ListByAdmin(ctx context.Context, adminID string) ([]domain.OrganizationSummary, error) {
	query := `
		SELECT o.id, o.name, TRUE, FALSE,
		       (SELECT COUNT(*) FROM services s WHERE s.organization_id = o.id),
		       o.created_at, o.updated_at
		FROM organizations o
		WHERE o.admin_id = $1
		ORDER BY o.name_key
	`
	return r.list(ctx, query, adminID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.OrganizationSummary, error) {
	rows, err := r.db.Q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}

	orgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrganizationSummary, error) {
		var o domain.OrganizationSummary
		err := row.Scan(&o.ID, &o.Name, &o.IsAdmin, &o.IsCollaborator, &o.ServiceCount, &o.CreatedAt, &o.UpdatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan organizations: %w", err)
	}
	return orgs, nil
}
