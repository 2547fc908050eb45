// Package postgres provides PostgreSQL implementation of the status repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/postgres"
	"github.com/bissquit/statusroom/internal/status"
	"github.com/jackc/pgx/v5"
)

// Repository implements status.Repository using PostgreSQL.
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

// GetOrganization retrieves an organization with its collaborators.
func (r *Repository) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	query := `
		SELECT o.id, o.name, o.admin_id, o.created_at, o.updated_at,
			COALESCE(ARRAY(
				SELECT c.user_id::text FROM organization_collaborators c
				WHERE c.organization_id = o.id
				ORDER BY c.created_at
			), '{}')
		FROM organizations o
		WHERE o.id = $1
	`
	var org domain.Organization
	err := r.db.Q(ctx).QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.AdminID,
		&org.CreatedAt,
		&org.UpdatedAt,
		&org.Collaborators,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, status.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// CreateService inserts a service.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (organization_id, name, name_key, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Q(ctx).QueryRow(ctx, query,
		service.OrganizationID,
		service.Name,
		domain.NameKey(service.Name),
		service.Status,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return status.ErrServiceNameExists
		}
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetService retrieves a service by ID.
func (r *Repository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return r.getService(ctx, id, "")
}

// LockService retrieves a service and locks its row until the transaction ends.
func (r *Repository) LockService(ctx context.Context, id string) (*domain.Service, error) {
	return r.getService(ctx, id, "FOR UPDATE")
}

func (r *Repository) getService(ctx context.Context, id, lock string) (*domain.Service, error) {
	query := `
		SELECT id, organization_id, name, status, created_at, updated_at
		FROM services
		WHERE id = $1
	` + lock
	var service domain.Service
	err := r.db.Q(ctx).QueryRow(ctx, query, id).Scan(
		&service.ID,
		&service.OrganizationID,
		&service.Name,
		&service.Status,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, status.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &service, nil
}

// UpdateServiceStatus sets the status of a service.
func (r *Repository) UpdateServiceStatus(ctx context.Context, id string, serviceStatus domain.ServiceStatus) error {
	query := `UPDATE services SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Q(ctx).Exec(ctx, query, id, serviceStatus)
	if err != nil {
		return fmt.Errorf("update service status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return status.ErrServiceNotFound
	}
	return nil
}

// DeleteService removes a service. Incidents are removed by the foreign key cascade.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	result, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return status.ErrServiceNotFound
	}
	return nil
}

// CreateIncident inserts an incident.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (service_id, name, issue_message, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Q(ctx).QueryRow(ctx, query,
		incident.ServiceID,
		incident.Name,
		incident.IssueMessage,
		incident.Status,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `
		SELECT id, service_id, name, issue_message, status, created_at, updated_at
		FROM incidents
		WHERE id = $1
	`
	var incident domain.Incident
	err := r.db.Q(ctx).QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.ServiceID,
		&incident.Name,
		&incident.IssueMessage,
		&incident.Status,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, status.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return &incident, nil
}

// UpdateIncident writes the status and message of an incident.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident) error {
	query := `
		UPDATE incidents
		SET status = $2, issue_message = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.Q(ctx).QueryRow(ctx, query,
		incident.ID,
		incident.Status,
		incident.IssueMessage,
	).Scan(&incident.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return status.ErrIncidentNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// DeleteIncident removes an incident.
func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	result, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return status.ErrIncidentNotFound
	}
	return nil
}

// ListIncidents retrieves every incident of a service, newest first.
func (r *Repository) ListIncidents(ctx context.Context, serviceID string) ([]domain.Incident, error) {
	query := `
		SELECT id, service_id, name, issue_message, status, created_at, updated_at
		FROM incidents
		WHERE service_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.Q(ctx).Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	incidents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Incident, error) {
		var incident domain.Incident
		err := row.Scan(
			&incident.ID,
			&incident.ServiceID,
			&incident.Name,
			&incident.IssueMessage,
			&incident.Status,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		)
		return incident, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan incidents: %w", err)
	}
	return incidents, nil
}

// CountOpenIncidents returns the number of open incidents of a service.
func (r *Repository) CountOpenIncidents(ctx context.Context, serviceID string) (int, error) {
	query := `SELECT COUNT(*) FROM incidents WHERE service_id = $1 AND status = 'open'`
	var count int
	if err := r.db.Q(ctx).QueryRow(ctx, query, serviceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open incidents: %w", err)
	}
	return count, nil
}

// ResolveOpenIncidents resolves every open incident of a service.
func (r *Repository) ResolveOpenIncidents(ctx context.Context, serviceID string) (int64, error) {
	query := `
		UPDATE incidents
		SET status = 'resolved', updated_at = NOW()
		WHERE service_id = $1 AND status = 'open'
	`
	result, err := r.db.Q(ctx).Exec(ctx, query, serviceID)
	if err != nil {
		return 0, fmt.Errorf("resolve open incidents: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetSnapshot reads the services of an organization with their open
// incidents in a single statement, together with the version of the
// statement's view of the database.
func (r *Repository) GetSnapshot(ctx context.Context, organizationID string) (*domain.Snapshot, error) {
	query := `
		WITH snapshot_services AS (
			SELECT s.id, s.name, s.status, s.created_at,
				COALESCE(
					json_agg(json_build_object(
						'id', i.id,
						'name', i.name,
						'issueMessage', i.issue_message,
						'status', i.status,
						'createdAt', i.created_at
					) ORDER BY i.created_at DESC) FILTER (WHERE i.id IS NOT NULL),
					'[]'::json
				) AS incidents
			FROM services s
			LEFT JOIN incidents i ON i.service_id = s.id AND i.status = 'open'
			WHERE s.organization_id = $1
			GROUP BY s.id
		)
		SELECT
			pg_snapshot_xmax(pg_current_snapshot())::text::bigint,
			(SELECT count(*) FROM pg_snapshot_xip(pg_current_snapshot())),
			COALESCE(
				(SELECT json_agg(json_build_object(
					'id', id,
					'name', name,
					'status', status,
					'incidents', incidents
				) ORDER BY created_at, name) FROM snapshot_services),
				'[]'::json
			)
	`
	snapshot := &domain.Snapshot{OrganizationID: organizationID}
	err := r.db.Q(ctx).QueryRow(ctx, query, organizationID).Scan(
		&snapshot.Version.Horizon,
		&snapshot.Version.InFlight,
		&snapshot.Services,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return snapshot, nil
}
