// Package status derives service status from incidents and applies every
// status and incident mutation of an organization.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/bissquit/statusroom/internal/access"
	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
	"github.com/bissquit/statusroom/internal/pkg/lockmap"
)

// Publisher broadcasts the current snapshot of an organization.
type Publisher interface {
	Publish(ctx context.Context, organizationID string) error
}

// Engine applies service and incident mutations.
//
// Mutations of one service are serialized: an in-process lock plus a row
// lock taken inside the transaction cover validation, writes, commit and
// publish, in that order.
type Engine struct {
	repo      Repository
	publisher Publisher
	locks     *lockmap.Map
}

// NewEngine creates a new status engine.
func NewEngine(repo Repository, publisher Publisher) *Engine {
	return &Engine{
		repo:      repo,
		publisher: publisher,
		locks:     lockmap.New(),
	}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	OrganizationID string
	Name           string
	Status         domain.ServiceStatus
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	ServiceID    string
	Name         string
	IssueMessage string
}

// CreateService adds a service to an organization. Only the organization
// admin may do it. A service created in a non-Operational status gets an
// auto incident.
func (e *Engine) CreateService(ctx context.Context, actor domain.Actor, input CreateServiceInput) (*domain.Service, error) {
	if input.Status == "" {
		input.Status = domain.ServiceStatusOperational
	}
	if !input.Status.IsValid() {
		return nil, ErrInvalidServiceStatus
	}

	service := &domain.Service{
		OrganizationID: input.OrganizationID,
		Name:           strings.TrimSpace(input.Name),
		Status:         input.Status,
	}
	if service.Name == "" {
		return nil, ErrEmptyName
	}

	// The unique (organization, name) index is the final arbiter for
	// concurrent creates; the org lock keeps them from racing here.
	unlock := e.locks.Lock("org:" + input.OrganizationID)
	defer unlock()

	err := e.repo.RunInTx(ctx, func(ctx context.Context) error {
		org, err := e.repo.GetOrganization(ctx, input.OrganizationID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, org, "create services", access.Admin); err != nil {
			return err
		}

		if err := e.repo.CreateService(ctx, service); err != nil {
			return err
		}

		if !service.Status.IsOperational() {
			return e.repo.CreateIncident(ctx, &domain.Incident{
				ServiceID:    service.ID,
				Name:         domain.AutoIncidentName(service.Status),
				IssueMessage: domain.AutoIncidentMessage(domain.ServiceStatusOperational, service.Status),
				Status:       domain.IncidentStatusOpen,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	e.publish(ctx, service.OrganizationID)
	return service, nil
}

// CreateIncident opens an incident on a service, degrading it if it was
// Operational.
func (e *Engine) CreateIncident(ctx context.Context, actor domain.Actor, input CreateIncidentInput) (*domain.Incident, error) {
	incident := &domain.Incident{
		ServiceID:    input.ServiceID,
		Name:         strings.TrimSpace(input.Name),
		IssueMessage: input.IssueMessage,
		Status:       domain.IncidentStatusOpen,
	}
	if incident.Name == "" {
		return nil, ErrEmptyName
	}

	err := e.mutateService(ctx, input.ServiceID, "create incidents", access.Writers,
		func(ctx context.Context, service *domain.Service) error {
			if err := e.repo.CreateIncident(ctx, incident); err != nil {
				return err
			}
			if next := statusAfterIncidentOpened(service.Status); next != service.Status {
				return e.repo.UpdateServiceStatus(ctx, service.ID, next)
			}
			return nil
		}, actor)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	return incident, nil
}

// ResolveIncident resolves an open incident. The service returns to
// Operational once no open incident remains. Resolving an already resolved
// incident succeeds without changes.
func (e *Engine) ResolveIncident(ctx context.Context, actor domain.Actor, incidentID string) (*domain.Incident, error) {
	var resolved *domain.Incident

	err := e.mutateIncident(ctx, incidentID, "resolve incidents", access.Writers,
		func(ctx context.Context, service *domain.Service, incident *domain.Incident) error {
			resolved = incident
			if !incident.IsOpen() {
				return nil
			}

			incident.Status = domain.IncidentStatusResolved
			if err := e.repo.UpdateIncident(ctx, incident); err != nil {
				return err
			}
			return e.settleAfterClose(ctx, service)
		}, actor)
	if err != nil {
		return nil, fmt.Errorf("resolve incident: %w", err)
	}
	return resolved, nil
}

// UpdateIncidentMessage replaces the issue message of an incident.
func (e *Engine) UpdateIncidentMessage(ctx context.Context, actor domain.Actor, incidentID, message string) (*domain.Incident, error) {
	var updated *domain.Incident

	err := e.mutateIncident(ctx, incidentID, "update incidents", access.Writers,
		func(ctx context.Context, _ *domain.Service, incident *domain.Incident) error {
			incident.IssueMessage = message
			updated = incident
			return e.repo.UpdateIncident(ctx, incident)
		}, actor)
	if err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}
	return updated, nil
}

// DeleteIncident removes an incident. Only the organization admin may erase
// history. Deleting the last open incident returns the service to Operational.
func (e *Engine) DeleteIncident(ctx context.Context, actor domain.Actor, incidentID string) error {
	err := e.mutateIncident(ctx, incidentID, "delete incidents", []access.Capability{access.Admin},
		func(ctx context.Context, service *domain.Service, incident *domain.Incident) error {
			if err := e.repo.DeleteIncident(ctx, incident.ID); err != nil {
				return err
			}
			if !incident.IsOpen() {
				return nil
			}
			return e.settleAfterClose(ctx, service)
		}, actor)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	return nil
}

// SetServiceStatus sets the status of a service manually. Moving to
// Operational resolves every open incident; moving away from it with no open
// incident opens an auto incident.
func (e *Engine) SetServiceStatus(ctx context.Context, actor domain.Actor, serviceID string, next domain.ServiceStatus) (*domain.Service, error) {
	if !next.IsValid() {
		return nil, ErrInvalidServiceStatus
	}

	var updated *domain.Service

	err := e.mutateService(ctx, serviceID, "change service status", access.Writers,
		func(ctx context.Context, service *domain.Service) error {
			openCount, err := e.repo.CountOpenIncidents(ctx, service.ID)
			if err != nil {
				return err
			}

			plan := planStatusChange(next, openCount)
			if plan.resolveOpen {
				if _, err := e.repo.ResolveOpenIncidents(ctx, service.ID); err != nil {
					return err
				}
			}
			if plan.autoIncident {
				auto := &domain.Incident{
					ServiceID:    service.ID,
					Name:         domain.AutoIncidentName(next),
					IssueMessage: domain.AutoIncidentMessage(service.Status, next),
					Status:       domain.IncidentStatusOpen,
				}
				if err := e.repo.CreateIncident(ctx, auto); err != nil {
					return err
				}
			}

			if err := e.repo.UpdateServiceStatus(ctx, service.ID, next); err != nil {
				return err
			}
			service.Status = next
			updated = service
			return nil
		}, actor)
	if err != nil {
		return nil, fmt.Errorf("set service status: %w", err)
	}
	return updated, nil
}

// DeleteService removes a service and its incidents. Only the organization
// admin may do it.
func (e *Engine) DeleteService(ctx context.Context, actor domain.Actor, serviceID string) error {
	err := e.mutateService(ctx, serviceID, "delete services", []access.Capability{access.Admin},
		func(ctx context.Context, service *domain.Service) error {
			return e.repo.DeleteService(ctx, service.ID)
		}, actor)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

// Snapshot returns the current view of an organization.
func (e *Engine) Snapshot(ctx context.Context, organizationID string) (*domain.Snapshot, error) {
	if _, err := e.repo.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	snapshot, err := e.repo.GetSnapshot(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot, nil
}

// Capability returns the capability of actor in the organization.
func (e *Engine) Capability(ctx context.Context, actor domain.Actor, organizationID string) (access.Capability, error) {
	org, err := e.repo.GetOrganization(ctx, organizationID)
	if err != nil {
		return access.Outsider, err
	}
	return access.Evaluate(actor, org), nil
}

// GetService returns a service by ID.
func (e *Engine) GetService(ctx context.Context, serviceID string) (*domain.Service, error) {
	return e.repo.GetService(ctx, serviceID)
}

// ListIncidents returns every incident of a service, newest first.
func (e *Engine) ListIncidents(ctx context.Context, serviceID string) ([]domain.Incident, error) {
	if _, err := e.repo.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	incidents, err := e.repo.ListIncidents(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// settleAfterClose recomputes the service status after an open incident was
// resolved or deleted.
func (e *Engine) settleAfterClose(ctx context.Context, service *domain.Service) error {
	remaining, err := e.repo.CountOpenIncidents(ctx, service.ID)
	if err != nil {
		return err
	}
	if next := statusAfterIncidentClosed(service.Status, remaining); next != service.Status {
		return e.repo.UpdateServiceStatus(ctx, service.ID, next)
	}
	return nil
}

type serviceMutation func(ctx context.Context, service *domain.Service) error

type incidentMutation func(ctx context.Context, service *domain.Service, incident *domain.Incident) error

// mutateService runs fn in one transaction under the service's exclusion
// scope and publishes the organization snapshot after commit.
func (e *Engine) mutateService(
	ctx context.Context,
	serviceID, action string,
	allowed []access.Capability,
	fn serviceMutation,
	actor domain.Actor,
) error {
	unlock := e.locks.Lock(serviceID)
	defer unlock()

	ctx = ctxlog.With(ctx, "service_id", serviceID)

	var organizationID string
	err := e.repo.RunInTx(ctx, func(ctx context.Context) error {
		service, err := e.repo.LockService(ctx, serviceID)
		if err != nil {
			return err
		}
		org, err := e.repo.GetOrganization(ctx, service.OrganizationID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, org, action, allowed...); err != nil {
			return err
		}
		organizationID = org.ID
		return fn(ctx, service)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, organizationID)
	return nil
}

// mutateIncident resolves the incident's service and runs fn under that
// service's exclusion scope. The incident is re-read once the lock is held.
func (e *Engine) mutateIncident(
	ctx context.Context,
	incidentID, action string,
	allowed []access.Capability,
	fn incidentMutation,
	actor domain.Actor,
) error {
	incident, err := e.repo.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}

	return e.mutateService(ctx, incident.ServiceID, action, allowed,
		func(ctx context.Context, service *domain.Service) error {
			current, err := e.repo.GetIncident(ctx, incidentID)
			if err != nil {
				return err
			}
			return fn(ctx, service, current)
		}, actor)
}

func (e *Engine) publish(ctx context.Context, organizationID string) {
	if e.publisher == nil || organizationID == "" {
		return
	}
	// A departed caller must not cancel the broadcast of a committed change.
	if err := e.publisher.Publish(context.WithoutCancel(ctx), organizationID); err != nil {
		ctxlog.FromContext(ctx).Error("failed to publish snapshot",
			"organization_id", organizationID,
			"error", err,
		)
	}
}
