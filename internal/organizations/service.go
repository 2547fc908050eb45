// Package organizations manages the tenants that own services.
package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/bissquit/statusroom/internal/access"
	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
)

// Publisher broadcasts the current snapshot of an organization.
type Publisher interface {
	Publish(ctx context.Context, organizationID string) error
}

// Service implements organization business logic.
type Service struct {
	repo      Repository
	publisher Publisher
}

// NewService creates a new organizations service.
func NewService(repo Repository, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
	}
}

// Create creates an organization administered by actor. Only users with the
// Admin role may create organizations.
func (s *Service) Create(ctx context.Context, actor domain.Actor, name string) (*domain.Organization, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can create organizations", domain.ErrForbidden)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	org := &domain.Organization{
		Name:          name,
		AdminID:       actor.ID,
		Collaborators: []string{},
	}
	if err := s.repo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	ctxlog.FromContext(ctx).Info("organization created",
		"organization_id", org.ID,
		"admin_id", actor.ID,
	)
	return org, nil
}

// Get returns an organization by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Organization, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes an organization with its services, incidents and
// collaboration requests. Viewers of its room receive an empty snapshot.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		org, err := s.repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Require(actor, org, "delete the organization", access.Admin); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}

	ctxlog.FromContext(ctx).Info("organization deleted", "organization_id", id)

	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), id); err != nil {
			ctxlog.FromContext(ctx).Error("failed to publish snapshot",
				"organization_id", id,
				"error", err,
			)
		}
	}
	return nil
}

// ListForUser returns all organizations with the actor's standing in each.
func (s *Service) ListForUser(ctx context.Context, actor domain.Actor) ([]domain.OrganizationSummary, error) {
	orgs, err := s.repo.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// ListMine returns the organizations administered by the actor.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.OrganizationSummary, error) {
	orgs, err := s.repo.ListByAdmin(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}
