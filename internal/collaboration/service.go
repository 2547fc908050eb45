// Package collaboration implements the admission flow that grants non-admin
// users write access to an organization.
package collaboration

import (
	"context"
	"fmt"

	"github.com/bissquit/statusroom/internal/access"
	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
)

// Service implements the collaboration request state machine.
//
// Every operation runs in one transaction holding the organization row lock,
// so decisions on one organization serialize. None of them publish a
// snapshot: membership changes do not alter the visible services.
type Service struct {
	repo Repository
}

// NewService creates a new collaboration service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RequestCollaboration files a pending request for actor to collaborate on
// the organization.
func (s *Service) RequestCollaboration(ctx context.Context, actor domain.Actor, organizationID string) (*domain.CollaborationRequest, error) {
	request := &domain.CollaborationRequest{
		OrganizationID: organizationID,
		UserID:         actor.ID,
		Status:         domain.CollaborationPending,
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		org, err := s.repo.LockOrganization(ctx, organizationID)
		if err != nil {
			return err
		}

		switch access.Evaluate(actor, org) {
		case access.Admin:
			return domain.ErrAlreadyAdmin
		case access.Collaborator:
			return domain.ErrAlreadyCollaborator
		}

		pending, err := s.repo.HasPendingRequest(ctx, organizationID, actor.ID)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrDuplicatePending
		}

		return s.repo.CreateRequest(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("request collaboration: %w", err)
	}

	ctxlog.FromContext(ctx).Info("collaboration requested",
		"request_id", request.ID,
		"organization_id", organizationID,
		"user_id", actor.ID,
	)
	return request, nil
}

// RespondToRequest records the organization admin's decision on a request.
// Accepting adds the requester to the collaborators; accepting twice is a
// no-op. A request already decided the other way cannot be flipped.
func (s *Service) RespondToRequest(ctx context.Context, actor domain.Actor, requestID string, decision domain.CollaborationStatus) (*domain.CollaborationRequest, error) {
	if !decision.IsDecision() {
		return nil, ErrInvalidDecision
	}

	request, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, func(ctx context.Context) error {
		org, err := s.repo.LockOrganization(ctx, request.OrganizationID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, org, "respond to collaboration requests", access.Admin); err != nil {
			return err
		}

		// Re-read under the organization lock.
		request, err = s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		switch request.Status {
		case decision:
			if decision == domain.CollaborationAccepted && !org.HasCollaborator(request.UserID) {
				return s.repo.AddCollaborator(ctx, org.ID, request.UserID)
			}
			return nil
		case domain.CollaborationPending:
		default:
			return ErrAlreadyDecided
		}

		if err := s.repo.UpdateRequestStatus(ctx, request.ID, decision); err != nil {
			return err
		}
		request.Status = decision

		if decision == domain.CollaborationAccepted && !org.HasCollaborator(request.UserID) {
			return s.repo.AddCollaborator(ctx, org.ID, request.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("respond to request: %w", err)
	}

	ctxlog.FromContext(ctx).Info("collaboration request decided",
		"request_id", request.ID,
		"organization_id", request.OrganizationID,
		"decision", decision,
	)
	return request, nil
}

// SuspendCollaborator removes a collaborator and puts the originating
// request back to Pending, so the user must be accepted again.
func (s *Service) SuspendCollaborator(ctx context.Context, actor domain.Actor, organizationID, userID, requestID string) (*domain.CollaborationRequest, error) {
	var request *domain.CollaborationRequest

	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		org, err := s.repo.LockOrganization(ctx, organizationID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, org, "suspend collaborators", access.Admin); err != nil {
			return err
		}

		request, err = s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.OrganizationID != organizationID || request.UserID != userID {
			return ErrRequestNotFound
		}
		if !org.HasCollaborator(userID) {
			return ErrCollaboratorNotFound
		}

		if err := s.repo.RemoveCollaborator(ctx, organizationID, userID); err != nil {
			return err
		}
		if err := s.repo.UpdateRequestStatus(ctx, request.ID, domain.CollaborationPending); err != nil {
			return err
		}
		request.Status = domain.CollaborationPending
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("suspend collaborator: %w", err)
	}

	ctxlog.FromContext(ctx).Info("collaborator suspended",
		"request_id", request.ID,
		"organization_id", organizationID,
		"user_id", userID,
	)
	return request, nil
}

// ListPendingForAdmin returns pending requests for organizations the actor administers.
func (s *Service) ListPendingForAdmin(ctx context.Context, actor domain.Actor) ([]domain.CollaborationRequestView, error) {
	return s.repo.ListRequestsForAdmin(ctx, actor.ID, domain.CollaborationPending)
}

// ListActiveCollaborators returns accepted requests for organizations the actor administers.
func (s *Service) ListActiveCollaborators(ctx context.Context, actor domain.Actor) ([]domain.CollaborationRequestView, error) {
	return s.repo.ListRequestsForAdmin(ctx, actor.ID, domain.CollaborationAccepted)
}

// ListMine returns every request the actor filed.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.CollaborationRequestView, error) {
	return s.repo.ListRequestsByUser(ctx, actor.ID)
}
