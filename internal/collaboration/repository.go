package collaboration

import (
	"context"

	"github.com/bissquit/statusroom/internal/domain"
)

// Repository defines the data access interface for collaboration requests.
type Repository interface {
	// RunInTx executes fn in a transaction, committing if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockOrganization reads the organization with its collaborators and
	// holds a row lock until the surrounding transaction ends.
	LockOrganization(ctx context.Context, id string) (*domain.Organization, error)
	AddCollaborator(ctx context.Context, organizationID, userID string) error
	RemoveCollaborator(ctx context.Context, organizationID, userID string) error

	CreateRequest(ctx context.Context, request *domain.CollaborationRequest) error
	GetRequest(ctx context.Context, id string) (*domain.CollaborationRequest, error)
	HasPendingRequest(ctx context.Context, organizationID, userID string) (bool, error)
	UpdateRequestStatus(ctx context.Context, id string, status domain.CollaborationStatus) error

	ListRequestsForAdmin(ctx context.Context, adminID string, status domain.CollaborationStatus) ([]domain.CollaborationRequestView, error)
	ListRequestsByUser(ctx context.Context, userID string) ([]domain.CollaborationRequestView, error)
}
