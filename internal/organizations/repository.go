package organizations

import (
	"context"

	"github.com/bissquit/statusroom/internal/domain"
)

// Repository defines the data access interface for organizations.
type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, org *domain.Organization) error
	Get(ctx context.Context, id string) (*domain.Organization, error)
	// Lock reads the organization and holds a row lock until the
	// surrounding transaction ends.
	Lock(ctx context.Context, id string) (*domain.Organization, error)
	Delete(ctx context.Context, id string) error

	// ListForUser returns every organization annotated for userID.
	ListForUser(ctx context.Context, userID string) ([]domain.OrganizationSummary, error)
	ListByAdmin(ctx context.Context, adminID string) ([]domain.OrganizationSummary, error)
}
