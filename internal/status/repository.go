package status

import (
	"context"

	"github.com/bissquit/statusroom/internal/domain"
)

// Repository defines the entity store operations the engine needs.
// Methods called with a context returned by RunInTx run inside that
// transaction.
type Repository interface {
	// RunInTx executes fn in a transaction, committing if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)

	CreateService(ctx context.Context, service *domain.Service) error
	GetService(ctx context.Context, id string) (*domain.Service, error)
	// LockService reads the service and holds a row lock until the
	// surrounding transaction ends.
	LockService(ctx context.Context, id string) (*domain.Service, error)
	UpdateServiceStatus(ctx context.Context, id string, status domain.ServiceStatus) error
	// DeleteService removes the service together with its incidents.
	DeleteService(ctx context.Context, id string) error

	CreateIncident(ctx context.Context, incident *domain.Incident) error
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	UpdateIncident(ctx context.Context, incident *domain.Incident) error
	DeleteIncident(ctx context.Context, id string) error
	ListIncidents(ctx context.Context, serviceID string) ([]domain.Incident, error)
	CountOpenIncidents(ctx context.Context, serviceID string) (int, error)
	// ResolveOpenIncidents marks every open incident of the service resolved
	// and returns how many changed.
	ResolveOpenIncidents(ctx context.Context, serviceID string) (int64, error)

	// GetSnapshot reads the organization's services with their open
	// incidents in one consistent read.
	GetSnapshot(ctx context.Context, organizationID string) (*domain.Snapshot, error)
}
