package status

import (
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
)

// Engine errors.
var (
	ErrOrganizationNotFound = fmt.Errorf("organization %w", domain.ErrNotFound)
	ErrServiceNotFound      = fmt.Errorf("service %w", domain.ErrNotFound)
	ErrIncidentNotFound     = fmt.Errorf("incident %w", domain.ErrNotFound)
	ErrServiceNameExists    = fmt.Errorf("%w: service with this name already exists in the organization", domain.ErrConflict)
	ErrEmptyName            = fmt.Errorf("%w: name must not be blank", domain.ErrInvalidInput)
	ErrInvalidServiceStatus = fmt.Errorf("%w: service status must be one of Operational, Degraded Performance, Partial Outage, Major Outage", domain.ErrInvalidStatus)
)
