package organizations

import (
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
)

// Organization errors.
var (
	ErrOrganizationNotFound = fmt.Errorf("organization %w", domain.ErrNotFound)
	ErrOrganizationExists   = fmt.Errorf("%w: organization with this name already exists", domain.ErrConflict)
	ErrEmptyName            = fmt.Errorf("%w: organization name is required", domain.ErrInvalidInput)
)
