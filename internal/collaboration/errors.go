package collaboration

import (
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
)

// Collaboration errors.
var (
	ErrOrganizationNotFound = fmt.Errorf("organization %w", domain.ErrNotFound)
	ErrRequestNotFound      = fmt.Errorf("collaboration request %w", domain.ErrNotFound)
	ErrCollaboratorNotFound = fmt.Errorf("collaborator %w", domain.ErrNotFound)
	ErrInvalidDecision      = fmt.Errorf("%w: decision must be Accepted or Rejected", domain.ErrInvalidStatus)
	ErrAlreadyDecided       = fmt.Errorf("%w: collaboration request already decided", domain.ErrConflict)
)
