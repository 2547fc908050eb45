package identity

import (
	"errors"
	"fmt"

	"github.com/bissquit/statusroom/internal/domain"
)

// Identity errors.
var (
	ErrUserNotFound       = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrEmailExists        = fmt.Errorf("%w: email already registered", domain.ErrConflict)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRole        = errors.New("role must be Admin or User")
)
