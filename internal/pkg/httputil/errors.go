package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// taxonomy maps the shared domain error kinds. It applies after a handler's
// own mappings, so module errors only need an entry to customize the message.
var taxonomy = []ErrorMapping{
	{Error: domain.ErrNotFound, Status: http.StatusNotFound},
	{Error: domain.ErrForbidden, Status: http.StatusForbidden},
	{Error: domain.ErrConflict, Status: http.StatusConflict},
	{Error: domain.ErrDuplicatePending, Status: http.StatusConflict},
	{Error: domain.ErrAlreadyCollaborator, Status: http.StatusConflict},
	{Error: domain.ErrAlreadyAdmin, Status: http.StatusConflict},
	{Error: domain.ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: domain.ErrInvalidInput, Status: http.StatusBadRequest},
}

// HandleError maps err to an HTTP response using mappings, then the domain
// taxonomy. Anything unmatched is logged and answered with 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	if m, ok := match(err, mappings); ok {
		writeMapped(w, err, m)
		return
	}
	if m, ok := match(err, taxonomy); ok {
		writeMapped(w, err, m)
		return
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

func match(err error, mappings []ErrorMapping) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}

func writeMapped(w http.ResponseWriter, err error, m ErrorMapping) {
	msg := m.Message
	if msg == "" {
		msg = err.Error()
	}
	Error(w, m.Status, msg)
}
