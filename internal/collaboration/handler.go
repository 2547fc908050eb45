package collaboration

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the collaboration module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new collaboration handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers collaboration routes. All of them require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/collaboration-requests", func(r chi.Router) {
		r.Post("/", h.RequestCollaboration)
		r.Get("/pending", h.ListPending)
		r.Get("/mine", h.ListMine)
		r.Patch("/{requestID}", h.RespondToRequest)
	})
	r.Get("/collaborators", h.ListActiveCollaborators)
	r.Post("/organizations/{orgID}/collaborators/{userID}/suspend", h.SuspendCollaborator)
}

// CreateRequestRequest represents the request body for requesting collaboration.
type CreateRequestRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
}

// RespondRequest represents the request body for deciding on a request.
type RespondRequest struct {
	Status string `json:"status" validate:"required"`
}

// SuspendRequest represents the request body for suspending a collaborator.
type SuspendRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
}

// RequestCollaboration handles POST /collaboration-requests.
func (h *Handler) RequestCollaboration(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	request, err := h.service.RequestCollaboration(r.Context(), httputil.GetActor(r.Context()), req.OrganizationID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, request)
}

// RespondToRequest handles PATCH /collaboration-requests/{requestID}.
func (h *Handler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	request, err := h.service.RespondToRequest(r.Context(),
		httputil.GetActor(r.Context()),
		chi.URLParam(r, "requestID"),
		domain.CollaborationStatus(req.Status),
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, request)
}

// SuspendCollaborator handles POST /organizations/{orgID}/collaborators/{userID}/suspend.
func (h *Handler) SuspendCollaborator(w http.ResponseWriter, r *http.Request) {
	var req SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	request, err := h.service.SuspendCollaborator(r.Context(),
		httputil.GetActor(r.Context()),
		chi.URLParam(r, "orgID"),
		chi.URLParam(r, "userID"),
		req.RequestID,
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, request)
}

// ListPending handles GET /collaboration-requests/pending.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListPendingForAdmin(r.Context(), httputil.GetActor(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, requests)
}

// ListMine handles GET /collaboration-requests/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListMine(r.Context(), httputil.GetActor(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, requests)
}

// ListActiveCollaborators handles GET /collaborators.
func (h *Handler) ListActiveCollaborators(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListActiveCollaborators(r.Context(), httputil.GetActor(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, requests)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		{Error: ErrRequestNotFound, Status: http.StatusNotFound, Message: "collaboration request not found"},
		{Error: ErrCollaboratorNotFound, Status: http.StatusNotFound, Message: "collaborator not found"},
		{Error: domain.ErrForbidden, Status: http.StatusForbidden},
		{Error: ErrInvalidDecision, Status: http.StatusBadRequest, Message: "status must be Accepted or Rejected"},
		{Error: domain.ErrAlreadyAdmin, Status: http.StatusConflict, Message: domain.ErrAlreadyAdmin.Error()},
		{Error: domain.ErrAlreadyCollaborator, Status: http.StatusConflict, Message: domain.ErrAlreadyCollaborator.Error()},
		{Error: domain.ErrDuplicatePending, Status: http.StatusConflict, Message: domain.ErrDuplicatePending.Error()},
		{Error: ErrAlreadyDecided, Status: http.StatusConflict, Message: "collaboration request already decided"},
	})
}
