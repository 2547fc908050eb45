package organizations

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for organizations.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new organizations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers organization routes. All of them require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	// Flat routes: other modules register paths below /organizations/{orgID}.
	r.Get("/organizations", h.List)
	r.With(httputil.RequireRole(domain.RoleAdmin)).Post("/organizations", h.Create)
	r.Get("/organizations/mine", h.ListMine)
	r.Delete("/organizations/{orgID}", h.Delete)
}

// CreateOrganizationRequest represents the request body for creating an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// Create handles POST /organizations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.Create(r.Context(), httputil.GetActor(r.Context()), req.Name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}

// List handles GET /organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListForUser(r.Context(), httputil.GetActor(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, orgs)
}

// ListMine handles GET /organizations/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListMine(r.Context(), httputil.GetActor(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, orgs)
}

// Delete handles DELETE /organizations/{orgID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httputil.GetActor(r.Context()), chi.URLParam(r, "orgID")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		{Error: ErrOrganizationExists, Status: http.StatusConflict, Message: "organization with this name already exists"},
	})
}
