package status

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/statusroom/internal/access"
	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for services and incidents.
type Handler struct {
	engine    *Engine
	validator *validator.Validate
}

// NewHandler creates a new status handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{
		engine:    engine,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers service and incident routes. All of them require
// authentication; permissions are checked per organization by the engine.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/organizations/{orgID}/services", h.GetOrganizationServices)
	r.Post("/organizations/{orgID}/services", h.CreateService)

	r.Route("/services/{serviceID}", func(r chi.Router) {
		r.Get("/", h.GetService)
		r.Patch("/status", h.SetServiceStatus)
		r.Delete("/", h.DeleteService)
		r.Get("/incidents", h.ListIncidents)
		r.Post("/incidents", h.CreateIncident)
	})

	r.Route("/incidents/{incidentID}", func(r chi.Router) {
		r.Post("/resolve", h.ResolveIncident)
		r.Patch("/message", h.UpdateIncidentMessage)
		r.Delete("/", h.DeleteIncident)
	})
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Status string `json:"status" validate:"omitempty"`
}

// SetStatusRequest represents the request body for changing service status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateIncidentRequest represents the request body for opening an incident.
type CreateIncidentRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	IssueMessage string `json:"issue_message" validate:"max=4000"`
}

// UpdateMessageRequest represents the request body for editing an incident.
type UpdateMessageRequest struct {
	IssueMessage string `json:"issue_message" validate:"required,max=4000"`
}

// OrganizationServicesResponse is the snapshot of an organization together
// with the caller's standing in it.
type OrganizationServicesResponse struct {
	*domain.Snapshot
	Capability     access.Capability `json:"capability"`
	IsCollaborator bool              `json:"is_collaborator"`
}

// GetOrganizationServices handles GET /organizations/{orgID}/services.
func (h *Handler) GetOrganizationServices(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	capability, err := h.engine.Capability(r.Context(), httputil.GetActor(r.Context()), orgID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	snapshot, err := h.engine.Snapshot(r.Context(), orgID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, OrganizationServicesResponse{
		Snapshot:       snapshot,
		Capability:     capability,
		IsCollaborator: capability == access.Collaborator,
	})
}

// CreateService handles POST /organizations/{orgID}/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	service, err := h.engine.CreateService(r.Context(), httputil.GetActor(r.Context()), CreateServiceInput{
		OrganizationID: chi.URLParam(r, "orgID"),
		Name:           req.Name,
		Status:         domain.ServiceStatus(req.Status),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// GetService handles GET /services/{serviceID}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.engine.GetService(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, service)
}

// SetServiceStatus handles PATCH /services/{serviceID}/status.
func (h *Handler) SetServiceStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	service, err := h.engine.SetServiceStatus(r.Context(),
		httputil.GetActor(r.Context()),
		chi.URLParam(r, "serviceID"),
		domain.ServiceStatus(req.Status),
	)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{serviceID}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	err := h.engine.DeleteService(r.Context(), httputil.GetActor(r.Context()), chi.URLParam(r, "serviceID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIncidents handles GET /services/{serviceID}/incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.engine.ListIncidents(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, incidents)
}

// CreateIncident handles POST /services/{serviceID}/incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if !h.decode(w, r, &req) {
		return
	}

	incident, err := h.engine.CreateIncident(r.Context(), httputil.GetActor(r.Context()), CreateIncidentInput{
		ServiceID:    chi.URLParam(r, "serviceID"),
		Name:         req.Name,
		IssueMessage: req.IssueMessage,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// ResolveIncident handles POST /incidents/{incidentID}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.engine.ResolveIncident(r.Context(), httputil.GetActor(r.Context()), chi.URLParam(r, "incidentID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// UpdateIncidentMessage handles PATCH /incidents/{incidentID}/message.
func (h *Handler) UpdateIncidentMessage(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	incident, err := h.engine.UpdateIncidentMessage(r.Context(),
		httputil.GetActor(r.Context()),
		chi.URLParam(r, "incidentID"),
		req.IssueMessage,
	)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /incidents/{incidentID}.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	err := h.engine.DeleteIncident(r.Context(), httputil.GetActor(r.Context()), chi.URLParam(r, "incidentID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		{Error: ErrServiceNotFound, Status: http.StatusNotFound, Message: "service not found"},
		{Error: ErrIncidentNotFound, Status: http.StatusNotFound, Message: "incident not found"},
		{Error: domain.ErrForbidden, Status: http.StatusForbidden},
		{Error: ErrInvalidServiceStatus, Status: http.StatusBadRequest, Message: "invalid service status"},
		{Error: ErrServiceNameExists, Status: http.StatusConflict, Message: "service with this name already exists"},
	})
}
