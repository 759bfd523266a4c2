package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"winterops_backend/internal/routes/service"
	"winterops_backend/internal/routes/transport"
	"winterops_backend/platform/httpkit"
)

const msgInvalidID = "invalid ID"

// Handler handles HTTP requests for routes and the sequencer.
type Handler struct {
	svc *service.Service
}

// New creates a new route handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// List returns all routes.
// GET /api/v1/routes
func (h *Handler) List(c *gin.Context) {
	routes, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomainList(routes))
}

// Get returns one route with its ordered properties.
// GET /api/v1/routes/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	route, props, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomainDetail(route, props))
}

// Activate starts the route for the calling crew member.
// POST /api/v1/routes/:id/activate
func (h *Handler) Activate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)

	result, err := h.svc.ActivateRoute(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// CompleteTicket completes the active property and advances the route.
// POST /api/v1/routes/tickets/:id/complete
func (h *Handler) CompleteTicket(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	privileged := identity.HasRole("Admin") || identity.HasRole("Manager")

	result, err := h.svc.CompleteCurrentProperty(c.Request.Context(), id, identity.UserID(), privileged)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Progress returns the caller's position on the route. Admins and managers
// may inspect another crew member via the crew_id query parameter.
// GET /api/v1/routes/:id/progress
func (h *Handler) Progress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)

	crewID := identity.UserID()
	if raw := c.Query("crew_id"); raw != "" {
		if !identity.HasRole("Admin") && !identity.HasRole("Manager") {
			httpkit.Error(c, http.StatusForbidden, "crew_id requires an administrative role", nil)
			return
		}
		crewID, err = uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid crew_id", nil)
			return
		}
	}

	progress, err := h.svc.Progress(c.Request.Context(), id, crewID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, progress)
}
