// Package properties provides read-only property assignment lookups. The
// conversation state machine consumes them to offer a crew member their
// accepted properties when starting a ticket.
package properties

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "winterops_backend/internal/http"
	"winterops_backend/internal/properties/repository"
	"winterops_backend/platform/httpkit"
)

// Module is the properties bounded context module implementing http.Module.
type Module struct {
	repo *repository.Repository
}

// NewModule creates and initializes the properties module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: repository.NewRepository(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "properties"
}

// Repository exposes the assignment lookups for the conversation module.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts property routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/properties/assigned", m.listAssigned)
}

// listAssigned returns the caller's accepted property assignments.
// GET /api/v1/properties/assigned
func (m *Module) listAssigned(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	props, err := m.repo.ListAcceptedForCrew(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list assigned properties", nil)
		return
	}

	type propertyResponse struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address,omitempty"`
	}
	out := make([]propertyResponse, 0, len(props))
	for _, p := range props {
		out = append(out, propertyResponse{ID: p.ID.String(), Name: p.Name, Address: p.Address})
	}
	httpkit.OK(c, gin.H{"items": out, "total": len(out)})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
