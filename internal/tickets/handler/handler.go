package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"winterops_backend/internal/tickets/service"
	"winterops_backend/internal/tickets/transport"
	"winterops_backend/platform/httpkit"
	"winterops_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid ticket ID"
)

// Handler handles HTTP requests for the ops ticket surface.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new ticket handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SubmitLog creates a ticket from the manual dispatch form.
// POST /api/v1/tickets
func (h *Handler) SubmitLog(c *gin.Context) {
	var req transport.SubmitLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ticket, err := h.svc.SubmitLog(c.Request.Context(), identity.UserID(), service.SubmitLogInput{
		PropertyID:  req.PropertyID,
		Equipment:   req.Equipment,
		TimeIn:      req.TimeIn,
		TimeOut:     req.TimeOut,
		BulkSaltQty: req.BulkSaltQty,
		BagSaltQty:  req.BagSaltQty,
		CalciumQty:  req.CalciumQty,
		Notes:       req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.FromDomain(ticket))
}

// UpdateLog applies a partial edit to an existing log.
// PUT /api/v1/tickets/:id
func (h *Handler) UpdateLog(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ticket, err := h.svc.UpdateLog(c.Request.Context(), identity.UserID(), isPrivileged(identity), id, service.UpdateLogInput{
		Equipment:   req.Equipment,
		TimeIn:      req.TimeIn,
		TimeOut:     req.TimeOut,
		BulkSaltQty: req.BulkSaltQty,
		BagSaltQty:  req.BagSaltQty,
		CalciumQty:  req.CalciumQty,
		Note:        req.Note,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(ticket))
}

// CloseLog closes an open log.
// POST /api/v1/tickets/:id/close
func (h *Handler) CloseLog(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.CloseLogRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ticket, err := h.svc.CloseLog(c.Request.Context(), identity.UserID(), isPrivileged(identity), id, req.TimeOut)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(ticket))
}

// ListOpen returns the caller's open tickets.
// GET /api/v1/tickets/open
func (h *Handler) ListOpen(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	tickets, err := h.svc.ListOpen(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomainList(tickets))
}

// SuggestedTime proposes a time-in for the next manual log.
// GET /api/v1/tickets/suggested-time
func (h *Handler) SuggestedTime(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	suggested, err := h.svc.SuggestedTime(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SuggestedTimeResponse{SuggestedTime: suggested})
}

func isPrivileged(identity httpkit.Identity) bool {
	return identity.HasRole("Admin") || identity.HasRole("Manager")
}
