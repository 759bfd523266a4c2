package sms

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	convdomain "winterops_backend/internal/conversation/domain"
	convrepo "winterops_backend/internal/conversation/repository"
	convsvc "winterops_backend/internal/conversation/service"
	"winterops_backend/platform/httpkit"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/phone"
	"winterops_backend/platform/validator"
)

// twiml is the provider's webhook acknowledgment envelope. The webhook
// always answers with an empty envelope; replies travel through the
// outbound gateway as separate messages.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// replyRetry is sent when a turn fails before anything was persisted.
const replyRetry = "Something went wrong on our end. Please resend your last message."

// ConversationEngine is the state machine the webhook feeds.
type ConversationEngine interface {
	HandleInbound(ctx context.Context, phone, body, providerSID string) (convsvc.Reply, error)
}

// MessageStore is the slice of the conversation repository the handler
// needs: transcript recording and the admin views.
type MessageStore interface {
	GetByPhone(ctx context.Context, phone string) (*convdomain.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (convdomain.Conversation, error)
	RecordOutbound(ctx context.Context, conversationID uuid.UUID, phone, body string, providerSID *string) error
	ListSummaries(ctx context.Context, limit int) ([]convrepo.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]convdomain.Message, error)
}

// ReplySender delivers one outbound text and returns the provider SID.
type ReplySender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Handler handles the inbound webhook and the admin conversation views.
type Handler struct {
	conversations ConversationEngine
	repo          MessageStore
	dedupe        *Dedupe
	gateway       ReplySender
	region        string
	val           *validator.Validator
	log           *logger.Logger
}

// NewHandler creates a new SMS handler.
func NewHandler(conversations ConversationEngine, repo MessageStore, dedupe *Dedupe, gateway ReplySender, region string, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		repo:          repo,
		dedupe:        dedupe,
		gateway:       gateway,
		region:        region,
		val:           val,
		log:           log,
	}
}

// Webhook receives one delivered SMS from the provider.
// POST /api/v1/sms/webhook
//
// The provider retries on any non-2xx, so every path acknowledges with 200
// and an empty payload. The conversational reply is never carried in the
// acknowledgment; it goes back out through the gateway.
func (h *Handler) Webhook(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	providerSID := c.PostForm("MessageSid")

	if from == "" || providerSID == "" {
		h.log.Warn("sms webhook missing required fields", "from", from, "sid", providerSID)
		c.XML(http.StatusOK, twiml{})
		return
	}

	ctx := c.Request.Context()
	if !h.dedupe.FirstDelivery(ctx, providerSID) {
		c.XML(http.StatusOK, twiml{})
		return
	}

	normalized := phone.NormalizeE164Region(from, h.region)
	reply, err := h.conversations.HandleInbound(ctx, normalized, body, providerSID)
	if err != nil {
		h.log.Error("sms webhook processing failed", "phone", normalized, "error", err)
		// Nothing was persisted: release the fast-path claim so the
		// provider's retry gets through, and ask the crew to resend.
		h.dedupe.Forget(ctx, providerSID)
		h.deliver(ctx, uuid.Nil, normalized, replyRetry)
		c.XML(http.StatusOK, twiml{})
		return
	}
	if !reply.Duplicate && reply.Text != "" {
		h.deliver(ctx, reply.ConversationID, normalized, reply.Text)
	}

	c.XML(http.StatusOK, twiml{})
}

// deliver sends one reply through the gateway and records it on the
// conversation's transcript. A Nil conversation ID skips recording: the
// number has no transcript to write on.
func (h *Handler) deliver(ctx context.Context, conversationID uuid.UUID, to, text string) {
	sid, err := h.gateway.Send(ctx, to, text)
	if err != nil {
		h.log.GatewayError(to, err)
	}
	if conversationID == uuid.Nil {
		return
	}

	var providerSID *string
	if sid != "" {
		providerSID = &sid
	}
	if err := h.repo.RecordOutbound(ctx, conversationID, to, text, providerSID); err != nil {
		h.log.DatabaseError("sms.record_outbound", err)
	}
}

// ListConversations returns recent conversations for the admin view.
// GET /api/v1/admin/sms/conversations
func (h *Handler) ListConversations(c *gin.Context) {
	summaries, err := h.repo.ListSummaries(c.Request.Context(), 50)
	if err != nil {
		h.log.DatabaseError("sms.list_conversations", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to list conversations", nil)
		return
	}
	httpkit.OK(c, FromSummaries(summaries))
}

// ListMessages returns one conversation's transcript.
// GET /api/v1/admin/sms/conversations/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		httpkit.Error(c, http.StatusNotFound, "conversation not found", nil)
		return
	}

	messages, err := h.repo.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.log.DatabaseError("sms.list_messages", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to list messages", nil)
		return
	}
	httpkit.OK(c, FromMessages(messages))
}

// NotifyAssignmentRequest asks dispatch to text a crew member about a new
// property assignment.
type NotifyAssignmentRequest struct {
	Phone        string `json:"phone" validate:"required"`
	PropertyName string `json:"propertyName" validate:"required"`
}

// NotifyAssignment texts a crew member that a property was assigned to them.
// POST /api/v1/admin/sms/notify-assignment
func (h *Handler) NotifyAssignment(c *gin.Context) {
	var req NotifyAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	normalized := phone.NormalizeE164Region(req.Phone, h.region)
	text := fmt.Sprintf("You've been assigned to %s. Text START when you arrive on site.", req.PropertyName)

	sid, err := h.gateway.Send(ctx, normalized, text)
	if err != nil {
		h.log.Error("assignment notification failed", "phone", normalized, "error", err)
		httpkit.Error(c, http.StatusBadGateway, "failed to send notification", nil)
		return
	}

	// Keep the transcript complete when the number already has a
	// conversation going.
	if conv, err := h.repo.GetByPhone(ctx, normalized); err == nil && conv != nil {
		var providerSID *string
		if sid != "" {
			providerSID = &sid
		}
		if err := h.repo.RecordOutbound(ctx, conv.ID, normalized, text, providerSID); err != nil {
			h.log.DatabaseError("sms.record_notification", err)
		}
	}

	httpkit.OK(c, gin.H{"sent": sid != "", "sid": sid})
}
