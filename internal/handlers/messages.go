package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nayandeep999/truefeedback/internal/models"
	"github.com/nayandeep999/truefeedback/internal/services"
	"github.com/nayandeep999/truefeedback/pkg/errors"
	"github.com/nayandeep999/truefeedback/pkg/response"
)

// MessageHandler covers anonymous delivery and the owner's inbox operations.
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,min=2,max=300"`
}

type setAcceptanceRequest struct {
	AcceptMessages *bool `json:"accept_messages" validate:"required"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// POST /api/messages/:username (public, anonymous)
func (h *MessageHandler) Send(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		response.Error(c, errors.NewBadRequest("username is required"))
		return
	}

	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.messages.Send(requestContext(c), username, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated,
		"Message sent successfully",
		gin.H{"id": message.ID, "created_at": message.CreatedAt},
	)
}

// GET /api/messages (owner only)
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	messages, err := h.messages.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"messages": messagePayloads(messages)}

	if len(messages) == 0 {
		response.SuccessWithMessage(c, http.StatusOK, "Currently there are no messages", payload)
		return
	}

	// Pagination happens client-side; the total lets the UI size its pager
	// without counting the slice itself.
	response.SuccessWithMeta(c, http.StatusOK, payload, &response.Meta{Total: len(messages)})
}

// DELETE /api/messages/:id (owner only)
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		response.Error(c, errors.NewBadRequest("message id is required"))
		return
	}

	removed, err := h.messages.Delete(requestContext(c), userID, messageID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Removing an already-deleted message is reported as a success with a
	// zero count so retries stay harmless.
	response.SuccessWithMessage(c, http.StatusOK, "Message deleted", gin.H{"removed": removed})
}

// GET /api/accept-messages (owner only)
func (h *MessageHandler) GetAcceptance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	accepting, err := h.messages.Acceptance(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"is_accepting_messages": accepting})
}

// POST /api/accept-messages (owner only)
func (h *MessageHandler) SetAcceptance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req setAcceptanceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	stored, err := h.messages.SetAcceptance(requestContext(c), userID, *req.AcceptMessages)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK,
		"Message acceptance status updated successfully",
		gin.H{"is_accepting_messages": stored},
	)
}

func messagePayloads(messages []models.Message) []messagePayload {
	out := make([]messagePayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, messagePayload{
			ID:        m.ID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
