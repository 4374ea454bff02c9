package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/models"
	"github.com/mysterymsg/mystery/internal/services"
	"github.com/mysterymsg/mystery/pkg/response"
)

// MessageHandler serves the inbox endpoints.
type MessageHandler struct {
	inbox *services.InboxService
	jwt   *iauth.JWTService
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(inbox *services.InboxService, jwt *iauth.JWTService) *MessageHandler {
	return &MessageHandler{inbox: inbox, jwt: jwt}
}

type acceptMessagesRequest struct {
	AcceptMessages *bool `json:"accept_messages" validate:"required"`
}

type sendMessageRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /api/accept-messages
func (h *MessageHandler) GetAcceptMessages(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	accepting, err := h.inbox.GetAcceptingMessages(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "", gin.H{"is_accepting_messages": accepting})
}

// POST /api/accept-messages
//
// The response carries a fresh token because the gate is part of the session identity.
func (h *MessageHandler) SetAcceptMessages(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req acceptMessagesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.inbox.SetAcceptingMessages(requestContext(c), identity, *req.AcceptMessages)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := issueSession(h.jwt, updated)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Message acceptance status updated successfully", session)
}

// POST /api/send-message
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.inbox.SubmitMessage(requestContext(c), services.SubmitMessageInput{
		Username: req.Username,
		Content:  req.Content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "Message sent successfully", messageOf(*msg))
}

// GET /api/get-messages
func (h *MessageHandler) GetMessages(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	messages, err := h.inbox.ListMessages(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := make([]messagePayload, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, messageOf(msg))
	}

	response.Success(c, http.StatusOK, "", gin.H{"messages": payload})
}

// DELETE /api/delete-message/:messageid
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.inbox.DeleteMessage(requestContext(c), identity, c.Param("messageid")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Message deleted", nil)
}

func messageOf(msg models.Message) messagePayload {
	return messagePayload{
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}
