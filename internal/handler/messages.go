package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// MessageHandler handles message and read-state endpoints.
type MessageHandler struct {
	session *service.Session
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(session *service.Session, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		session: session,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.session.History(r.Context(), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{Messages: msgs})
}

// Send handles POST /api/v1/conversations/:id/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.session.Send(r.Context(), conversationID, req.Content)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: &msg})
}

// MarkRead handles POST /api/v1/conversations/:id/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.session.MarkRead(r.Context(), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.MarkReadResponse{Marked: n})
}

// Unread handles GET /api/v1/conversations/:id/unread
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.session.Unread(r.Context(), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.UnreadCountResponse{ConversationID: conversationID, Unread: n})
}
