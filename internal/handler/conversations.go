// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	session *service.Session
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(session *service.Session, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		session: session,
		logger:  log,
	}
}

// Resolve handles POST /api/v1/conversations
func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req model.ResolveConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.session.Resolve(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ResolveConversationResponse{ConversationID: id})
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.session.Conversations(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         len(summaries),
	})
}
