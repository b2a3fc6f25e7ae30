package handler

import (
	"net/http"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// UserHandler handles directory and presence endpoints.
type UserHandler struct {
	session *service.Session
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(session *service.Session, log *logger.Logger) *UserHandler {
	return &UserHandler{
		session: session,
		logger:  log,
	}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users := h.session.Users(r.Context())
	writeJSON(w, http.StatusOK, &model.ListUsersResponse{Users: users})
}

// Touch handles POST /api/v1/presence
func (h *UserHandler) Touch(w http.ResponseWriter, r *http.Request) {
	h.session.TouchPresence(r.Context())
	w.WriteHeader(http.StatusAccepted)
}
