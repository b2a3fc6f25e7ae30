package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
)

// streamBuffer is how many live messages may queue for a slow client before
// the stream is closed and the client has to reconnect for a fresh snapshot.
const streamBuffer = 256

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	session   *service.Session
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(session *service.Session, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		session:   session,
		logger:    log,
		heartbeat: heartbeat,
	}
}

// Stream handles GET /api/v1/conversations/:id/stream
//
// The first event is a snapshot of the merged history, followed by one
// message event per live insert. ?auto_read=false keeps read state untouched.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	autoRead := true
	if v := r.URL.Query().Get("auto_read"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "auto_read must be a boolean")
			return
		}
		autoRead = b
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	incoming := make(chan model.Message, streamBuffer)
	overflow := make(chan struct{})
	overflowed := false
	onMessage := func(m model.Message) {
		select {
		case incoming <- m:
		default:
			// calls are serialized by the room, so no locking is needed
			if !overflowed {
				overflowed = true
				close(overflow)
			}
		}
	}

	room, err := h.session.Open(ctx, conversationID, autoRead)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer room.Close()

	log := h.logger.With(
		zap.String("conversation_id", conversationID),
		zap.String("user_id", middleware.GetUserID(ctx)),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// messages merged after this point arrive through incoming only
	snapshot := room.Follow(onMessage)
	if err := sendSSEEvent(w, flusher, "snapshot", &model.SnapshotEvent{
		ConversationID: conversationID,
		Messages:       snapshot,
	}); err != nil {
		log.Warn("failed to write snapshot", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case m := <-incoming:
			if err := sendSSEEvent(w, flusher, "message", &m); err != nil {
				log.Warn("failed to write message", zap.Error(err))
				return
			}

		case <-overflow:
			log.Warn("SSE client too slow, closing stream")
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "resync_required",
				Message: "stream fell behind; reconnect to resync",
			})
			return

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
