package live

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
)

const kindMessages = "messages"

// HistoryLoader loads a conversation's messages in order.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error)
}

// ReadMarker flips messages to read for a reader.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// RoomOption configures a Room.
type RoomOption func(*Room)

// WithAutoRead marks the conversation read after history loads and whenever a
// live message from the other participant is merged. Use it only while the
// conversation is actually on screen.
func WithAutoRead(m ReadMarker) RoomOption {
	return func(r *Room) { r.reader = m }
}

// WithLogger sets the room logger.
func WithLogger(log *logger.Logger) RoomOption {
	return func(r *Room) { r.log = log }
}

// Room is an open conversation: its ordered timeline kept current by a
// message bridge.
type Room struct {
	conversationID string
	userID         string

	bridge   *Bridge
	timeline *Timeline
	history  HistoryLoader
	reader   ReadMarker

	log *logger.Logger

	// deliverMu orders timeline merges against Follow so that a message is
	// either in the returned snapshot or handed to onMessage, never both.
	deliverMu sync.Mutex
	onMessage func(model.Message)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	senders map[string]*model.Profile
}

// OpenRoom attaches to the conversation's message topic, then loads history
// into the timeline. Events delivered between the two steps are held and
// merged in order once history is applied.
func OpenRoom(ctx context.Context, feed Feed, history HistoryLoader, conversationID, userID string, opts ...RoomOption) (*Room, error) {
	roomCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Room{
		conversationID: conversationID,
		userID:         userID,
		timeline:       NewTimeline(),
		history:        history,
		log:            logger.Global(),
		ctx:            roomCtx,
		cancel:         cancel,
		senders:        make(map[string]*model.Profile),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.ForConversation(conversationID).With(zap.String("user_id", userID))
	r.bridge = NewBridge(feed, MessagesTopic(conversationID), kindMessages, r.onEvent)

	if err := r.bridge.Attach(ctx); err != nil {
		r.Close()
		return nil, err
	}

	msgs, err := history.LoadHistory(ctx, conversationID)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.mu.Lock()
	for _, m := range msgs {
		if m.Sender != nil {
			r.senders[m.SenderID] = m.Sender
		}
	}
	r.mu.Unlock()

	flushed := r.timeline.Apply(msgs)
	for range flushed {
		metrics.RecordLiveEvent(kindMessages, metrics.OutcomeMerged)
	}

	if r.reader != nil {
		r.markRead()
	}
	return r, nil
}

// ConversationID returns the id of the open conversation.
func (r *Room) ConversationID() string { return r.conversationID }

// State returns the state of the underlying bridge.
func (r *Room) State() State { return r.bridge.State() }

// Snapshot returns the merged, ordered messages.
func (r *Room) Snapshot() []model.Message {
	return r.timeline.Messages()
}

// Follow returns the current snapshot and from then on calls fn for every
// live message merged into the timeline. fn runs on the feed's delivery
// goroutine. A later Follow replaces fn; nil stops delivery.
func (r *Room) Follow(fn func(model.Message)) []model.Message {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	r.onMessage = fn
	return r.timeline.Messages()
}

// Add merges a message the caller appended itself, so the pushed echo of it
// is suppressed. It returns ErrClosed after Close.
func (r *Room) Add(m model.Message) (Outcome, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return Duplicate, ErrClosed
	}
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	return r.timeline.Merge(m), nil
}

// Close detaches the bridge and discards anything still in flight. It is idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	if r.bridge != nil {
		if err := r.bridge.Detach(); err != nil {
			r.log.Warn("failed to detach room", zap.Error(err))
		}
	}
}

func (r *Room) onEvent(ev model.ChangeEvent) {
	if ev.Type != model.EventTypeMessageInserted || ev.Message == nil {
		return
	}
	msg := *ev.Message
	if msg.ConversationID != r.conversationID {
		return
	}

	r.mu.Lock()
	if msg.Sender == nil {
		msg.Sender = r.senders[msg.SenderID]
	} else {
		r.senders[msg.SenderID] = msg.Sender
	}
	r.mu.Unlock()

	r.deliverMu.Lock()
	outcome := r.timeline.Merge(msg)
	if outcome == Merged && r.onMessage != nil {
		r.onMessage(msg)
	}
	r.deliverMu.Unlock()

	switch outcome {
	case Duplicate:
		metrics.RecordLiveEvent(kindMessages, metrics.OutcomeDuplicate)
		return
	case Deferred:
		metrics.RecordLiveEvent(kindMessages, metrics.OutcomeDeferred)
		return
	}
	metrics.RecordLiveEvent(kindMessages, metrics.OutcomeMerged)

	if r.reader != nil && msg.SenderID != r.userID {
		r.markRead()
	}
}

func (r *Room) markRead() {
	if _, err := r.reader.MarkRead(r.ctx, r.conversationID, r.userID); err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.log.Warn("failed to mark conversation read", zap.Error(err))
	}
}
