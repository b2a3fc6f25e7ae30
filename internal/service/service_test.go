package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/cache"
	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/internal/store/memory"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

var errBoom = errors.New("boom")

// faultyStore wraps the memory store and fails selected calls.
type faultyStore struct {
	*memory.Store

	mu             sync.Mutex
	failList       bool
	failProfiles   bool
	failBatch      bool
	failLatestFor  string
	failAddMembers bool
	failTouch      bool
	created        int
}

func (f *faultyStore) TouchProfile(ctx context.Context, id string, at time.Time) (model.Profile, error) {
	f.mu.Lock()
	fail := f.failTouch
	f.mu.Unlock()
	if fail {
		return model.Profile{}, errBoom
	}
	return f.Store.TouchProfile(ctx, id, at)
}

func (f *faultyStore) ListProfilesExcept(ctx context.Context, excludeID string) ([]model.Profile, error) {
	if f.failProfiles {
		return nil, errBoom
	}
	return f.Store.ListProfilesExcept(ctx, excludeID)
}

func (f *faultyStore) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	if f.failList {
		return nil, errBoom
	}
	return f.Store.ConversationIDsForUser(ctx, userID)
}

func (f *faultyStore) LatestMessages(ctx context.Context, ids []string) (map[string]model.Message, error) {
	if f.failBatch && len(ids) > 1 {
		return nil, errBoom
	}
	for _, id := range ids {
		if id == f.failLatestFor {
			return nil, errBoom
		}
	}
	return f.Store.LatestMessages(ctx, ids)
}

func (f *faultyStore) CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	return f.Store.CreateConversation(ctx, c)
}

func (f *faultyStore) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	if f.failAddMembers {
		return errBoom
	}
	return f.Store.AddParticipants(ctx, conversationID, userIDs...)
}

type fixture struct {
	store *faultyStore
	hub   *live.Hub
	log   *logger.Logger

	directory  *service.Directory
	resolver   *service.Resolver
	messages   *service.Messages
	reads      *service.ReadState
	aggregator *service.Aggregator
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	st := &faultyStore{Store: memory.New()}
	hub := live.NewHub()
	log := logger.Nop()

	f := &fixture{
		store:      st,
		hub:        hub,
		log:        log,
		directory:  service.NewDirectory(st, hub, nil, log),
		resolver:   service.NewResolver(st, st, log),
		messages:   service.NewMessages(st, hub, log),
		reads:      service.NewReadState(st, log),
		aggregator: service.NewAggregator(st, log, 4),
	}
	for _, id := range users {
		_, err := f.directory.Register(context.Background(), model.Profile{ID: id, Username: "user-" + id})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) session(userID string) *service.Session {
	return service.NewSession(service.SessionConfig{
		Identity:  identity.Static(userID),
		Store:     f.store,
		Feed:      f.hub,
		Directory: f.directory,
	}, f.log)
}

func TestEndToEnd_FirstMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")

	c1, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotEmpty(t, c1)

	msg, err := f.messages.Append(ctx, c1, "u1", "hello")
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	unread, err := f.reads.UnreadCount(ctx, c1, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	_, err = f.reads.MarkRead(ctx, c1, "u2")
	require.NoError(t, err)

	unread, err = f.reads.UnreadCount(ctx, c1, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	history, err := f.messages.LoadHistory(ctx, c1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestResolver_SymmetricAndIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3")

	ab, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := f.resolver.Resolve(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.Equal(t, ab, again)

		reverse, err := f.resolver.Resolve(ctx, "u2", "u1")
		require.NoError(t, err)
		assert.Equal(t, ab, reverse)
	}

	ac, err := f.resolver.Resolve(ctx, "u1", "u3")
	require.NoError(t, err)
	assert.NotEqual(t, ab, ac)
	assert.Equal(t, 2, f.store.created)
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")

	tests := []struct {
		name     string
		caller   string
		other    string
		wantKind model.Kind
	}{
		{name: "no caller", caller: "", other: "u2", wantKind: model.KindNotAuthenticated},
		{name: "no target", caller: "u1", other: "", wantKind: model.KindValidation},
		{name: "self", caller: "u1", other: "u1", wantKind: model.KindValidation},
		{name: "unknown target", caller: "u1", other: "ghost", wantKind: model.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.resolver.Resolve(ctx, tt.caller, tt.other)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, model.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.store.created)
}

func TestResolver_ParticipantFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	f.store.failAddMembers = true

	_, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBackend)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, f.store.created, "conversation row is not rolled back")
}

func TestMessages_AppendErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3")
	conv, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)

	tests := []struct {
		name     string
		conv     string
		sender   string
		content  string
		wantKind model.Kind
	}{
		{name: "blank content", conv: conv, sender: "u1", content: " \n\t ", wantKind: model.KindValidation},
		{name: "no sender", conv: conv, sender: "", content: "hi", wantKind: model.KindNotAuthenticated},
		{name: "outsider", conv: conv, sender: "u3", content: "hi", wantKind: model.KindValidation},
		{name: "missing conversation", conv: "nope", sender: "u1", content: "hi", wantKind: model.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messages.Append(ctx, tt.conv, tt.sender, tt.content)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, model.KindOf(err))
		})
	}

	history, err := f.messages.LoadHistory(ctx, conv)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMessages_AppendTrimsAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	conv, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)

	var got []model.ChangeEvent
	sub, err := f.hub.Subscribe(ctx, live.MessagesTopic(conv), func(ev model.ChangeEvent) { got = append(got, ev) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	msg, err := f.messages.Append(ctx, conv, "u1", "  hi there  ")
	require.NoError(t, err)
	assert.Equal(t, "hi there", msg.Content)

	require.Len(t, got, 1)
	assert.Equal(t, msg.ID, got[0].Message.ID)
}

func TestMessages_HistoryOrderedWithSenders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	conv, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)

	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range []model.Message{
		{ID: "m3", ConversationID: conv, SenderID: "u2", Content: "third", CreatedAt: at.Add(2 * time.Second)},
		{ID: "m2", ConversationID: conv, SenderID: "u1", Content: "second", CreatedAt: at},
		{ID: "m1", ConversationID: conv, SenderID: "u2", Content: "first", CreatedAt: at},
	} {
		_, err := f.store.InsertMessage(ctx, m)
		require.NoError(t, err)
	}

	history, err := f.messages.LoadHistoryWithSenders(ctx, conv)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
	assert.Equal(t, "m3", history[2].ID)
	require.NotNil(t, history[0].Sender)
	assert.Equal(t, "user-u2", history[0].Sender.Username)

	_, err = f.messages.LoadHistory(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReadState_IdempotentAndConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	conv, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)

	send := func(sender, text string) {
		_, err := f.messages.Append(ctx, conv, sender, text)
		require.NoError(t, err)
	}
	expectUnread := func(reader string) int {
		history, err := f.messages.LoadHistory(ctx, conv)
		require.NoError(t, err)
		n := 0
		for _, m := range history {
			if m.SenderID != reader && !m.IsRead {
				n++
			}
		}
		return n
	}
	check := func(reader string) {
		got, err := f.reads.UnreadCount(ctx, conv, reader)
		require.NoError(t, err)
		assert.Equal(t, expectUnread(reader), got)
	}

	send("u1", "a")
	send("u1", "b")
	send("u2", "c")
	check("u1")
	check("u2")

	n, err := f.reads.MarkRead(ctx, conv, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	check("u2")

	n, err = f.reads.MarkRead(ctx, conv, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	unread, err := f.reads.UnreadCount(ctx, conv, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	send("u1", "d")
	check("u2")
	check("u1")

	_, err = f.reads.MarkRead(ctx, conv, "")
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestAggregator_ListConversations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3", "u4")

	quiet, err := f.resolver.Resolve(ctx, "u1", "u4")
	require.NoError(t, err)
	older, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	newer, err := f.resolver.Resolve(ctx, "u1", "u3")
	require.NoError(t, err)

	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range []model.Message{
		{ID: "a1", ConversationID: older, SenderID: "u2", Content: "x", CreatedAt: at},
		{ID: "a2", ConversationID: older, SenderID: "u2", Content: "y", CreatedAt: at.Add(time.Second)},
		{ID: "b1", ConversationID: newer, SenderID: "u1", Content: "z", CreatedAt: at.Add(time.Minute)},
	} {
		_, err := f.store.InsertMessage(ctx, m)
		require.NoError(t, err)
	}

	summaries, err := f.aggregator.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, newer, summaries[0].Conversation.ID)
	assert.Equal(t, "u3", summaries[0].Other.ID)
	assert.Equal(t, 0, summaries[0].UnreadCount)
	assert.Equal(t, "b1", summaries[0].LastMessage.ID)

	assert.Equal(t, older, summaries[1].Conversation.ID)
	assert.Equal(t, 2, summaries[1].UnreadCount)
	assert.Equal(t, "a2", summaries[1].LastMessage.ID)
	assert.False(t, summaries[1].Conversation.CreatedAt.IsZero())

	assert.Equal(t, quiet, summaries[2].Conversation.ID)
	assert.Nil(t, summaries[2].LastMessage)
}

func TestAggregator_SkipsFailingConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3")

	good, err := f.resolver.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	bad, err := f.resolver.Resolve(ctx, "u1", "u3")
	require.NoError(t, err)

	f.store.failBatch = true
	f.store.failLatestFor = bad

	summaries, err := f.aggregator.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, good, summaries[0].Conversation.ID)
}

func TestAggregator_DegradesToEmpty(t *testing.T) {
	f := newFixture(t, "u1")
	f.store.failList = true

	summaries, err := f.aggregator.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)

	_, err = f.aggregator.ListConversations(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestDirectory_ListOtherUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3")

	users := f.directory.ListOtherUsers(ctx, "u1")
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, "u1", u.ID)
	}

	f.store.failProfiles = true
	users = f.directory.ListOtherUsers(ctx, "u1")
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestDirectory_Register(t *testing.T) {
	f := newFixture(t)
	_, err := f.directory.Register(context.Background(), model.Profile{Username: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	p, err := f.directory.Register(context.Background(), model.Profile{Username: "wanderer"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.LastOnline.IsZero())
}

func TestDirectory_TouchPresence(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	hub := live.NewHub()
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	throttle := cache.NewMemoryThrottle().WithClock(clock)

	dir := service.NewDirectory(st, hub, throttle, logger.Nop(),
		service.WithTouchInterval(30*time.Second),
		service.WithClock(clock),
	)
	_, err := dir.Register(ctx, model.Profile{ID: "u1", Username: "alice", LastOnline: now.Add(-time.Hour)})
	require.NoError(t, err)

	events := 0
	sub, err := hub.Subscribe(ctx, live.ProfileTopic("u1"), func(model.ChangeEvent) { events++ })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	dir.TouchPresence(ctx, "u1")
	p, err := dir.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.LastOnline.Equal(now))
	assert.True(t, dir.IsOnline(p, now.Add(time.Minute)))
	assert.Equal(t, 1, events)

	now = now.Add(10 * time.Second)
	dir.TouchPresence(ctx, "u1")
	p, err = dir.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.LastOnline.Equal(now.Add(-10*time.Second)), "throttled heartbeat is not stored")
	assert.Equal(t, 1, events)

	dir.TouchPresence(ctx, "ghost")
	dir.TouchPresence(ctx, "")
}

func TestDirectory_FailedTouchDoesNotConsumeInterval(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: memory.New()}
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	dir := service.NewDirectory(st, live.NewHub(), cache.NewMemoryThrottle().WithClock(clock), logger.Nop(),
		service.WithTouchInterval(30*time.Second),
		service.WithClock(clock),
	)
	_, err := dir.Register(ctx, model.Profile{ID: "u1", Username: "alice", LastOnline: now.Add(-time.Hour)})
	require.NoError(t, err)

	st.failTouch = true
	dir.TouchPresence(ctx, "u1")

	st.failTouch = false
	now = now.Add(5 * time.Second)
	dir.TouchPresence(ctx, "u1")

	p, err := dir.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.LastOnline.Equal(now), "retry inside the interval is stored after a failed write")
}

func TestSession_RequiresIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	anon := f.session("")

	_, err := anon.Resolve(ctx, "u2")
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
	_, err = anon.Send(ctx, "c", "hello")
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
	_, err = anon.Conversations(ctx)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
	assert.Empty(t, anon.Users(ctx))
}

func TestSession_OutsiderSeesNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2", "u3")
	conv, err := f.session("u1").Resolve(ctx, "u2")
	require.NoError(t, err)

	outsider := f.session("u3")
	_, err = outsider.History(ctx, conv)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = outsider.MarkRead(ctx, conv)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = outsider.Open(ctx, conv, false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSession_OpenRoomReceivesLiveMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")
	alice, bob := f.session("u1"), f.session("u2")

	conv, err := alice.Resolve(ctx, "u2")
	require.NoError(t, err)
	_, err = alice.Send(ctx, conv, "before")
	require.NoError(t, err)

	var pushed []model.Message
	room, err := bob.Open(ctx, conv, true)
	require.NoError(t, err)
	defer room.Close()
	require.Len(t, room.Follow(func(m model.Message) { pushed = append(pushed, m) }), 1)

	unread, err := bob.Unread(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, 0, unread, "opening with auto-read marks history read")

	sent, err := alice.Send(ctx, conv, "after")
	require.NoError(t, err)

	snapshot := room.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, sent.ID, snapshot[1].ID)
	require.Len(t, pushed, 1)
	require.NotNil(t, pushed[0].Sender, "sender filled from history")

	unread, err = bob.Unread(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	summaries, err := alice.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, sent.ID, summaries[0].LastMessage.ID)
}

func TestSession_WatchPresence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1", "u2")

	changes := 0
	w, err := f.session("u1").WatchPresence(ctx, "u2", func(model.Profile) { changes++ })
	require.NoError(t, err)
	defer w.Detach()

	f.session("u2").TouchPresence(ctx)
	assert.Equal(t, 1, changes)
	assert.True(t, w.Online(time.Now()))
}

var _ store.Store = (*faultyStore)(nil)
