// Package storetest holds the conformance suite every store.Store adapter runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("conversations", func(t *testing.T) { testConversations(t, newStore(t)) })
	t.Run("message ordering", func(t *testing.T) { testMessageOrdering(t, newStore(t)) })
	t.Run("read state", func(t *testing.T) { testReadState(t, newStore(t)) })
	t.Run("latest messages", func(t *testing.T) { testLatestMessages(t, newStore(t)) })
}

func mustProfile(t *testing.T, s store.Store, username string) model.Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), model.Profile{
		ID:       uuid.NewString(),
		Username: username,
	})
	require.NoError(t, err)
	return p
}

func mustConversation(t *testing.T, s store.Store, createdAt time.Time, userIDs ...string) string {
	t.Helper()
	ctx := context.Background()
	c, err := s.CreateConversation(ctx, model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	require.NoError(t, s.AddParticipants(ctx, c.ID, userIDs...))
	return c.ID
}

func mustMessage(t *testing.T, s store.Store, convID, senderID, id string, at time.Time) model.Message {
	t.Helper()
	m, err := s.InsertMessage(context.Background(), model.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Content:        "msg " + id,
		CreatedAt:      at,
	})
	require.NoError(t, err)
	return m
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustProfile(t, s, "alice")
	bob := mustProfile(t, s, "bob")
	carol := mustProfile(t, s, "carol")

	got, err := s.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.GetProfile(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, model.ErrNotFound))

	others, err := s.ListProfilesExcept(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, others, 2)
	assert.Equal(t, bob.ID, others[0].ID)
	assert.Equal(t, carol.ID, others[1].ID)

	byID, err := s.ProfilesByIDs(ctx, []string{bob.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Equal(t, "bob", byID[bob.ID].Username)

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	touched, err := s.TouchProfile(ctx, bob.ID, at)
	require.NoError(t, err)
	assert.True(t, touched.LastOnline.Equal(at))

	_, err = s.TouchProfile(ctx, uuid.NewString(), at)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func testConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustProfile(t, s, "alice")
	bob := mustProfile(t, s, "bob")
	carol := mustProfile(t, s, "carol")

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	ab := mustConversation(t, s, base, alice.ID, bob.ID)
	ac := mustConversation(t, s, base.Add(time.Minute), alice.ID, carol.ID)

	ids, err := s.ConversationIDsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ab, ac}, ids)

	shared, err := s.FilterConversationsWithUser(ctx, ids, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ac}, shared)

	none, err := s.FilterConversationsWithUser(ctx, []string{ab}, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	others, err := s.OtherParticipants(ctx, ids, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, others[ab])
	assert.Equal(t, []string{carol.ID}, others[ac])

	ok, err := s.IsParticipant(ctx, ab, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsParticipant(ctx, ab, carol.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetConversation(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, model.ErrNotFound))

	convs, err := s.ConversationsByIDs(ctx, []string{ab, uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.True(t, convs[ab].CreatedAt.Equal(base))
}

func testMessageOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustProfile(t, s, "alice")
	bob := mustProfile(t, s, "bob")
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	conv := mustConversation(t, s, base, alice.ID, bob.ID)

	// Inserted out of order on purpose; two share a timestamp.
	mustMessage(t, s, conv, alice.ID, "00000000-0000-7000-8000-000000000003", base.Add(2*time.Second))
	mustMessage(t, s, conv, bob.ID, "00000000-0000-7000-8000-000000000002", base.Add(time.Second))
	mustMessage(t, s, conv, alice.ID, "00000000-0000-7000-8000-000000000001", base.Add(time.Second))
	mustMessage(t, s, conv, bob.ID, "00000000-0000-7000-8000-000000000000", base)

	msgs, err := s.ListMessages(ctx, conv)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i-1].Before(msgs[i]), "message %d out of order", i)
	}
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", msgs[1].ID)
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", msgs[2].ID)
	assert.False(t, msgs[0].IsRead)
}

func testReadState(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustProfile(t, s, "alice")
	bob := mustProfile(t, s, "bob")
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	conv := mustConversation(t, s, base, alice.ID, bob.ID)

	mustMessage(t, s, conv, alice.ID, uuid.Must(uuid.NewV7()).String(), base)
	mustMessage(t, s, conv, alice.ID, uuid.Must(uuid.NewV7()).String(), base.Add(time.Second))
	mustMessage(t, s, conv, bob.ID, uuid.Must(uuid.NewV7()).String(), base.Add(2*time.Second))

	counts, err := s.UnreadCounts(ctx, []string{conv}, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[conv])

	n, err := s.MarkRead(ctx, conv, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.MarkRead(ctx, conv, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	counts, err = s.UnreadCounts(ctx, []string{conv}, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[conv])

	counts, err = s.UnreadCounts(ctx, []string{conv}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[conv])
}

func testLatestMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustProfile(t, s, "alice")
	bob := mustProfile(t, s, "bob")
	carol := mustProfile(t, s, "carol")
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	ab := mustConversation(t, s, base, alice.ID, bob.ID)
	ac := mustConversation(t, s, base, alice.ID, carol.ID)

	mustMessage(t, s, ab, alice.ID, uuid.Must(uuid.NewV7()).String(), base)
	last := mustMessage(t, s, ab, bob.ID, uuid.Must(uuid.NewV7()).String(), base.Add(time.Minute))

	latest, err := s.LatestMessages(ctx, []string{ab, ac})
	require.NoError(t, err)
	require.Contains(t, latest, ab)
	assert.Equal(t, last.ID, latest[ab].ID)
	assert.NotContains(t, latest, ac)
}
