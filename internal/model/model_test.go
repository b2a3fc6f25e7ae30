package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

func TestIsOnline(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lastOnline time.Time
		want       bool
	}{
		{name: "just now", lastOnline: now, want: true},
		{name: "four minutes ago", lastOnline: now.Add(-4 * time.Minute), want: true},
		{name: "exactly five minutes ago", lastOnline: now.Add(-5 * time.Minute), want: false},
		{name: "an hour ago", lastOnline: now.Add(-time.Hour), want: false},
		{name: "never", lastOnline: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.IsOnline(tt.lastOnline, now))
		})
	}
}

func TestProfile_DisplayName(t *testing.T) {
	full := "Ada Lovelace"
	empty := ""

	assert.Equal(t, "Ada Lovelace", (&model.Profile{Username: "ada", FullName: &full}).DisplayName())
	assert.Equal(t, "ada", (&model.Profile{Username: "ada", FullName: &empty}).DisplayName())
	assert.Equal(t, "ada", (&model.Profile{Username: "ada"}).DisplayName())
	assert.Equal(t, "Unknown User", (*model.Profile)(nil).DisplayName())
}

func TestSortMessages_CreatedAtThenID(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{ID: "m3", CreatedAt: base.Add(time.Second)},
		{ID: "m2", CreatedAt: base},
		{ID: "m1", CreatedAt: base},
		{ID: "m0", CreatedAt: base.Add(-time.Second)},
	}

	model.SortMessages(msgs)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, ids)
}

func TestSortSummaries(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	summaries := []model.ConversationSummary{
		{Conversation: model.Conversation{ID: "empty-b"}},
		{Conversation: model.Conversation{ID: "old"}, LastMessage: &model.Message{ID: "a", CreatedAt: base}},
		{Conversation: model.Conversation{ID: "empty-a"}},
		{Conversation: model.Conversation{ID: "new"}, LastMessage: &model.Message{ID: "b", CreatedAt: base.Add(time.Minute)}},
	}

	model.SortSummaries(summaries)

	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.Conversation.ID
	}
	assert.Equal(t, []string{"new", "old", "empty-a", "empty-b"}, ids)
}

func TestError_KindMatching(t *testing.T) {
	cause := errors.New("connection reset")

	err := fmt.Errorf("append: %w", model.Backend("insert message", cause))
	assert.True(t, errors.Is(err, model.ErrBackend))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, model.KindBackend, model.KindOf(err))

	nf := model.NotFound("load history", "conversation")
	assert.True(t, errors.Is(nf, model.ErrNotFound))
	assert.Equal(t, "load history: conversation not found", nf.Error())

	// Already classified errors are not re-wrapped as backend failures.
	require.Equal(t, nf, model.Backend("outer", nf))
	assert.Equal(t, model.KindValidation, model.KindOf(model.Validation("append", "content is empty")))
	assert.Equal(t, model.KindNotAuthenticated, model.KindOf(model.NotAuthenticated("append")))
	assert.Nil(t, model.Backend("noop", nil))
}

func TestChangeEvent_Key(t *testing.T) {
	msgEvent := model.NewMessageInserted(model.Message{ID: "m1", ConversationID: "c1"})
	assert.Equal(t, "c1", msgEvent.Key())

	profileEvent := model.NewProfileUpdated(model.Profile{ID: "u1"})
	assert.Equal(t, "u1", profileEvent.Key())

	assert.Equal(t, "", model.ChangeEvent{Type: model.EventTypeMessageInserted}.Key())
}
