package nats_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	chatnats "github.com/sudwiptokm/TravelBuddy/internal/nats"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		name    string
		topic   live.Topic
		want    string
		wantErr bool
	}{
		{name: "messages", topic: live.MessagesTopic("c1"), want: "chat.conv.c1.msg.inserted"},
		{name: "profile", topic: live.ProfileTopic("u1"), want: "chat.profile.u1.updated"},
		{name: "empty key", topic: live.MessagesTopic(""), wantErr: true},
		{name: "wildcard key", topic: live.MessagesTopic("c1.>"), wantErr: true},
		{name: "unknown type", topic: live.Topic{Type: "trip.created", Key: "t1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chatnats.Subject(tt.topic)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeed_PublishSubscribe(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := chatnats.Connect(ctx, chatnats.Config{URL: url, Name: "travelbuddy-test"}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.EnsureStream(ctx))

	feed := chatnats.NewFeed(client)
	conversationID := uuid.NewString()
	received := make(chan model.ChangeEvent, 1)

	b := live.NewBridge(feed, live.MessagesTopic(conversationID), "messages", func(ev model.ChangeEvent) {
		received <- ev
	})
	require.NoError(t, b.Attach(ctx))
	defer b.Detach()

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       "u1",
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, feed.Publish(ctx, model.NewMessageInserted(msg)))

	select {
	case ev := <-received:
		require.NotNil(t, ev.Message)
		assert.Equal(t, msg.ID, ev.Message.ID)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}

	replayed, err := feed.Replay(ctx, live.MessagesTopic(conversationID), msg.CreatedAt.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	assert.Equal(t, msg.ID, replayed[0].Message.ID)
}
