package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/internal/store/sqlite"
	"github.com/sudwiptokm/TravelBuddy/internal/store/storetest"
)

func openTemp(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "travelbuddy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t)
	})
}

func TestStore_ConstraintErrors(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.CreateProfile(ctx, model.Profile{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	_, err = s.CreateProfile(ctx, model.Profile{ID: "u2", Username: "alice"})
	assert.True(t, errors.Is(err, model.ErrValidation), "duplicate username: %v", err)

	_, err = s.InsertMessage(ctx, model.Message{
		ID:             "m1",
		ConversationID: "missing",
		SenderID:       "u1",
		Content:        "hello",
		CreatedAt:      time.Now(),
	})
	assert.True(t, errors.Is(err, model.ErrNotFound), "missing conversation: %v", err)
}

func TestStore_PreservesTimestamps(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	at := time.Date(2025, 5, 1, 12, 0, 0, 123456789, time.UTC)
	_, err := s.CreateProfile(ctx, model.Profile{ID: "u1", Username: "alice", LastOnline: at})
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.LastOnline.Equal(at))
	assert.Nil(t, p.FullName)
}
