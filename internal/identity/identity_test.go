package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudwiptokm/TravelBuddy/internal/identity"
)

func TestContextProvider(t *testing.T) {
	var p identity.Provider = identity.ContextProvider{}

	_, ok := p.CurrentUser(context.Background())
	assert.False(t, ok)

	id, ok := p.CurrentUser(identity.WithUser(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	_, ok = p.CurrentUser(identity.WithUser(context.Background(), ""))
	assert.False(t, ok, "empty id is signed out")
}

func TestStatic(t *testing.T) {
	id, ok := identity.Static("u2").CurrentUser(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "u2", id)

	_, ok = identity.Static("").CurrentUser(context.Background())
	assert.False(t, ok)
}
