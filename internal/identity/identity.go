// Package identity answers "who is the signed-in user" for the messaging core.
package identity

import "context"

type contextKey struct{}

// Provider resolves the current user from a request context.
type Provider interface {
	// CurrentUser returns the signed-in user id, or false if there is none.
	CurrentUser(ctx context.Context) (string, bool)
}

// WithUser returns a copy of ctx carrying userID as the signed-in user.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the user id stored by WithUser.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextProvider reads the user that authentication middleware stored on the context.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (string, bool) {
	id := UserFromContext(ctx)
	return id, id != ""
}

// Static always reports the same user. An empty Static means signed out.
type Static string

func (s Static) CurrentUser(context.Context) (string, bool) {
	return string(s), s != ""
}
