package auth

import (
	"context"
	"time"
)

// DefaultActor is the actor id used when nothing identifies the caller.
const DefaultActor = "admin"

// UsersKey is the data-bucket key of the share-link user map.
const UsersKey = "admin:share_links"

// actorContextKey is the context key for the resolved actor id.
type actorContextKey struct{}

// User is a share-link user. The map of users is keyed by Token.
type User struct {
	Username     string    `json:"username"`
	Token        string    `json:"token"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the user without its password hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// ActorFromContext extracts the actor id placed by Middleware.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(string)
	return actor, ok && actor != ""
}

// Actor returns the actor id in ctx, or DefaultActor.
func Actor(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return DefaultActor
}

// ContextWithActor adds the actor id to context.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}
