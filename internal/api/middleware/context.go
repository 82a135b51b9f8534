package middleware

import (
	"context"
	"net/http"

	"github.com/interpretly/booking/internal/booking"
)

type contextKey string

const (
	actorKey     contextKey = "actor"
	keyPrefixKey contextKey = "key_prefix"
)

// SetActor stores the resolved caller on the context. Exported so tests can
// build authenticated requests without running the auth middleware.
func SetActor(ctx context.Context, actor booking.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor returns the authenticated caller set by the auth middleware.
func GetActor(r *http.Request) (booking.Actor, bool) {
	actor, ok := r.Context().Value(actorKey).(booking.Actor)
	return actor, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}
