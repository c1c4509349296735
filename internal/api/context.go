package api

import "context"

type ctxKey string

const ctxKeyActor ctxKey = "actor"

// Actor is the authenticated caller. Role and scope checks happen in the core
// against the stored user, so only the id is carried.
type Actor struct {
	UserID string
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

func ActorFromContext(ctx context.Context) *Actor {
	v := ctx.Value(ctxKeyActor)
	if v == nil {
		return nil
	}
	a, _ := v.(*Actor)
	return a
}
