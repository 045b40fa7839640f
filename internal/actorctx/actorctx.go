package actorctx

import "context"

type ctxKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID  string
	IsAdmin bool
}

func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func From(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKey{}).(Identity)
	return v, ok && v.UserID != ""
}

// UserIDFrom returns the caller's id, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := From(ctx)
	return id.UserID, ok
}
