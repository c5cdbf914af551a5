// Package auth carries the authenticated caller's identity through a request.
// Core services never read it; handlers extract the PersonID and pass it on
// explicitly.
package auth

import "context"

type contextKey struct{}

func WithPerson(ctx context.Context, personID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, personID)
}

// PersonID returns the authenticated person, if any.
func PersonID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok && id > 0
}
