package todospa

import "context"

// internal key type to avoid collisions
type asyncNotifyCtxKey struct{}

var asyncKey = asyncNotifyCtxKey{}

// WithAsynchronousNotification marks the context to request that observers be
// called on their own goroutines instead of inline.
func WithAsynchronousNotification(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncKey, true)
}

// IsAsynchronousNotification returns true if the context requests asynchronous delivery.
func IsAsynchronousNotification(ctx context.Context) bool {
	v, _ := ctx.Value(asyncKey).(bool)
	return v
}
