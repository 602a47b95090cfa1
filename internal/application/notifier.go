package application

import "context"

// Notifier is the outbound event surface the core publishes to. Delivery
// is someone else's problem: implementations may fan out to push, SMS or
// email, and every call is fire-and-forget from the caller's point of
// view. Errors are logged at the publish site and never propagated.
type Notifier interface {
	SessionScheduled(ctx context.Context, sessionID string) error
	SessionStarting(ctx context.Context, sessionID string) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

// SessionScheduled implements Notifier.
func (NopNotifier) SessionScheduled(context.Context, string) error { return nil }

// SessionStarting implements Notifier.
func (NopNotifier) SessionStarting(context.Context, string) error { return nil }
