// Package notify carries warning conditions (bumped launches that could not
// be rebooked, abandoned voting sessions, repeated flush failures) to an ops
// channel. Delivery is best-effort; a failed alert never fails the operation
// that raised it.
package notify

import "context"

// Notifier delivers operational warnings.
type Notifier interface {
	Warn(ctx context.Context, msg string)
}

// Noop discards all notifications. Used when no Telegram credentials are
// configured, and in tests.
type Noop struct{}

func (Noop) Warn(context.Context, string) {}
