package service

import (
	"context"
	"log/slog"
)

// Notifier delivers a message to a user through the chat frontend.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// notifyBestEffort attempts a notification and discards the error.
// Delivery failures must never affect the outcome of the operation
// that triggered them, so they are logged and swallowed here.
func notifyBestEffort(ctx context.Context, n Notifier, logger *slog.Logger, userID, text string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, text); err != nil {
		logger.Warn("notification failed", "user_id", userID, "error", err)
	}
}
