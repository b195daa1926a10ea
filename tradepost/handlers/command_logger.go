// Package handlers carries cross-cutting interaction middleware.
package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
)

const (
	slowThreshold      = 2 * time.Second
	interactionTimeout = 10 * time.Second
)

// WrapWithLogging wraps a command handler with start/finish logging and a
// hard timeout.
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return logged("cmd", name, e.User(), func() error { return h(e) })
	}
}

// WrapComponentWithLogging is WrapWithLogging for component interactions.
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return logged("component", name, e.User(), func() error { return h(e) })
	}
}

// WrapModalWithLogging is WrapWithLogging for modal submissions.
func WrapModalWithLogging(name string, h handler.ModalHandler) handler.ModalHandler {
	return func(e *handler.ModalEvent) error {
		return logged("modal", name, e.User(), func() error { return h(e) })
	}
}

func logged(kind, name string, user discord.User, run func() error) error {
	start := time.Now()
	slog.Info("Interaction started",
		slog.String("type", kind),
		slog.String("name", name),
		slog.String("user_id", user.ID.String()),
		slog.String("user_name", user.Username),
	)

	done := make(chan error, 1)
	go func() {
		done <- run()
	}()

	select {
	case err := <-done:
		duration := time.Since(start)
		attrs := []any{
			slog.String("type", kind),
			slog.String("name", name),
			slog.String("user_id", user.ID.String()),
			slog.String("user_name", user.Username),
			slog.Duration("took", duration),
		}

		switch {
		case err != nil:
			slog.Error("Interaction failed", append(attrs,
				slog.Any("error", err),
				slog.String("status", "failed"),
			)...)
		case duration > slowThreshold:
			slog.Warn("Interaction executed slowly", append(attrs,
				slog.String("status", "slow"),
			)...)
		default:
			slog.Info("Interaction completed", append(attrs,
				slog.String("status", "success"),
			)...)
		}
		return err

	case <-time.After(interactionTimeout):
		slog.Error("Interaction timed out",
			slog.String("type", kind),
			slog.String("name", name),
			slog.String("user_id", user.ID.String()),
			slog.String("user_name", user.Username),
			slog.String("status", "timeout"),
			slog.Duration("timeout", interactionTimeout),
		)
		return fmt.Errorf("interaction timed out after %s", interactionTimeout)
	}
}
