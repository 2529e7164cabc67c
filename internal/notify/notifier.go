// Package notify delivers operator alerts about order sets to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event kinds an operator can subscribe to.
const (
	EventOrderSetSubmitted = "order_set_submitted"
	EventPartialSubmission = "partial_submission"
	EventError             = "error"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Event is a rendered alert.
type Event struct {
	Kind  string
	Title string
	Body  string
}

// Notifier fans events out to every sender. Only kinds listed at
// construction are forwarded; an empty list forwards everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether kind would be delivered.
func (n *Notifier) Enabled(kind string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.allowed) == 0 || n.allowed[kind]
}

// Notify delivers ev to every sender. A failing sender does not stop the
// others; all failures are joined into the returned error. A nil Notifier
// drops everything.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if !n.Enabled(ev.Kind) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, ev.Title, ev.Body); err != nil {
			n.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", ev.Kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notify: sent",
			slog.String("sender", s.Name()),
			slog.String("event", ev.Kind),
		)
	}
	return errors.Join(errs...)
}
