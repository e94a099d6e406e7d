// Package notify forwards listing lifecycle events to operator channels
// (Telegram, Discord), filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every Sender. Notify only forwards configured event
// types; an empty filter forwards everything.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders and the allowed event names.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether ev would be forwarded.
func (n *Notifier) Enabled(ev domain.EventType) bool {
	if len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[ev]
}

// Notify formats ev and sends it if its type passes the filter.
func (n *Notifier) Notify(ctx context.Context, ev domain.ListingEvent) error {
	if !n.Enabled(ev.Type) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(ev.Type)))
		return nil
	}
	title, message := Format(ev)
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a free-form message regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch tries every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Format renders ev as a title and a plain-text body.
func Format(ev domain.ListingEvent) (title, message string) {
	var b strings.Builder
	fmt.Fprintf(&b, "listing %s\n", ev.Listing)
	switch ev.Type {
	case domain.EventListingCreated:
		title = "New listing"
		fmt.Fprintf(&b, "seller %s\nends %d", ev.Wallet, ev.EndTime)
	case domain.EventBidPlaced:
		title = "Bid placed"
		fmt.Fprintf(&b, "bidder %s\nprice %s SOL", ev.Wallet, domain.FormatLamports(ev.Price))
		if ev.Extended {
			fmt.Fprintf(&b, "\nauction extended to %d", ev.EndTime)
		}
	case domain.EventBidCancelled:
		title = "Bid cancelled"
		fmt.Fprintf(&b, "bidder %s\nprice %s SOL", ev.Wallet, domain.FormatLamports(ev.Price))
	case domain.EventListingCancelled:
		title = "Listing withdrawn"
		fmt.Fprintf(&b, "seller %s", ev.Wallet)
	case domain.EventListingSettled:
		title = "Auction settled"
		fmt.Fprintf(&b, "buyer %s\nprice %s SOL", ev.Wallet, domain.FormatLamports(ev.Price))
	default:
		title = string(ev.Type)
	}
	return title, b.String()
}
