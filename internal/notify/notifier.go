// Package notify delivers waitlist notifications. The engine only flips the
// notified flag; delivery itself is this package's side effect.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SlotFreedNotice describes a freed slot offered to a waitlist entry.
type SlotFreedNotice struct {
	EntryID   string
	Requester string
	CourtID   string
	CourtName string
	Start     time.Time
	End       time.Time
	Position  int64
}

// Notifier is the side-effect port handed to the waitlist cascade. Delivery
// is best-effort, at-least-once; implementations must tolerate duplicates.
type Notifier interface {
	NotifySlotFreed(ctx context.Context, notice SlotFreedNotice) error
}

// LogNotifier writes notifications to the log. It is the default when no
// delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) NotifySlotFreed(ctx context.Context, notice SlotFreedNotice) error {
	log.Ctx(ctx).Info().
		Str("waitlist_id", notice.EntryID).
		Str("requester", notice.Requester).
		Str("court_id", notice.CourtID).
		Time("slot_start", notice.Start).
		Time("slot_end", notice.End).
		Int64("position", notice.Position).
		Msg("Waitlist slot freed")
	return nil
}

// EmailSender provides a testable abstraction over SES delivery.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// EmailNotifier delivers slot-freed notices by email. The requester ref is
// used as the recipient address.
type EmailNotifier struct {
	sender EmailSender
}

func NewEmailNotifier(sender EmailSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) NotifySlotFreed(ctx context.Context, notice SlotFreedNotice) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("email notifier is not initialized")
	}

	courtLabel := notice.CourtName
	if courtLabel == "" {
		courtLabel = notice.CourtID
	}
	subject := fmt.Sprintf("A slot on %s is now available", courtLabel)
	body := fmt.Sprintf(
		"Good news! The slot you were waiting for has opened up.\n\n"+
			"Court: %s\nStart: %s\nEnd: %s\n\n"+
			"This slot is offered first-come, first-served. Book soon to keep it.",
		courtLabel,
		notice.Start.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		notice.End.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
	)

	if err := n.sender.Send(ctx, notice.Requester, subject, body); err != nil {
		return fmt.Errorf("send waitlist email: %w", err)
	}
	return nil
}
