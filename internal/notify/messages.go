package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const bookingEmailTimeout = 5 * time.Second

// BookingNotice describes a confirmed or cancelled booking for delivery.
type BookingNotice struct {
	BookingID string
	Requester string
	CourtID   string
	CourtName string
	Start     time.Time
	End       time.Time
	Total     float64
}

// BookingNotifier delivers booking lifecycle notifications. Like the
// waitlist port, delivery is best-effort and never blocks booking state.
type BookingNotifier interface {
	NotifyBookingConfirmed(ctx context.Context, notice BookingNotice) error
	NotifyBookingCancelled(ctx context.Context, notice BookingNotice) error
}

// FormatDateTimeRange renders a notice interval for message bodies.
func FormatDateTimeRange(start, end time.Time) (string, string) {
	start = start.UTC()
	end = end.UTC()
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s UTC", start.Format("3:04 PM"), end.Format("3:04 PM"))
	return date, timeRange
}

func courtLabel(notice BookingNotice) string {
	if notice.CourtName != "" {
		return notice.CourtName
	}
	return notice.CourtID
}

func buildConfirmationEmail(notice BookingNotice) (string, string) {
	date, timeRange := FormatDateTimeRange(notice.Start, notice.End)
	subject := "Court Booking Confirmed"
	body := fmt.Sprintf(
		"Your booking is confirmed.\n\n"+
			"Court: %s\nDate: %s\nTime: %s\nTotal: %.2f\n\n"+
			"Booking reference: %s",
		courtLabel(notice), date, timeRange, notice.Total, notice.BookingID,
	)
	return subject, body
}

func buildCancellationEmail(notice BookingNotice) (string, string) {
	date, timeRange := FormatDateTimeRange(notice.Start, notice.End)
	subject := "Court Booking Cancelled"
	body := fmt.Sprintf(
		"Your booking has been cancelled.\n\n"+
			"Court: %s\nDate: %s\nTime: %s\n\n"+
			"Booking reference: %s",
		courtLabel(notice), date, timeRange, notice.BookingID,
	)
	return subject, body
}

func (LogNotifier) NotifyBookingConfirmed(ctx context.Context, notice BookingNotice) error {
	log.Ctx(ctx).Info().
		Str("booking_id", notice.BookingID).
		Str("requester", notice.Requester).
		Str("court_id", notice.CourtID).
		Float64("total", notice.Total).
		Msg("Booking confirmation notice")
	return nil
}

func (LogNotifier) NotifyBookingCancelled(ctx context.Context, notice BookingNotice) error {
	log.Ctx(ctx).Info().
		Str("booking_id", notice.BookingID).
		Str("requester", notice.Requester).
		Str("court_id", notice.CourtID).
		Msg("Booking cancellation notice")
	return nil
}

func (n *EmailNotifier) NotifyBookingConfirmed(ctx context.Context, notice BookingNotice) error {
	subject, body := buildConfirmationEmail(notice)
	return n.sendDetached(ctx, notice.Requester, subject, body)
}

func (n *EmailNotifier) NotifyBookingCancelled(ctx context.Context, notice BookingNotice) error {
	subject, body := buildCancellationEmail(notice)
	return n.sendDetached(ctx, notice.Requester, subject, body)
}

// sendDetached delivers asynchronously on a context detached from the
// request, so a handler returning does not abort an in-flight send.
func (n *EmailNotifier) sendDetached(ctx context.Context, recipient, subject, body string) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("email notifier is not initialized")
	}
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	logger := log.Ctx(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookingEmailTimeout)
		defer cancel()
		if err := n.sender.Send(sendCtx, recipient, subject, body); err != nil {
			logger.Error().Err(err).Str("recipient", recipient).Str("subject", subject).Msg("Failed to send booking email")
		}
	}()
	return nil
}
