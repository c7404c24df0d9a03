package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/courtkeep/courtkeep/internal/catalog"
	appdb "github.com/courtkeep/courtkeep/internal/db"
	"github.com/courtkeep/courtkeep/internal/locks"
	"github.com/courtkeep/courtkeep/internal/notify"
	"github.com/courtkeep/courtkeep/internal/waitlist"
)

const defaultLockWait = 3 * time.Second

// Manager orchestrates check -> price -> commit atomically and owns the
// booking lifecycle. Contended resources are serialized by an in-process
// lock manager keyed per resource id, held for the duration of the
// transaction.
type Manager struct {
	store    *appdb.DB
	locks    *locks.Manager
	waitlist *waitlist.Manager
	notifier notify.BookingNotifier
	lockWait time.Duration
}

func NewManager(store *appdb.DB, lockManager *locks.Manager, wl *waitlist.Manager, lockWait time.Duration) *Manager {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Manager{
		store:    store,
		locks:    lockManager,
		waitlist: wl,
		lockWait: lockWait,
	}
}

// WithNotifier enables booking confirmation and cancellation notices.
// Delivery failures are logged and never fail the booking operation.
func (m *Manager) WithNotifier(n notify.BookingNotifier) *Manager {
	m.notifier = n
	return m
}

// CheckAvailability runs the composite availability check against committed
// state without taking locks; the result is advisory and re-verified inside
// reserve.
func (m *Manager) CheckAvailability(ctx context.Context, req ReserveRequest) (AvailabilityResult, error) {
	if err := req.validateResources(); err != nil {
		return AvailabilityResult{}, err
	}
	req.normalize()

	snap, err := catalog.Load(ctx, m.store.Queries, req.CourtID, req.Selection.CoachID)
	if err != nil {
		return AvailabilityResult{}, TransientError{Op: "load catalog", Err: err}
	}
	result, err := CheckAll(ctx, m.store.Queries, snap, req.Interval, req.Selection, "")
	if err != nil {
		return AvailabilityResult{}, TransientError{Op: "check availability", Err: err}
	}
	return result, nil
}

// Quote prices a request against the current catalog snapshot. It persists
// nothing: the same snapshot and request always produce the same breakdown.
func (m *Manager) Quote(ctx context.Context, req ReserveRequest) (PriceBreakdown, error) {
	if err := req.validateResources(); err != nil {
		return PriceBreakdown{}, err
	}
	req.normalize()

	snap, err := catalog.Load(ctx, m.store.Queries, req.CourtID, req.Selection.CoachID)
	if err != nil {
		return PriceBreakdown{}, TransientError{Op: "load catalog", Err: err}
	}
	return ComputePrice(snap, req.CourtID, req.Interval, req.Selection)
}

// Reserve validates the request, takes the locks for every touched resource
// key, then re-checks availability, prices, and persists the booking inside
// one transaction. Exactly one of two conflicting calls can succeed; the
// loser gets a ConflictError carrying the granular availability result.
func (m *Manager) Reserve(ctx context.Context, req ReserveRequest) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}
	req.normalize()

	release, err := m.locks.Acquire(ctx, resourceKeys(req), m.lockWait)
	if err != nil {
		return Booking{}, TransientError{Op: "acquire resource locks", Err: err}
	}
	defer release()

	var created appdb.Booking
	var courtName string
	err = m.store.RunInTx(ctx, func(txDB *appdb.DB) error {
		snap, err := catalog.Load(ctx, txDB.Queries, req.CourtID, req.Selection.CoachID)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		availability, err := CheckAll(ctx, txDB.Queries, snap, req.Interval, req.Selection, "")
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if !availability.AllAvailable {
			return ConflictError{
				Reason:       "resources not available",
				Availability: &availability,
			}
		}

		price, err := ComputePrice(snap, req.CourtID, req.Interval, req.Selection)
		if err != nil {
			return err
		}

		appliedRules, err := json.Marshal(price.AppliedRules)
		if err != nil {
			return fmt.Errorf("marshal applied rules: %w", err)
		}

		coachID := sql.NullString{}
		if req.Selection.CoachID != "" {
			coachID = sql.NullString{String: req.Selection.CoachID, Valid: true}
		}

		created, err = txDB.Queries.CreateBooking(ctx, appdb.CreateBookingParams{
			ID:             uuid.New().String(),
			RequesterRef:   req.Requester,
			CourtID:        req.CourtID,
			CoachID:        coachID,
			RacketCount:    int64(req.Selection.Rackets),
			ShoeCount:      int64(req.Selection.Shoes),
			StartTime:      req.Interval.Start,
			EndTime:        req.Interval.End,
			Status:         StatusConfirmed,
			BasePrice:      price.BasePrice,
			CourtPrice:     price.CourtPrice,
			EquipmentPrice: price.EquipmentPrice,
			CoachPrice:     price.CoachPrice,
			TotalPrice:     price.Total,
			AppliedRules:   string(appliedRules),
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		courtName = snap.Court.Name
		return nil
	})
	if err != nil {
		return Booking{}, classify("reserve booking", err)
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Str("booking_id", created.ID).
		Str("court_id", created.CourtID).
		Time("start", created.StartTime).
		Time("end", created.EndTime).
		Float64("total", created.TotalPrice).
		Msg("Booking confirmed")

	if m.notifier != nil {
		notice := notify.BookingNotice{
			BookingID: created.ID,
			Requester: created.RequesterRef,
			CourtID:   created.CourtID,
			CourtName: courtName,
			Start:     created.StartTime,
			End:       created.EndTime,
			Total:     created.TotalPrice,
		}
		if err := m.notifier.NotifyBookingConfirmed(ctx, notice); err != nil {
			logger.Error().Err(err).Str("booking_id", created.ID).Msg("Failed to deliver booking confirmation")
		}
	}
	return fromRow(created)
}

// Cancel flips a confirmed booking to cancelled, then runs the waitlist
// cascade for the freed slot outside the transaction. Cancelling an
// already-cancelled booking is a Conflict, not a silent success, and never
// re-triggers the cascade.
func (m *Manager) Cancel(ctx context.Context, bookingID string) (Booking, error) {
	if bookingID == "" {
		return Booking{}, ValidationError{Field: "bookingId", Reason: "is required"}
	}

	// Peek at the row for its court key; status is re-read inside the
	// transaction once the lock is held.
	existing, err := m.store.Queries.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, NotFoundError{Resource: "booking", ID: bookingID}
		}
		return Booking{}, TransientError{Op: "load booking", Err: err}
	}

	release, err := m.locks.Acquire(ctx, []string{"court:" + existing.CourtID}, m.lockWait)
	if err != nil {
		return Booking{}, TransientError{Op: "acquire court lock", Err: err}
	}
	defer release()

	var cancelled appdb.Booking
	err = m.store.RunInTx(ctx, func(txDB *appdb.DB) error {
		row, err := txDB.Queries.GetBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NotFoundError{Resource: "booking", ID: bookingID}
			}
			return fmt.Errorf("load booking: %w", err)
		}
		if row.Status == StatusCancelled {
			return ConflictError{Reason: "booking already cancelled"}
		}

		cancelledAt := time.Now().UTC()
		affected, err := txDB.Queries.CancelBooking(ctx, appdb.CancelBookingParams{
			ID:          bookingID,
			CancelledAt: cancelledAt,
		})
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if affected == 0 {
			return ConflictError{Reason: "booking already cancelled"}
		}

		row.Status = StatusCancelled
		row.CancelledAt = sql.NullTime{Time: cancelledAt, Valid: true}
		cancelled = row
		return nil
	})
	if err != nil {
		return Booking{}, classify("cancel booking", err)
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Str("booking_id", cancelled.ID).
		Str("court_id", cancelled.CourtID).
		Msg("Booking cancelled")

	// The cascade runs after the cancellation commit: a failure here may skip
	// or duplicate a notification but never corrupts booking state. The
	// scheduler's repair sweep picks up anything missed.
	if m.waitlist != nil {
		if err := m.waitlist.OnCancellation(ctx, cancelled.CourtID, cancelled.StartTime, cancelled.EndTime); err != nil {
			logger.Error().Err(err).Str("booking_id", cancelled.ID).Msg("Waitlist cascade failed")
		}
	}

	if m.notifier != nil {
		notice := notify.BookingNotice{
			BookingID: cancelled.ID,
			Requester: cancelled.RequesterRef,
			CourtID:   cancelled.CourtID,
			Start:     cancelled.StartTime,
			End:       cancelled.EndTime,
			Total:     cancelled.TotalPrice,
		}
		if court, err := m.store.Queries.GetCourt(ctx, cancelled.CourtID); err == nil {
			notice.CourtName = court.Name
		}
		if err := m.notifier.NotifyBookingCancelled(ctx, notice); err != nil {
			logger.Error().Err(err).Str("booking_id", cancelled.ID).Msg("Failed to deliver cancellation notice")
		}
	}

	return fromRow(cancelled)
}

// JoinWaitlist validates the request and appends it to the court's waitlist.
func (m *Manager) JoinWaitlist(ctx context.Context, req ReserveRequest) (waitlist.Entry, error) {
	if err := req.Validate(); err != nil {
		return waitlist.Entry{}, err
	}
	req.normalize()

	entry, err := m.waitlist.Join(ctx, waitlist.JoinRequest{
		Requester: req.Requester,
		CourtID:   req.CourtID,
		Start:     req.Interval.Start,
		End:       req.Interval.End,
		Resources: waitlist.Resources{
			Rackets: req.Selection.Rackets,
			Shoes:   req.Selection.Shoes,
			CoachID: req.Selection.CoachID,
		},
	})
	if err != nil {
		return waitlist.Entry{}, TransientError{Op: "join waitlist", Err: err}
	}
	return entry, nil
}

// Get loads a booking by id.
func (m *Manager) Get(ctx context.Context, bookingID string) (Booking, error) {
	row, err := m.store.Queries.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, NotFoundError{Resource: "booking", ID: bookingID}
		}
		return Booking{}, TransientError{Op: "load booking", Err: err}
	}
	return fromRow(row)
}

// normalize shifts interval bounds to UTC so storage comparisons are uniform.
func (r *ReserveRequest) normalize() {
	r.Interval.Start = r.Interval.Start.UTC()
	r.Interval.End = r.Interval.End.UTC()
}

// validateResources checks everything except the requester, shared by the
// requester-less operations (checkAvailability, quote).
func (r ReserveRequest) validateResources() error {
	if r.CourtID == "" {
		return ValidationError{Field: "courtId", Reason: "is required"}
	}
	if err := r.Interval.Validate(); err != nil {
		return err
	}
	if err := r.Selection.Validate(); err != nil {
		return err
	}
	if r.Selection.CoachID != "" && !r.Interval.SameDay() {
		return ValidationError{Field: "interval", Reason: "coach bookings must start and end on the same day"}
	}
	return nil
}

func resourceKeys(req ReserveRequest) []string {
	keys := []string{"court:" + req.CourtID}
	if req.Selection.Rackets > 0 {
		keys = append(keys, "equipment:"+catalog.EquipmentRacket)
	}
	if req.Selection.Shoes > 0 {
		keys = append(keys, "equipment:"+catalog.EquipmentShoe)
	}
	if req.Selection.CoachID != "" {
		keys = append(keys, "coach:"+req.Selection.CoachID)
	}
	return keys
}

// classify keeps taxonomy errors as-is and wraps everything else as
// transient, since the transaction rolled back whole.
func classify(op string, err error) error {
	var validation ValidationError
	var notFound NotFoundError
	var conflict ConflictError
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &conflict) {
		return err
	}
	return TransientError{Op: op, Err: err}
}

func fromRow(row appdb.Booking) (Booking, error) {
	var appliedRules []AppliedRule
	if row.AppliedRules != "" {
		if err := json.Unmarshal([]byte(row.AppliedRules), &appliedRules); err != nil {
			return Booking{}, fmt.Errorf("unmarshal applied rules: %w", err)
		}
	}

	booked := Booking{
		ID:        row.ID,
		Requester: row.RequesterRef,
		CourtID:   row.CourtID,
		Interval: Interval{
			Start: row.StartTime,
			End:   row.EndTime,
		},
		Selection: Selection{
			Rackets: int(row.RacketCount),
			Shoes:   int(row.ShoeCount),
			CoachID: row.CoachID.String,
		},
		Status: row.Status,
		Price: PriceBreakdown{
			BasePrice:      row.BasePrice,
			CourtPrice:     row.CourtPrice,
			EquipmentPrice: row.EquipmentPrice,
			CoachPrice:     row.CoachPrice,
			AppliedRules:   appliedRules,
			Total:          row.TotalPrice,
		},
		CreatedAt: row.CreatedAt,
	}
	if row.CancelledAt.Valid {
		cancelledAt := row.CancelledAt.Time
		booked.CancelledAt = &cancelledAt
	}
	return booked, nil
}
