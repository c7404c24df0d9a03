// internal/db/queries.go
package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same query layer runs inside and outside transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type Court struct {
	ID        string
	Name      string
	CourtType string
	BasePrice float64
	Active    bool
}

type Equipment struct {
	EquipmentType string
	TotalStock    int64
	RentalPrice   float64
	Active        bool
}

type Coach struct {
	ID         string
	Name       string
	HourlyRate float64
	Active     bool
}

type CoachWindow struct {
	ID        int64
	CoachID   string
	DayOfWeek int64
	StartsAt  string
	EndsAt    string
}

type PricingRule struct {
	ID            string
	Name          string
	Kind          string
	Priority      int64
	Active        bool
	WindowStart   sql.NullString
	WindowEnd     sql.NullString
	DaysOfWeek    sql.NullString
	AppliesTo     string
	HolidayDates  sql.NullString
	ModifierKind  string
	ModifierValue float64
}

type Booking struct {
	ID             string
	RequesterRef   string
	CourtID        string
	CoachID        sql.NullString
	RacketCount    int64
	ShoeCount      int64
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	BasePrice      float64
	CourtPrice     float64
	EquipmentPrice float64
	CoachPrice     float64
	TotalPrice     float64
	AppliedRules   string
	CreatedAt      time.Time
	CancelledAt    sql.NullTime
}

type WaitlistEntry struct {
	ID             string
	RequesterRef   string
	CourtID        string
	PreferredStart time.Time
	PreferredEnd   time.Time
	RacketCount    int64
	ShoeCount      int64
	CoachID        sql.NullString
	Position       int64
	Notified       bool
	CreatedAt      time.Time
}

const getCourt = `
SELECT id, name, court_type, base_price, active FROM courts WHERE id = ?
`

func (q *Queries) GetCourt(ctx context.Context, id string) (Court, error) {
	var c Court
	err := q.db.QueryRowContext(ctx, getCourt, id).
		Scan(&c.ID, &c.Name, &c.CourtType, &c.BasePrice, &c.Active)
	return c, err
}

const getEquipment = `
SELECT equipment_type, total_stock, rental_price, active FROM equipment WHERE equipment_type = ?
`

func (q *Queries) GetEquipment(ctx context.Context, equipmentType string) (Equipment, error) {
	var e Equipment
	err := q.db.QueryRowContext(ctx, getEquipment, equipmentType).
		Scan(&e.EquipmentType, &e.TotalStock, &e.RentalPrice, &e.Active)
	return e, err
}

const getCoach = `
SELECT id, name, hourly_rate, active FROM coaches WHERE id = ?
`

func (q *Queries) GetCoach(ctx context.Context, id string) (Coach, error) {
	var c Coach
	err := q.db.QueryRowContext(ctx, getCoach, id).
		Scan(&c.ID, &c.Name, &c.HourlyRate, &c.Active)
	return c, err
}

const listCoachWindows = `
SELECT id, coach_id, day_of_week, starts_at, ends_at
FROM coach_availability
WHERE coach_id = ?
ORDER BY day_of_week, starts_at
`

func (q *Queries) ListCoachWindows(ctx context.Context, coachID string) ([]CoachWindow, error) {
	rows, err := q.db.QueryContext(ctx, listCoachWindows, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []CoachWindow
	for rows.Next() {
		var w CoachWindow
		if err := rows.Scan(&w.ID, &w.CoachID, &w.DayOfWeek, &w.StartsAt, &w.EndsAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

const listActivePricingRules = `
SELECT id, name, kind, priority, active, window_start, window_end, days_of_week,
       applies_to, holiday_dates, modifier_kind, modifier_value
FROM pricing_rules
WHERE active = 1
ORDER BY priority, id
`

func (q *Queries) ListActivePricingRules(ctx context.Context) ([]PricingRule, error) {
	rows, err := q.db.QueryContext(ctx, listActivePricingRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []PricingRule
	for rows.Next() {
		var r PricingRule
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Kind, &r.Priority, &r.Active,
			&r.WindowStart, &r.WindowEnd, &r.DaysOfWeek,
			&r.AppliesTo, &r.HolidayDates, &r.ModifierKind, &r.ModifierValue,
		); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type CountCourtOverlapsParams struct {
	CourtID   string
	StartTime time.Time
	EndTime   time.Time
	ExcludeID string
}

const countCourtOverlaps = `
SELECT COUNT(*)
FROM bookings
WHERE court_id = ?
  AND status = 'confirmed'
  AND start_time < ?
  AND end_time > ?
  AND id != ?
`

func (q *Queries) CountCourtOverlaps(ctx context.Context, arg CountCourtOverlapsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCourtOverlaps,
		arg.CourtID, arg.EndTime, arg.StartTime, arg.ExcludeID,
	).Scan(&count)
	return count, err
}

type SumEquipmentInUseParams struct {
	StartTime time.Time
	EndTime   time.Time
	ExcludeID string
}

type SumEquipmentInUseRow struct {
	Rackets int64
	Shoes   int64
}

const sumEquipmentInUse = `
SELECT COALESCE(SUM(racket_count), 0), COALESCE(SUM(shoe_count), 0)
FROM bookings
WHERE status = 'confirmed'
  AND start_time < ?
  AND end_time > ?
  AND id != ?
`

func (q *Queries) SumEquipmentInUse(ctx context.Context, arg SumEquipmentInUseParams) (SumEquipmentInUseRow, error) {
	var row SumEquipmentInUseRow
	err := q.db.QueryRowContext(ctx, sumEquipmentInUse,
		arg.EndTime, arg.StartTime, arg.ExcludeID,
	).Scan(&row.Rackets, &row.Shoes)
	return row, err
}

type CountCoachOverlapsParams struct {
	CoachID   string
	StartTime time.Time
	EndTime   time.Time
	ExcludeID string
}

const countCoachOverlaps = `
SELECT COUNT(*)
FROM bookings
WHERE coach_id = ?
  AND status = 'confirmed'
  AND start_time < ?
  AND end_time > ?
  AND id != ?
`

func (q *Queries) CountCoachOverlaps(ctx context.Context, arg CountCoachOverlapsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCoachOverlaps,
		arg.CoachID, arg.EndTime, arg.StartTime, arg.ExcludeID,
	).Scan(&count)
	return count, err
}

type CreateBookingParams struct {
	ID             string
	RequesterRef   string
	CourtID        string
	CoachID        sql.NullString
	RacketCount    int64
	ShoeCount      int64
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	BasePrice      float64
	CourtPrice     float64
	EquipmentPrice float64
	CoachPrice     float64
	TotalPrice     float64
	AppliedRules   string
	CreatedAt      time.Time
}

const createBooking = `
INSERT INTO bookings (
    id, requester_ref, court_id, coach_id, racket_count, shoe_count,
    start_time, end_time, status, base_price, court_price, equipment_price,
    coach_price, total_price, applied_rules, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	_, err := q.db.ExecContext(ctx, createBooking,
		arg.ID, arg.RequesterRef, arg.CourtID, arg.CoachID, arg.RacketCount, arg.ShoeCount,
		arg.StartTime, arg.EndTime, arg.Status, arg.BasePrice, arg.CourtPrice, arg.EquipmentPrice,
		arg.CoachPrice, arg.TotalPrice, arg.AppliedRules, arg.CreatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	return Booking{
		ID:             arg.ID,
		RequesterRef:   arg.RequesterRef,
		CourtID:        arg.CourtID,
		CoachID:        arg.CoachID,
		RacketCount:    arg.RacketCount,
		ShoeCount:      arg.ShoeCount,
		StartTime:      arg.StartTime,
		EndTime:        arg.EndTime,
		Status:         arg.Status,
		BasePrice:      arg.BasePrice,
		CourtPrice:     arg.CourtPrice,
		EquipmentPrice: arg.EquipmentPrice,
		CoachPrice:     arg.CoachPrice,
		TotalPrice:     arg.TotalPrice,
		AppliedRules:   arg.AppliedRules,
		CreatedAt:      arg.CreatedAt,
	}, nil
}

const getBooking = `
SELECT id, requester_ref, court_id, coach_id, racket_count, shoe_count,
       start_time, end_time, status, base_price, court_price, equipment_price,
       coach_price, total_price, applied_rules, created_at, cancelled_at
FROM bookings
WHERE id = ?
`

func (q *Queries) GetBooking(ctx context.Context, id string) (Booking, error) {
	var b Booking
	err := q.db.QueryRowContext(ctx, getBooking, id).Scan(
		&b.ID, &b.RequesterRef, &b.CourtID, &b.CoachID, &b.RacketCount, &b.ShoeCount,
		&b.StartTime, &b.EndTime, &b.Status, &b.BasePrice, &b.CourtPrice, &b.EquipmentPrice,
		&b.CoachPrice, &b.TotalPrice, &b.AppliedRules, &b.CreatedAt, &b.CancelledAt,
	)
	return b, err
}

type CancelBookingParams struct {
	ID          string
	CancelledAt time.Time
}

const cancelBooking = `
UPDATE bookings
SET status = 'cancelled', cancelled_at = ?
WHERE id = ? AND status = 'confirmed'
`

// CancelBooking flips a confirmed booking to cancelled. The returned count is
// zero when the booking was already cancelled (or missing), which is the
// idempotency guard for cancel.
func (q *Queries) CancelBooking(ctx context.Context, arg CancelBookingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelBooking, arg.CancelledAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCancelledSince = `
SELECT id, requester_ref, court_id, coach_id, racket_count, shoe_count,
       start_time, end_time, status, base_price, court_price, equipment_price,
       coach_price, total_price, applied_rules, created_at, cancelled_at
FROM bookings
WHERE status = 'cancelled' AND cancelled_at >= ?
ORDER BY cancelled_at
`

func (q *Queries) ListCancelledSince(ctx context.Context, since time.Time) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx, listCancelledSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.RequesterRef, &b.CourtID, &b.CoachID, &b.RacketCount, &b.ShoeCount,
			&b.StartTime, &b.EndTime, &b.Status, &b.BasePrice, &b.CourtPrice, &b.EquipmentPrice,
			&b.CoachPrice, &b.TotalPrice, &b.AppliedRules, &b.CreatedAt, &b.CancelledAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type OverlappingWaitlistParams struct {
	CourtID   string
	StartTime time.Time
	EndTime   time.Time
}

const maxOverlappingWaitlistPosition = `
SELECT COALESCE(MAX(position), 0)
FROM waitlist_entries
WHERE court_id = ?
  AND preferred_start < ?
  AND preferred_end > ?
`

func (q *Queries) MaxOverlappingWaitlistPosition(ctx context.Context, arg OverlappingWaitlistParams) (int64, error) {
	var position int64
	err := q.db.QueryRowContext(ctx, maxOverlappingWaitlistPosition,
		arg.CourtID, arg.EndTime, arg.StartTime,
	).Scan(&position)
	return position, err
}

type CreateWaitlistEntryParams struct {
	ID             string
	RequesterRef   string
	CourtID        string
	PreferredStart time.Time
	PreferredEnd   time.Time
	RacketCount    int64
	ShoeCount      int64
	CoachID        sql.NullString
	Position       int64
	CreatedAt      time.Time
}

const createWaitlistEntry = `
INSERT INTO waitlist_entries (
    id, requester_ref, court_id, preferred_start, preferred_end,
    racket_count, shoe_count, coach_id, position, notified, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
`

func (q *Queries) CreateWaitlistEntry(ctx context.Context, arg CreateWaitlistEntryParams) (WaitlistEntry, error) {
	_, err := q.db.ExecContext(ctx, createWaitlistEntry,
		arg.ID, arg.RequesterRef, arg.CourtID, arg.PreferredStart, arg.PreferredEnd,
		arg.RacketCount, arg.ShoeCount, arg.CoachID, arg.Position, arg.CreatedAt,
	)
	if err != nil {
		return WaitlistEntry{}, err
	}
	return WaitlistEntry{
		ID:             arg.ID,
		RequesterRef:   arg.RequesterRef,
		CourtID:        arg.CourtID,
		PreferredStart: arg.PreferredStart,
		PreferredEnd:   arg.PreferredEnd,
		RacketCount:    arg.RacketCount,
		ShoeCount:      arg.ShoeCount,
		CoachID:        arg.CoachID,
		Position:       arg.Position,
		Notified:       false,
		CreatedAt:      arg.CreatedAt,
	}, nil
}

const getWaitlistEntry = `
SELECT id, requester_ref, court_id, preferred_start, preferred_end,
       racket_count, shoe_count, coach_id, position, notified, created_at
FROM waitlist_entries
WHERE id = ?
`

func (q *Queries) GetWaitlistEntry(ctx context.Context, id string) (WaitlistEntry, error) {
	var e WaitlistEntry
	err := q.db.QueryRowContext(ctx, getWaitlistEntry, id).Scan(
		&e.ID, &e.RequesterRef, &e.CourtID, &e.PreferredStart, &e.PreferredEnd,
		&e.RacketCount, &e.ShoeCount, &e.CoachID, &e.Position, &e.Notified, &e.CreatedAt,
	)
	return e, err
}

const nextWaitlistCandidate = `
SELECT id, requester_ref, court_id, preferred_start, preferred_end,
       racket_count, shoe_count, coach_id, position, notified, created_at
FROM waitlist_entries
WHERE court_id = ?
  AND notified = 0
  AND preferred_start < ?
  AND preferred_end > ?
ORDER BY position, created_at
LIMIT 1
`

func (q *Queries) NextWaitlistCandidate(ctx context.Context, arg OverlappingWaitlistParams) (WaitlistEntry, error) {
	var e WaitlistEntry
	err := q.db.QueryRowContext(ctx, nextWaitlistCandidate,
		arg.CourtID, arg.EndTime, arg.StartTime,
	).Scan(
		&e.ID, &e.RequesterRef, &e.CourtID, &e.PreferredStart, &e.PreferredEnd,
		&e.RacketCount, &e.ShoeCount, &e.CoachID, &e.Position, &e.Notified, &e.CreatedAt,
	)
	return e, err
}

type UpsertCourtParams struct {
	ID        string
	Name      string
	CourtType string
	BasePrice float64
	Active    bool
}

const upsertCourt = `
INSERT OR REPLACE INTO courts (id, name, court_type, base_price, active)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) UpsertCourt(ctx context.Context, arg UpsertCourtParams) error {
	_, err := q.db.ExecContext(ctx, upsertCourt,
		arg.ID, arg.Name, arg.CourtType, arg.BasePrice, arg.Active)
	return err
}

type UpsertEquipmentParams struct {
	EquipmentType string
	TotalStock    int64
	RentalPrice   float64
	Active        bool
}

const upsertEquipment = `
INSERT OR REPLACE INTO equipment (equipment_type, total_stock, rental_price, active)
VALUES (?, ?, ?, ?)
`

func (q *Queries) UpsertEquipment(ctx context.Context, arg UpsertEquipmentParams) error {
	_, err := q.db.ExecContext(ctx, upsertEquipment,
		arg.EquipmentType, arg.TotalStock, arg.RentalPrice, arg.Active)
	return err
}

type UpsertCoachParams struct {
	ID         string
	Name       string
	HourlyRate float64
	Active     bool
}

const upsertCoach = `
INSERT OR REPLACE INTO coaches (id, name, hourly_rate, active)
VALUES (?, ?, ?, ?)
`

func (q *Queries) UpsertCoach(ctx context.Context, arg UpsertCoachParams) error {
	_, err := q.db.ExecContext(ctx, upsertCoach,
		arg.ID, arg.Name, arg.HourlyRate, arg.Active)
	return err
}

const deleteCoachWindows = `
DELETE FROM coach_availability WHERE coach_id = ?
`

func (q *Queries) DeleteCoachWindows(ctx context.Context, coachID string) error {
	_, err := q.db.ExecContext(ctx, deleteCoachWindows, coachID)
	return err
}

type CreateCoachWindowParams struct {
	CoachID   string
	DayOfWeek int64
	StartsAt  string
	EndsAt    string
}

const createCoachWindow = `
INSERT INTO coach_availability (coach_id, day_of_week, starts_at, ends_at)
VALUES (?, ?, ?, ?)
`

func (q *Queries) CreateCoachWindow(ctx context.Context, arg CreateCoachWindowParams) error {
	_, err := q.db.ExecContext(ctx, createCoachWindow,
		arg.CoachID, arg.DayOfWeek, arg.StartsAt, arg.EndsAt)
	return err
}

type UpsertPricingRuleParams struct {
	ID            string
	Name          string
	Kind          string
	Priority      int64
	Active        bool
	WindowStart   sql.NullString
	WindowEnd     sql.NullString
	DaysOfWeek    sql.NullString
	AppliesTo     string
	HolidayDates  sql.NullString
	ModifierKind  string
	ModifierValue float64
}

const upsertPricingRule = `
INSERT OR REPLACE INTO pricing_rules (
    id, name, kind, priority, active, window_start, window_end,
    days_of_week, applies_to, holiday_dates, modifier_kind, modifier_value
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertPricingRule(ctx context.Context, arg UpsertPricingRuleParams) error {
	_, err := q.db.ExecContext(ctx, upsertPricingRule,
		arg.ID, arg.Name, arg.Kind, arg.Priority, arg.Active,
		arg.WindowStart, arg.WindowEnd, arg.DaysOfWeek,
		arg.AppliesTo, arg.HolidayDates, arg.ModifierKind, arg.ModifierValue)
	return err
}

const markWaitlistNotified = `
UPDATE waitlist_entries SET notified = 1 WHERE id = ? AND notified = 0
`

func (q *Queries) MarkWaitlistNotified(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markWaitlistNotified, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
