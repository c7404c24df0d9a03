// Package booking is the resource-allocation engine: availability checks,
// price composition, and the reserve/cancel transaction manager.
package booking

import (
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Interval is a half-open UTC time range [Start, End).
type Interval struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Validate rejects zero or inverted intervals before any resource is touched.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() {
		return ValidationError{Field: "startTime", Reason: "is required"}
	}
	if iv.End.IsZero() {
		return ValidationError{Field: "endTime", Reason: "is required"}
	}
	if !iv.End.After(iv.Start) {
		return ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	return nil
}

// Hours is the real-valued duration of the interval; fractions are allowed.
func (iv Interval) Hours() float64 {
	return iv.End.Sub(iv.Start).Hours()
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals do not conflict.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// SameDay reports whether the interval starts and ends on one UTC calendar
// day. Coach availability windows are single-day, so coach bookings require
// this.
func (iv Interval) SameDay() bool {
	start := iv.Start.UTC()
	end := iv.End.UTC()
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Selection is the set of resources requested alongside a court.
type Selection struct {
	Rackets int    `json:"rackets"`
	Shoes   int    `json:"shoes"`
	CoachID string `json:"coachId,omitempty"`
}

func (s Selection) Validate() error {
	if s.Rackets < 0 {
		return ValidationError{Field: "rackets", Reason: "must be 0 or greater"}
	}
	if s.Shoes < 0 {
		return ValidationError{Field: "shoes", Reason: "must be 0 or greater"}
	}
	return nil
}

// EquipmentAvailability mirrors the composite result's equipment block.
type EquipmentAvailability struct {
	Rackets bool `json:"rackets"`
	Shoes   bool `json:"shoes"`
}

// AvailabilityResult is the composite outcome of checkAll. Checks short-
// circuit at the first unavailable resource; anything not reached is false
// (coach: null) and listed in Skipped so callers can tell a failed check
// from one that never ran.
type AvailabilityResult struct {
	Court        bool                  `json:"court"`
	Equipment    EquipmentAvailability `json:"equipment"`
	Coach        *bool                 `json:"coach"`
	AllAvailable bool                  `json:"allAvailable"`
	Skipped      []string              `json:"skipped,omitempty"`
}

// ReserveRequest is the input to reserve, checkAvailability, and quote.
type ReserveRequest struct {
	Requester string    `json:"requester"`
	CourtID   string    `json:"courtId"`
	Interval  Interval  `json:"interval"`
	Selection Selection `json:"resources"`
}

func (r ReserveRequest) Validate() error {
	if r.Requester == "" {
		return ValidationError{Field: "requester", Reason: "is required"}
	}
	return r.validateResources()
}

// Booking is a confirmed or cancelled allocation. Bookings are never deleted;
// cancellation is the only mutation and is one-way.
type Booking struct {
	ID          string         `json:"id"`
	Requester   string         `json:"requester"`
	CourtID     string         `json:"courtId"`
	Interval    Interval       `json:"interval"`
	Selection   Selection      `json:"resources"`
	Status      string         `json:"status"`
	Price       PriceBreakdown `json:"pricingBreakdown"`
	CreatedAt   time.Time      `json:"createdAt"`
	CancelledAt *time.Time     `json:"cancelledAt,omitempty"`
}
