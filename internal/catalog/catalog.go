// Package catalog exposes the resource catalog as read-only snapshots. A
// snapshot is loaded per engine operation and never cached across calls.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/courtkeep/courtkeep/internal/db"
)

const (
	CourtIndoor  = "indoor"
	CourtOutdoor = "outdoor"

	EquipmentRacket = "racket"
	EquipmentShoe   = "shoe"
)

type Court struct {
	ID        string
	Name      string
	Type      string
	BasePrice float64
	Active    bool
}

type Equipment struct {
	Type        string
	TotalStock  int64
	RentalPrice float64
	Active      bool
}

// Window is a weekly availability window on a single day, with HH:MM clock
// bounds. Windows never cross midnight.
type Window struct {
	Day      int // 0 = Sunday ... 6 = Saturday
	StartsAt string
	EndsAt   string
}

type Coach struct {
	ID         string
	Name       string
	HourlyRate float64
	Active     bool
	Windows    []Window
}

type Modifier struct {
	Kind  string
	Value float64
}

const (
	ModifierMultiplier    = "multiplier"
	ModifierFixedAdd      = "fixed_add"
	ModifierFixedSubtract = "fixed_subtract"
	ModifierPercentage    = "percentage"
)

const (
	RulePeakHour      = "peak_hour"
	RuleWeekend       = "weekend"
	RuleIndoorPremium = "indoor_premium"
	RuleHoliday       = "holiday"
	RuleCustom        = "custom"
)

// Rule is an active pricing rule. Rules carry a persisted priority; the
// slice order returned by a snapshot is the evaluation order.
type Rule struct {
	ID           string
	Name         string
	Kind         string
	Priority     int64
	WindowStart  string
	WindowEnd    string
	DaysOfWeek   []int
	AppliesTo    string
	HolidayDates []string
	Modifier     Modifier
}

// Snapshot holds the catalog entries one operation needs. Nil pointers mean
// the referenced record does not exist; callers fail closed on them.
type Snapshot struct {
	Court   *Court
	Rackets *Equipment
	Shoes   *Equipment
	Coach   *Coach
	Rules   []Rule
}

// Load assembles a snapshot for one court and, optionally, one coach.
// Missing catalog rows load as nil rather than erroring so availability can
// fail closed and pricing can degrade per its own contract.
func Load(ctx context.Context, q *db.Queries, courtID, coachID string) (*Snapshot, error) {
	snap := &Snapshot{}

	court, err := q.GetCourt(ctx, courtID)
	switch {
	case err == nil:
		snap.Court = &Court{
			ID:        court.ID,
			Name:      court.Name,
			Type:      court.CourtType,
			BasePrice: court.BasePrice,
			Active:    court.Active,
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("load court %s: %w", courtID, err)
	}

	for _, equipmentType := range []string{EquipmentRacket, EquipmentShoe} {
		row, err := q.GetEquipment(ctx, equipmentType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("load equipment %s: %w", equipmentType, err)
		}
		entry := &Equipment{
			Type:        row.EquipmentType,
			TotalStock:  row.TotalStock,
			RentalPrice: row.RentalPrice,
			Active:      row.Active,
		}
		if equipmentType == EquipmentRacket {
			snap.Rackets = entry
		} else {
			snap.Shoes = entry
		}
	}

	if coachID != "" {
		coach, err := q.GetCoach(ctx, coachID)
		switch {
		case err == nil:
			windows, err := q.ListCoachWindows(ctx, coachID)
			if err != nil {
				return nil, fmt.Errorf("load coach windows %s: %w", coachID, err)
			}
			loaded := &Coach{
				ID:         coach.ID,
				Name:       coach.Name,
				HourlyRate: coach.HourlyRate,
				Active:     coach.Active,
			}
			for _, w := range windows {
				loaded.Windows = append(loaded.Windows, Window{
					Day:      int(w.DayOfWeek),
					StartsAt: w.StartsAt,
					EndsAt:   w.EndsAt,
				})
			}
			snap.Coach = loaded
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, fmt.Errorf("load coach %s: %w", coachID, err)
		}
	}

	rules, err := q.ListActivePricingRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing rules: %w", err)
	}
	for _, r := range rules {
		snap.Rules = append(snap.Rules, Rule{
			ID:           r.ID,
			Name:         r.Name,
			Kind:         r.Kind,
			Priority:     r.Priority,
			WindowStart:  r.WindowStart.String,
			WindowEnd:    r.WindowEnd.String,
			DaysOfWeek:   parseDayList(r.DaysOfWeek.String),
			AppliesTo:    r.AppliesTo,
			HolidayDates: parseDateList(r.HolidayDates.String),
			Modifier: Modifier{
				Kind:  r.ModifierKind,
				Value: r.ModifierValue,
			},
		})
	}

	return snap, nil
}

func parseDayList(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || day < 0 || day > 6 {
			continue
		}
		days = append(days, day)
	}
	return days
}

func parseDateList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var dates []string
	for _, part := range strings.Split(raw, ",") {
		if date := strings.TrimSpace(part); date != "" {
			dates = append(dates, date)
		}
	}
	return dates
}
