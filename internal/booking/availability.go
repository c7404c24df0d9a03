package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/courtkeep/courtkeep/internal/catalog"
	"github.com/courtkeep/courtkeep/internal/db"
)

// Skipped-check names reported by CheckAll.
const (
	CheckRackets = "equipment:racket"
	CheckShoes   = "equipment:shoe"
	CheckCoach   = "coach"
)

// CourtAvailable reports whether the court exists, is active, and has no
// confirmed overlapping booking. Missing or inactive courts are unavailable,
// never an error.
func CourtAvailable(ctx context.Context, q *db.Queries, court *catalog.Court, iv Interval, excludeID string) (bool, error) {
	if court == nil || !court.Active {
		return false, nil
	}
	count, err := q.CountCourtOverlaps(ctx, db.CountCourtOverlapsParams{
		CourtID:   court.ID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("count court overlaps: %w", err)
	}
	return count == 0, nil
}

// EquipmentAvailable reports whether qty units of the equipment type are free
// for the interval. A zero quantity is vacuously available; a missing or
// inactive catalog entry fails closed.
func EquipmentAvailable(ctx context.Context, q *db.Queries, equipment *catalog.Equipment, equipmentType string, qty int, iv Interval, excludeID string) (bool, error) {
	if qty == 0 {
		return true, nil
	}
	if equipment == nil || !equipment.Active {
		return false, nil
	}
	inUse, err := q.SumEquipmentInUse(ctx, db.SumEquipmentInUseParams{
		StartTime: iv.Start,
		EndTime:   iv.End,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("sum equipment in use: %w", err)
	}
	booked := inUse.Rackets
	if equipmentType == catalog.EquipmentShoe {
		booked = inUse.Shoes
	}
	return equipment.TotalStock-booked >= int64(qty), nil
}

// CoachAvailable reports whether the coach is active, has a weekly window
// fully containing the requested clock range on the same day, and has no
// overlapping confirmed booking. Cross-midnight requests never fit a window.
func CoachAvailable(ctx context.Context, q *db.Queries, coach *catalog.Coach, iv Interval, excludeID string) (bool, error) {
	if coach == nil || !coach.Active {
		return false, nil
	}
	if !iv.SameDay() {
		return false, nil
	}

	start := iv.Start.UTC()
	end := iv.End.UTC()
	day := int(start.Weekday())
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()
	if endMinutes == 0 && !end.Equal(start) {
		// An end at exactly midnight belongs to the previous day's window.
		endMinutes = 24 * 60
	}

	var inWindow bool
	for _, w := range coach.Windows {
		if w.Day != day {
			continue
		}
		windowStart, err := clockMinutes(w.StartsAt)
		if err != nil {
			continue
		}
		windowEnd, err := clockMinutes(w.EndsAt)
		if err != nil {
			continue
		}
		if startMinutes >= windowStart && endMinutes <= windowEnd {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return false, nil
	}

	count, err := q.CountCoachOverlaps(ctx, db.CountCoachOverlapsParams{
		CoachID:   coach.ID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("count coach overlaps: %w", err)
	}
	return count == 0, nil
}

// CheckAll evaluates court, rackets, shoes, then coach, short-circuiting at
// the first unavailable resource. Checks not reached are reported in Skipped.
func CheckAll(ctx context.Context, q *db.Queries, snap *catalog.Snapshot, iv Interval, sel Selection, excludeID string) (AvailabilityResult, error) {
	result := AvailabilityResult{}

	skipFrom := func(check string) []string {
		order := []string{CheckRackets, CheckShoes, CheckCoach}
		for i, name := range order {
			if name != check {
				continue
			}
			var skipped []string
			for _, later := range order[i:] {
				switch later {
				case CheckRackets:
					if sel.Rackets > 0 {
						skipped = append(skipped, later)
					}
				case CheckShoes:
					if sel.Shoes > 0 {
						skipped = append(skipped, later)
					}
				case CheckCoach:
					if sel.CoachID != "" {
						skipped = append(skipped, later)
					}
				}
			}
			return skipped
		}
		return nil
	}

	courtOK, err := CourtAvailable(ctx, q, snap.Court, iv, excludeID)
	if err != nil {
		return result, err
	}
	result.Court = courtOK
	if !courtOK {
		result.Skipped = skipFrom(CheckRackets)
		return result, nil
	}

	if sel.Rackets > 0 {
		ok, err := EquipmentAvailable(ctx, q, snap.Rackets, catalog.EquipmentRacket, sel.Rackets, iv, excludeID)
		if err != nil {
			return result, err
		}
		result.Equipment.Rackets = ok
		if !ok {
			result.Skipped = skipFrom(CheckShoes)
			return result, nil
		}
	} else {
		result.Equipment.Rackets = true
	}

	if sel.Shoes > 0 {
		ok, err := EquipmentAvailable(ctx, q, snap.Shoes, catalog.EquipmentShoe, sel.Shoes, iv, excludeID)
		if err != nil {
			return result, err
		}
		result.Equipment.Shoes = ok
		if !ok {
			result.Skipped = skipFrom(CheckCoach)
			return result, nil
		}
	} else {
		result.Equipment.Shoes = true
	}

	coachOK := true
	if sel.CoachID != "" {
		coachOK, err = CoachAvailable(ctx, q, snap.Coach, iv, excludeID)
		if err != nil {
			return result, err
		}
	}
	result.Coach = &coachOK
	if !coachOK {
		return result, nil
	}

	result.AllAvailable = true
	return result, nil
}

func clockMinutes(clock string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	return hours*60 + minutes, nil
}
