package booking

import (
	"math"
	"time"

	"github.com/courtkeep/courtkeep/internal/catalog"
)

// AppliedRule records one matched pricing rule and the amount it contributed
// to the running court price.
type AppliedRule struct {
	Name     string  `json:"name"`
	Modifier string  `json:"modifierKind"`
	Value    float64 `json:"value"`
	Amount   float64 `json:"amount"`
}

// PriceBreakdown is the result of the price calculator. BasePrice is the
// court's raw hourly rate; everything else is rounded to cents at assembly
// time, never earlier.
type PriceBreakdown struct {
	BasePrice      float64       `json:"basePrice"`
	CourtPrice     float64       `json:"courtPrice"`
	EquipmentPrice float64       `json:"equipmentPrice"`
	CoachPrice     float64       `json:"coachPrice"`
	AppliedRules   []AppliedRule `json:"appliedRules"`
	Total          float64       `json:"total"`
}

// ComputePrice is a pure function of the catalog snapshot, the interval, and
// the selection. Rules apply in snapshot order (persisted priority), each
// compounding on the running court price. Equipment and coach cost flat
// hourly rates and are untouched by rules. A missing or inactive court is a
// NotFoundError; a requested equipment type with no active catalog entry
// contributes zero.
func ComputePrice(snap *catalog.Snapshot, courtID string, iv Interval, sel Selection) (PriceBreakdown, error) {
	if snap.Court == nil || !snap.Court.Active {
		return PriceBreakdown{}, NotFoundError{Resource: "court", ID: courtID}
	}

	hours := iv.Hours()
	runningPrice := snap.Court.BasePrice * hours

	appliedRules := []AppliedRule{}
	for _, rule := range snap.Rules {
		if !ruleApplies(rule, snap.Court, iv.Start.UTC()) {
			continue
		}

		var amount float64
		switch rule.Modifier.Kind {
		case catalog.ModifierMultiplier:
			// Only the additional amount
			amount = runningPrice * (rule.Modifier.Value - 1)
			runningPrice *= rule.Modifier.Value
		case catalog.ModifierFixedAdd:
			amount = rule.Modifier.Value
			runningPrice += rule.Modifier.Value
		case catalog.ModifierFixedSubtract:
			amount = -rule.Modifier.Value
			runningPrice -= rule.Modifier.Value
		case catalog.ModifierPercentage:
			amount = runningPrice * rule.Modifier.Value / 100
			runningPrice += amount
		default:
			continue
		}

		appliedRules = append(appliedRules, AppliedRule{
			Name:     rule.Name,
			Modifier: rule.Modifier.Kind,
			Value:    rule.Modifier.Value,
			Amount:   round2(amount),
		})
	}

	var equipmentPrice float64
	if sel.Rackets > 0 && snap.Rackets != nil && snap.Rackets.Active {
		equipmentPrice += snap.Rackets.RentalPrice * float64(sel.Rackets) * hours
	}
	if sel.Shoes > 0 && snap.Shoes != nil && snap.Shoes.Active {
		equipmentPrice += snap.Shoes.RentalPrice * float64(sel.Shoes) * hours
	}

	var coachPrice float64
	if sel.CoachID != "" && snap.Coach != nil {
		coachPrice = snap.Coach.HourlyRate * hours
	}

	total := runningPrice + equipmentPrice + coachPrice

	return PriceBreakdown{
		BasePrice:      snap.Court.BasePrice,
		CourtPrice:     round2(runningPrice),
		EquipmentPrice: round2(equipmentPrice),
		CoachPrice:     round2(coachPrice),
		AppliedRules:   appliedRules,
		Total:          round2(total),
	}, nil
}

func ruleApplies(rule catalog.Rule, court *catalog.Court, start time.Time) bool {
	switch rule.Kind {
	case catalog.RulePeakHour:
		windowStart, err := clockMinutes(rule.WindowStart)
		if err != nil {
			return false
		}
		windowEnd, err := clockMinutes(rule.WindowEnd)
		if err != nil {
			return false
		}
		current := start.Hour()*60 + start.Minute()
		if windowStart < windowEnd {
			return current >= windowStart && current < windowEnd
		}
		// Window crosses midnight
		return current >= windowStart || current < windowEnd

	case catalog.RuleWeekend:
		day := int(start.Weekday())
		if len(rule.DaysOfWeek) == 0 {
			return day == 0 || day == 6
		}
		for _, configured := range rule.DaysOfWeek {
			if configured == day {
				return true
			}
		}
		return false

	case catalog.RuleIndoorPremium:
		return rule.AppliesTo == "all" || rule.AppliesTo == court.Type

	case catalog.RuleHoliday:
		date := start.Format("2006-01-02")
		for _, holiday := range rule.HolidayDates {
			if holiday == date {
				return true
			}
		}
		return false

	case catalog.RuleCustom:
		return true
	}
	return false
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
