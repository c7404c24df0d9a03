package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/courtkeep/courtkeep/internal/catalog"
)

func indoorCourt(basePrice float64) *catalog.Court {
	return &catalog.Court{
		ID:        "court-1",
		Name:      "Center Court",
		Type:      catalog.CourtIndoor,
		BasePrice: basePrice,
		Active:    true,
	}
}

func interval(start string, hours float64) Interval {
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	return Interval{
		Start: t.UTC(),
		End:   t.UTC().Add(time.Duration(hours * float64(time.Hour))),
	}
}

func TestComputePrice_BaseOnly(t *testing.T) {
	snap := &catalog.Snapshot{Court: indoorCourt(10)}

	price, err := ComputePrice(snap, "court-1", interval("2026-01-06T10:00:00Z", 1.5), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}

	if price.BasePrice != 10 {
		t.Errorf("expected base price 10, got %v", price.BasePrice)
	}
	if price.CourtPrice != 15 {
		t.Errorf("expected court price 15, got %v", price.CourtPrice)
	}
	if price.Total != 15 {
		t.Errorf("expected total 15, got %v", price.Total)
	}
	if len(price.AppliedRules) != 0 {
		t.Errorf("expected no applied rules, got %d", len(price.AppliedRules))
	}
}

func TestComputePrice_RulesCompoundInOrder(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(10),
		Rules: []catalog.Rule{
			{
				Name:        "evening peak",
				Kind:        catalog.RulePeakHour,
				WindowStart: "18:00",
				WindowEnd:   "22:00",
				Modifier:    catalog.Modifier{Kind: catalog.ModifierMultiplier, Value: 1.3},
			},
			{
				Name:     "booking fee",
				Kind:     catalog.RuleCustom,
				Modifier: catalog.Modifier{Kind: catalog.ModifierFixedAdd, Value: 5},
			},
		},
	}

	// 10/hr * 1.5h = 15, * 1.3 = 19.5, + 5 = 24.5
	price, err := ComputePrice(snap, "court-1", interval("2026-01-06T19:00:00Z", 1.5), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}

	if price.CourtPrice != 24.5 {
		t.Errorf("expected court price 24.5, got %v", price.CourtPrice)
	}
	if len(price.AppliedRules) != 2 {
		t.Fatalf("expected 2 applied rules, got %d", len(price.AppliedRules))
	}
	if price.AppliedRules[0].Name != "evening peak" || price.AppliedRules[0].Amount != 4.5 {
		t.Errorf("unexpected first rule: %+v", price.AppliedRules[0])
	}
	if price.AppliedRules[1].Name != "booking fee" || price.AppliedRules[1].Amount != 5 {
		t.Errorf("unexpected second rule: %+v", price.AppliedRules[1])
	}
}

func TestComputePrice_WeekendThenIndoorPremium(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(15),
		Rackets: &catalog.Equipment{
			Type: catalog.EquipmentRacket, TotalStock: 10, RentalPrice: 5, Active: true,
		},
		Coach: &catalog.Coach{ID: "coach-1", Name: "Sam", HourlyRate: 25, Active: true},
		Rules: []catalog.Rule{
			{
				Name:     "weekend",
				Kind:     catalog.RuleWeekend,
				Modifier: catalog.Modifier{Kind: catalog.ModifierMultiplier, Value: 1.3},
			},
			{
				Name:      "indoor premium",
				Kind:      catalog.RuleIndoorPremium,
				AppliesTo: catalog.CourtIndoor,
				Modifier:  catalog.Modifier{Kind: catalog.ModifierFixedAdd, Value: 5},
			},
		},
	}

	// Saturday 18:00, 1h: 15 -> 19.5 -> 24.5
	slot := interval("2026-01-03T18:00:00Z", 1)

	price, err := ComputePrice(snap, "court-1", slot, Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 24.5 || price.Total != 24.5 {
		t.Errorf("expected court price and total 24.5, got %v / %v", price.CourtPrice, price.Total)
	}
	if price.AppliedRules[0].Amount != 4.5 || price.AppliedRules[1].Amount != 5 {
		t.Errorf("unexpected rule deltas: %+v", price.AppliedRules)
	}

	// Same slot with a racket and a coach adds 5 + 25 flat-rate hours.
	price, err = ComputePrice(snap, "court-1", slot, Selection{Rackets: 1, CoachID: "coach-1"})
	if err != nil {
		t.Fatalf("compute price with resources: %v", err)
	}
	if price.EquipmentPrice != 5 {
		t.Errorf("expected equipment price 5, got %v", price.EquipmentPrice)
	}
	if price.CoachPrice != 25 {
		t.Errorf("expected coach price 25, got %v", price.CoachPrice)
	}
	if price.Total != 54.5 {
		t.Errorf("expected total 54.5, got %v", price.Total)
	}
}

func TestComputePrice_FullBreakdown(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(20),
		Rackets: &catalog.Equipment{
			Type: catalog.EquipmentRacket, TotalStock: 10, RentalPrice: 2.5, Active: true,
		},
		Shoes: &catalog.Equipment{
			Type: catalog.EquipmentShoe, TotalStock: 10, RentalPrice: 2, Active: true,
		},
		Coach: &catalog.Coach{ID: "coach-1", Name: "Ana", HourlyRate: 25, Active: true},
		Rules: []catalog.Rule{
			{
				Name:     "weekend",
				Kind:     catalog.RuleWeekend,
				Modifier: catalog.Modifier{Kind: catalog.ModifierMultiplier, Value: 1.25},
			},
		},
	}

	// Saturday: 20*2 = 40, *1.25 = 50 court
	// equipment: 2 rackets * 2.5 * 2h + 1 shoe * 2 * 2h = 14
	// coach: 25 * 2h = 50
	sel := Selection{Rackets: 2, Shoes: 1, CoachID: "coach-1"}
	price, err := ComputePrice(snap, "court-1", interval("2026-01-03T10:00:00Z", 2), sel)
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}

	if price.CourtPrice != 50 {
		t.Errorf("expected court price 50, got %v", price.CourtPrice)
	}
	if price.EquipmentPrice != 14 {
		t.Errorf("expected equipment price 14, got %v", price.EquipmentPrice)
	}
	if price.CoachPrice != 50 {
		t.Errorf("expected coach price 50, got %v", price.CoachPrice)
	}
	if price.Total != 114 {
		t.Errorf("expected total 114, got %v", price.Total)
	}
}

func TestComputePrice_PeakWindowCrossesMidnight(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(10),
		Rules: []catalog.Rule{
			{
				Name:        "late night",
				Kind:        catalog.RulePeakHour,
				WindowStart: "22:00",
				WindowEnd:   "02:00",
				Modifier:    catalog.Modifier{Kind: catalog.ModifierMultiplier, Value: 2},
			},
		},
	}

	cases := []struct {
		start   string
		applies bool
	}{
		{"2026-01-06T23:00:00Z", true},
		{"2026-01-07T01:00:00Z", true},
		{"2026-01-06T12:00:00Z", false},
		{"2026-01-07T02:00:00Z", false},
	}
	for _, tc := range cases {
		price, err := ComputePrice(snap, "court-1", interval(tc.start, 1), Selection{})
		if err != nil {
			t.Fatalf("compute price at %s: %v", tc.start, err)
		}
		applied := len(price.AppliedRules) == 1
		if applied != tc.applies {
			t.Errorf("start %s: expected applies=%v, got %v", tc.start, tc.applies, applied)
		}
	}
}

func TestComputePrice_HolidayDates(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(10),
		Rules: []catalog.Rule{
			{
				Name:         "christmas",
				Kind:         catalog.RuleHoliday,
				HolidayDates: []string{"2026-12-25"},
				Modifier:     catalog.Modifier{Kind: catalog.ModifierFixedAdd, Value: 10},
			},
		},
	}

	price, err := ComputePrice(snap, "court-1", interval("2026-12-25T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 20 {
		t.Errorf("expected holiday price 20, got %v", price.CourtPrice)
	}

	price, err = ComputePrice(snap, "court-1", interval("2026-12-26T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 10 {
		t.Errorf("expected regular price 10, got %v", price.CourtPrice)
	}
}

func TestComputePrice_PercentageAndSubtract(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(10),
		Rules: []catalog.Rule{
			{
				Name:     "surcharge",
				Kind:     catalog.RuleCustom,
				Modifier: catalog.Modifier{Kind: catalog.ModifierPercentage, Value: 10},
			},
			{
				Name:     "member discount",
				Kind:     catalog.RuleCustom,
				Modifier: catalog.Modifier{Kind: catalog.ModifierFixedSubtract, Value: 2},
			},
		},
	}

	// 10 + 10% = 11, - 2 = 9
	price, err := ComputePrice(snap, "court-1", interval("2026-01-06T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 9 {
		t.Errorf("expected court price 9, got %v", price.CourtPrice)
	}
	if price.AppliedRules[0].Amount != 1 {
		t.Errorf("expected percentage amount 1, got %v", price.AppliedRules[0].Amount)
	}
	if price.AppliedRules[1].Amount != -2 {
		t.Errorf("expected subtract amount -2, got %v", price.AppliedRules[1].Amount)
	}
}

func TestComputePrice_IndoorPremiumScope(t *testing.T) {
	rule := catalog.Rule{
		Name:      "indoor premium",
		Kind:      catalog.RuleIndoorPremium,
		AppliesTo: catalog.CourtIndoor,
		Modifier:  catalog.Modifier{Kind: catalog.ModifierFixedAdd, Value: 3},
	}

	indoor := &catalog.Snapshot{Court: indoorCourt(10), Rules: []catalog.Rule{rule}}
	price, err := ComputePrice(indoor, "court-1", interval("2026-01-06T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 13 {
		t.Errorf("expected indoor price 13, got %v", price.CourtPrice)
	}

	outdoor := &catalog.Snapshot{
		Court: &catalog.Court{
			ID: "court-2", Name: "Back Court", Type: catalog.CourtOutdoor, BasePrice: 10, Active: true,
		},
		Rules: []catalog.Rule{rule},
	}
	price, err = ComputePrice(outdoor, "court-2", interval("2026-01-06T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.CourtPrice != 10 {
		t.Errorf("expected outdoor price 10, got %v", price.CourtPrice)
	}
}

func TestComputePrice_WeekendDefaultsToSatSun(t *testing.T) {
	snap := &catalog.Snapshot{
		Court: indoorCourt(10),
		Rules: []catalog.Rule{
			{
				Name:     "weekend",
				Kind:     catalog.RuleWeekend,
				Modifier: catalog.Modifier{Kind: catalog.ModifierMultiplier, Value: 1.5},
			},
		},
	}

	// Sunday applies, Tuesday does not
	sunday, err := ComputePrice(snap, "court-1", interval("2026-01-04T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if sunday.CourtPrice != 15 {
		t.Errorf("expected sunday price 15, got %v", sunday.CourtPrice)
	}

	tuesday, err := ComputePrice(snap, "court-1", interval("2026-01-06T10:00:00Z", 1), Selection{})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if tuesday.CourtPrice != 10 {
		t.Errorf("expected tuesday price 10, got %v", tuesday.CourtPrice)
	}
}

func TestComputePrice_UnknownEquipmentContributesZero(t *testing.T) {
	snap := &catalog.Snapshot{Court: indoorCourt(10)}

	price, err := ComputePrice(snap, "court-1", interval("2026-01-06T10:00:00Z", 1), Selection{Rackets: 2, Shoes: 1})
	if err != nil {
		t.Fatalf("compute price: %v", err)
	}
	if price.EquipmentPrice != 0 {
		t.Errorf("expected zero equipment price, got %v", price.EquipmentPrice)
	}
	if price.Total != 10 {
		t.Errorf("expected total 10, got %v", price.Total)
	}
}

func TestComputePrice_MissingCourt(t *testing.T) {
	_, err := ComputePrice(&catalog.Snapshot{}, "ghost", interval("2026-01-06T10:00:00Z", 1), Selection{})

	var notFound NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Resource != "court" || notFound.ID != "ghost" {
		t.Errorf("unexpected not found detail: %+v", notFound)
	}
}

func TestComputePrice_InactiveCourt(t *testing.T) {
	court := indoorCourt(10)
	court.Active = false

	_, err := ComputePrice(&catalog.Snapshot{Court: court}, "court-1", interval("2026-01-06T10:00:00Z", 1), Selection{})

	var notFound NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
