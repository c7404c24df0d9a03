package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/courtkeep/courtkeep/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedCourt inserts an active court and returns its id.
func SeedCourt(t *testing.T, database *db.DB, id, name, courtType string, basePrice float64) string {
	t.Helper()

	_, err := database.ExecContext(context.Background(),
		`INSERT INTO courts (id, name, court_type, base_price, active) VALUES (?, ?, ?, ?, 1)`,
		id, name, courtType, basePrice,
	)
	if err != nil {
		t.Fatalf("seed court %s: %v", id, err)
	}
	return id
}

// SeedEquipment inserts or replaces an equipment stock row.
func SeedEquipment(t *testing.T, database *db.DB, equipmentType string, totalStock int, rentalPrice float64) {
	t.Helper()

	_, err := database.ExecContext(context.Background(),
		`INSERT OR REPLACE INTO equipment (equipment_type, total_stock, rental_price, active) VALUES (?, ?, ?, 1)`,
		equipmentType, totalStock, rentalPrice,
	)
	if err != nil {
		t.Fatalf("seed equipment %s: %v", equipmentType, err)
	}
}

// SeedCoach inserts an active coach plus weekly availability windows.
// Windows are "day|HH:MM|HH:MM" strings, day 0 = Sunday.
func SeedCoach(t *testing.T, database *db.DB, id, name string, hourlyRate float64, windows ...string) string {
	t.Helper()

	ctx := context.Background()
	_, err := database.ExecContext(ctx,
		`INSERT INTO coaches (id, name, hourly_rate, active) VALUES (?, ?, ?, 1)`,
		id, name, hourlyRate,
	)
	if err != nil {
		t.Fatalf("seed coach %s: %v", id, err)
	}

	for _, window := range windows {
		parts := strings.Split(window, "|")
		if len(parts) != 3 {
			t.Fatalf("seed coach %s: malformed window %q", id, window)
		}
		_, err := database.ExecContext(ctx,
			`INSERT INTO coach_availability (coach_id, day_of_week, starts_at, ends_at) VALUES (?, ?, ?, ?)`,
			id, parts[0], parts[1], parts[2],
		)
		if err != nil {
			t.Fatalf("seed coach window %q: %v", window, err)
		}
	}
	return id
}

// RuleParams describes a pricing rule row for SeedRule. Zero values are
// written as NULL for the optional columns.
type RuleParams struct {
	ID           string
	Name         string
	Kind         string
	Priority     int
	WindowStart  string
	WindowEnd    string
	DaysOfWeek   string
	AppliesTo    string
	HolidayDates string
	ModifierKind string
	Value        float64
}

// SeedRule inserts an active pricing rule.
func SeedRule(t *testing.T, database *db.DB, p RuleParams) string {
	t.Helper()

	_, err := database.ExecContext(context.Background(),
		`INSERT INTO pricing_rules
			(id, name, kind, priority, active, window_start, window_end, days_of_week, applies_to, holiday_dates, modifier_kind, modifier_value)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Kind, p.Priority,
		nullable(p.WindowStart), nullable(p.WindowEnd), nullable(p.DaysOfWeek),
		appliesTo(p.AppliesTo), nullable(p.HolidayDates),
		p.ModifierKind, p.Value,
	)
	if err != nil {
		t.Fatalf("seed rule %s: %v", p.ID, err)
	}
	return p.ID
}

// MustTime parses an RFC3339 timestamp and normalizes it to UTC.
func MustTime(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed.UTC()
}

func appliesTo(scope string) string {
	if scope == "" {
		return "all"
	}
	return scope
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
