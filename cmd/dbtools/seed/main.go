// cmd/dbtools/seed/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	appdb "github.com/courtkeep/courtkeep/internal/db"
)

// Loads a YAML catalog file into the database. Rows with matching ids are
// replaced, so the tool can be re-run after editing the catalog.
type catalogFile struct {
	Courts []struct {
		ID        string  `yaml:"id"`
		Name      string  `yaml:"name"`
		CourtType string  `yaml:"court_type"`
		BasePrice float64 `yaml:"base_price"`
		Active    *bool   `yaml:"active,omitempty"`
	} `yaml:"courts"`

	Equipment []struct {
		Type        string  `yaml:"type"`
		TotalStock  int64   `yaml:"total_stock"`
		RentalPrice float64 `yaml:"rental_price"`
		Active      *bool   `yaml:"active,omitempty"`
	} `yaml:"equipment"`

	Coaches []struct {
		ID         string  `yaml:"id"`
		Name       string  `yaml:"name"`
		HourlyRate float64 `yaml:"hourly_rate"`
		Active     *bool   `yaml:"active,omitempty"`
		Windows    []struct {
			Day      int64  `yaml:"day"`
			StartsAt string `yaml:"starts_at"`
			EndsAt   string `yaml:"ends_at"`
		} `yaml:"windows"`
	} `yaml:"coaches"`

	PricingRules []struct {
		ID           string   `yaml:"id"`
		Name         string   `yaml:"name"`
		Kind         string   `yaml:"kind"`
		Priority     int64    `yaml:"priority"`
		Active       *bool    `yaml:"active,omitempty"`
		WindowStart  string   `yaml:"window_start,omitempty"`
		WindowEnd    string   `yaml:"window_end,omitempty"`
		DaysOfWeek   []int    `yaml:"days_of_week,omitempty"`
		AppliesTo    string   `yaml:"applies_to,omitempty"`
		HolidayDates []string `yaml:"holiday_dates,omitempty"`
		ModifierKind string   `yaml:"modifier_kind"`
		Value        float64  `yaml:"value"`
	} `yaml:"pricing_rules"`
}

func main() {
	var (
		dbPath      = flag.String("db", "", "Path to SQLite database")
		catalogPath = flag.String("catalog", "", "Path to catalog YAML file")
	)
	flag.Parse()

	if *dbPath == "" || *catalogPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		log.Fatalf("Failed to read catalog file: %v", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		log.Fatalf("Failed to parse catalog file: %v", err)
	}

	database, err := appdb.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	err = database.RunInTx(ctx, func(tx *appdb.DB) error {
		for _, c := range catalog.Courts {
			if err := tx.Queries.UpsertCourt(ctx, appdb.UpsertCourtParams{
				ID:        c.ID,
				Name:      c.Name,
				CourtType: c.CourtType,
				BasePrice: c.BasePrice,
				Active:    activeFlag(c.Active),
			}); err != nil {
				return err
			}
		}

		for _, e := range catalog.Equipment {
			if err := tx.Queries.UpsertEquipment(ctx, appdb.UpsertEquipmentParams{
				EquipmentType: e.Type,
				TotalStock:    e.TotalStock,
				RentalPrice:   e.RentalPrice,
				Active:        activeFlag(e.Active),
			}); err != nil {
				return err
			}
		}

		for _, coach := range catalog.Coaches {
			if err := tx.Queries.UpsertCoach(ctx, appdb.UpsertCoachParams{
				ID:         coach.ID,
				Name:       coach.Name,
				HourlyRate: coach.HourlyRate,
				Active:     activeFlag(coach.Active),
			}); err != nil {
				return err
			}
			if err := tx.Queries.DeleteCoachWindows(ctx, coach.ID); err != nil {
				return err
			}
			for _, w := range coach.Windows {
				if err := tx.Queries.CreateCoachWindow(ctx, appdb.CreateCoachWindowParams{
					CoachID:   coach.ID,
					DayOfWeek: w.Day,
					StartsAt:  w.StartsAt,
					EndsAt:    w.EndsAt,
				}); err != nil {
					return err
				}
			}
		}

		for _, rule := range catalog.PricingRules {
			if err := tx.Queries.UpsertPricingRule(ctx, appdb.UpsertPricingRuleParams{
				ID:            rule.ID,
				Name:          rule.Name,
				Kind:          rule.Kind,
				Priority:      rule.Priority,
				Active:        activeFlag(rule.Active),
				WindowStart:   nullable(rule.WindowStart),
				WindowEnd:     nullable(rule.WindowEnd),
				DaysOfWeek:    nullable(joinInts(rule.DaysOfWeek)),
				AppliesTo:     appliesTo(rule.AppliesTo),
				HolidayDates:  nullable(strings.Join(rule.HolidayDates, ",")),
				ModifierKind:  rule.ModifierKind,
				ModifierValue: rule.Value,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	log.Printf("Seeded %d courts, %d equipment types, %d coaches, %d pricing rules",
		len(catalog.Courts), len(catalog.Equipment), len(catalog.Coaches), len(catalog.PricingRules))
}

func appliesTo(scope string) string {
	if scope == "" {
		return "all"
	}
	return scope
}

func activeFlag(active *bool) bool {
	return active == nil || *active
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
