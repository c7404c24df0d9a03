package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/courtkeep/courtkeep/internal/db"
	"github.com/courtkeep/courtkeep/internal/waitlist"
)

const cascadeJobTimeout = 2 * time.Minute

// RegisterCascadeRepairJob schedules the waitlist cascade repair sweep. The
// cascade normally runs right after a cancellation commits; a crash in
// between can leave a freed slot with no notified entry. The sweep re-runs
// the cascade for recently cancelled slots that are still free, making
// notification at-least-once.
func RegisterCascadeRepairJob(database *db.DB, wl *waitlist.Manager, cronExpr string, lookback time.Duration) error {
	if database == nil {
		return fmt.Errorf("cascade repair job requires database")
	}
	if wl == nil {
		return fmt.Errorf("cascade repair job requires waitlist manager")
	}

	jobName := "waitlist_cascade_repair"
	jobLogger := log.With().
		Str("component", "waitlist_cascade_repair_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cascadeJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if err := RepairCascades(ctx, database, wl, time.Now().UTC(), lookback); err != nil {
			jobLogger.Error().Err(err).Msg("Cascade repair sweep failed")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add cascade repair job: %w", err)
	}

	jobLogger.Info().Msg("Cascade repair job registered")
	return nil
}

// RepairCascades re-runs the cancellation cascade for bookings cancelled in
// the lookback window whose slot is still free. OnCancellation selects only
// not-yet-notified entries, so repeated sweeps converge; a duplicate
// notification is possible, a missed one is not.
func RepairCascades(ctx context.Context, database *db.DB, wl *waitlist.Manager, now time.Time, lookback time.Duration) error {
	cancelled, err := database.Queries.ListCancelledSince(ctx, now.Add(-lookback))
	if err != nil {
		return fmt.Errorf("list cancelled bookings: %w", err)
	}
	if len(cancelled) == 0 {
		return nil
	}

	logger := log.Ctx(ctx)
	var repaired int
	for _, b := range cancelled {
		// Skip slots that have been re-booked in the meantime.
		overlaps, err := database.Queries.CountCourtOverlaps(ctx, db.CountCourtOverlapsParams{
			CourtID:   b.CourtID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
		})
		if err != nil {
			return fmt.Errorf("count overlaps for court %s: %w", b.CourtID, err)
		}
		if overlaps > 0 {
			continue
		}

		if err := wl.OnCancellation(ctx, b.CourtID, b.StartTime, b.EndTime); err != nil {
			logger.Error().Err(err).
				Str("booking_id", b.ID).
				Str("court_id", b.CourtID).
				Msg("Cascade repair failed for freed slot")
			continue
		}
		repaired++
	}

	logger.Debug().Int("slots_checked", len(cancelled)).Int("cascades_run", repaired).Msg("Cascade repair sweep finished")
	return nil
}
