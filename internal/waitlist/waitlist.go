// Package waitlist queues deferred booking requests per court and runs the
// cancellation cascade: when a slot frees up, the earliest-position entry
// whose preferred interval overlaps gets notified, exactly one per cascade.
package waitlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	appdb "github.com/courtkeep/courtkeep/internal/db"
	"github.com/courtkeep/courtkeep/internal/notify"
)

// Resources mirrors the booking resource selection for a deferred request.
type Resources struct {
	Rackets int    `json:"rackets"`
	Shoes   int    `json:"shoes"`
	CoachID string `json:"coachId,omitempty"`
}

// Entry is a waitlist entry. Positions are scoped to the group of entries
// whose preferred intervals overlap; they are not globally monotonic.
type Entry struct {
	ID             string    `json:"id"`
	Requester      string    `json:"requester"`
	CourtID        string    `json:"courtId"`
	PreferredStart time.Time `json:"preferredStart"`
	PreferredEnd   time.Time `json:"preferredEnd"`
	Resources      Resources `json:"resources"`
	Position       int64     `json:"position"`
	Notified       bool      `json:"notified"`
	CreatedAt      time.Time `json:"createdAt"`
}

type JoinRequest struct {
	Requester string
	CourtID   string
	Start     time.Time
	End       time.Time
	Resources Resources
}

type Manager struct {
	store    *appdb.DB
	notifier notify.Notifier
}

func NewManager(store *appdb.DB, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Manager{store: store, notifier: notifier}
}

// Join appends the requester to the waitlist group for the court and
// interval: position is 1 + the highest position among entries whose
// preferred interval overlaps, computed and inserted in one transaction so
// concurrent joins for the same slot cannot collide.
func (m *Manager) Join(ctx context.Context, req JoinRequest) (Entry, error) {
	var created appdb.WaitlistEntry
	err := m.store.RunInTx(ctx, func(txDB *appdb.DB) error {
		maxPosition, err := txDB.Queries.MaxOverlappingWaitlistPosition(ctx, appdb.OverlappingWaitlistParams{
			CourtID:   req.CourtID,
			StartTime: req.Start,
			EndTime:   req.End,
		})
		if err != nil {
			return fmt.Errorf("max waitlist position: %w", err)
		}

		coachID := sql.NullString{}
		if req.Resources.CoachID != "" {
			coachID = sql.NullString{String: req.Resources.CoachID, Valid: true}
		}

		created, err = txDB.Queries.CreateWaitlistEntry(ctx, appdb.CreateWaitlistEntryParams{
			ID:             uuid.New().String(),
			RequesterRef:   req.Requester,
			CourtID:        req.CourtID,
			PreferredStart: req.Start.UTC(),
			PreferredEnd:   req.End.UTC(),
			RacketCount:    int64(req.Resources.Rackets),
			ShoeCount:      int64(req.Resources.Shoes),
			CoachID:        coachID,
			Position:       maxPosition + 1,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create waitlist entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	log.Ctx(ctx).Info().
		Str("waitlist_id", created.ID).
		Str("court_id", created.CourtID).
		Int64("position", created.Position).
		Msg("Joined waitlist")
	return fromRow(created), nil
}

// OnCancellation selects the smallest-position entry for the court that has
// not been notified and whose preferred interval overlaps the freed slot,
// flips its notified flag, and hands it to the notifier. The flag flip
// commits before delivery, so a failed delivery may be repeated by the
// repair sweep but booking state is never corrupted.
func (m *Manager) OnCancellation(ctx context.Context, courtID string, freedStart, freedEnd time.Time) error {
	var candidate appdb.WaitlistEntry
	var courtName string
	found := false

	err := m.store.RunInTx(ctx, func(txDB *appdb.DB) error {
		entry, err := txDB.Queries.NextWaitlistCandidate(ctx, appdb.OverlappingWaitlistParams{
			CourtID:   courtID,
			StartTime: freedStart,
			EndTime:   freedEnd,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("next waitlist candidate: %w", err)
		}

		affected, err := txDB.Queries.MarkWaitlistNotified(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("mark waitlist notified: %w", err)
		}
		if affected == 0 {
			// Raced with another cascade for the same court; nothing to do.
			return nil
		}

		if court, err := txDB.Queries.GetCourt(ctx, courtID); err == nil {
			courtName = court.Name
		}

		candidate = entry
		found = true
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Str("waitlist_id", candidate.ID).
		Str("court_id", courtID).
		Int64("position", candidate.Position).
		Msg("Waitlist entry notified for freed slot")

	notice := notify.SlotFreedNotice{
		EntryID:   candidate.ID,
		Requester: candidate.RequesterRef,
		CourtID:   courtID,
		CourtName: courtName,
		Start:     freedStart,
		End:       freedEnd,
		Position:  candidate.Position,
	}
	if err := m.notifier.NotifySlotFreed(ctx, notice); err != nil {
		// The notified flag is already committed; delivery stays best-effort.
		logger.Error().Err(err).Str("waitlist_id", candidate.ID).Msg("Failed to deliver waitlist notification")
	}
	return nil
}

func fromRow(row appdb.WaitlistEntry) Entry {
	return Entry{
		ID:             row.ID,
		Requester:      row.RequesterRef,
		CourtID:        row.CourtID,
		PreferredStart: row.PreferredStart,
		PreferredEnd:   row.PreferredEnd,
		Resources: Resources{
			Rackets: int(row.RacketCount),
			Shoes:   int(row.ShoeCount),
			CoachID: row.CoachID.String,
		},
		Position:  row.Position,
		Notified:  row.Notified,
		CreatedAt: row.CreatedAt,
	}
}
