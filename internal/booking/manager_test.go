package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appdb "github.com/courtkeep/courtkeep/internal/db"
	"github.com/courtkeep/courtkeep/internal/locks"
	"github.com/courtkeep/courtkeep/internal/notify"
	"github.com/courtkeep/courtkeep/internal/testutil"
	"github.com/courtkeep/courtkeep/internal/waitlist"
)

type recordingNotifier struct {
	mu        sync.Mutex
	notices   []notify.SlotFreedNotice
	confirmed []notify.BookingNotice
	cancelled []notify.BookingNotice
}

func (n *recordingNotifier) NotifySlotFreed(ctx context.Context, notice notify.SlotFreedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) NotifyBookingConfirmed(ctx context.Context, notice notify.BookingNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, notice)
	return nil
}

func (n *recordingNotifier) NotifyBookingCancelled(ctx context.Context, notice notify.BookingNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, notice)
	return nil
}

func (n *recordingNotifier) Notices() []notify.SlotFreedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.SlotFreedNotice(nil), n.notices...)
}

func (n *recordingNotifier) BookingNotices() (confirmed, cancelled []notify.BookingNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.BookingNotice(nil), n.confirmed...), append([]notify.BookingNotice(nil), n.cancelled...)
}

func newTestManager(t *testing.T) (*Manager, *appdb.DB, *recordingNotifier) {
	t.Helper()

	database := testutil.NewTestDB(t)
	notifier := &recordingNotifier{}
	wl := waitlist.NewManager(database, notifier)
	manager := NewManager(database, locks.NewManager(), wl, time.Second).WithNotifier(notifier)
	return manager, database, notifier
}

func seedStandardCatalog(t *testing.T, database *appdb.DB) {
	t.Helper()

	testutil.SeedCourt(t, database, "court-1", "Center Court", "indoor", 10)
	testutil.SeedEquipment(t, database, "racket", 4, 2.5)
	testutil.SeedEquipment(t, database, "shoe", 6, 2)
	// 2026-01-06 is a Tuesday
	testutil.SeedCoach(t, database, "coach-1", "Ana", 25, "2|09:00|17:00")
}

func standardRequest() ReserveRequest {
	return ReserveRequest{
		Requester: "player@example.com",
		CourtID:   "court-1",
		Interval:  interval("2026-01-06T10:00:00Z", 1.5),
		Selection: Selection{Rackets: 1, CoachID: "coach-1"},
	}
}

func TestReserve_PersistsBookingWithPrice(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)
	testutil.SeedRule(t, database, testutil.RuleParams{
		ID: "rule-peak", Name: "morning peak", Kind: "peak_hour", Priority: 1,
		WindowStart: "09:00", WindowEnd: "12:00",
		ModifierKind: "multiplier", Value: 1.2,
	})

	booked, err := manager.Reserve(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if booked.ID == "" {
		t.Error("expected booking id to be set")
	}
	if booked.Status != StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", booked.Status)
	}
	// Court: 10 * 1.5 = 15, * 1.2 = 18. Racket: 2.5 * 1.5 = 3.75. Coach: 25 * 1.5 = 37.5.
	if booked.Price.CourtPrice != 18 {
		t.Errorf("expected court price 18, got %v", booked.Price.CourtPrice)
	}
	if booked.Price.Total != 59.25 {
		t.Errorf("expected total 59.25, got %v", booked.Price.Total)
	}
	if len(booked.Price.AppliedRules) != 1 || booked.Price.AppliedRules[0].Name != "morning peak" {
		t.Errorf("unexpected applied rules: %+v", booked.Price.AppliedRules)
	}

	// Round trip through storage, applied rules included.
	loaded, err := manager.Get(context.Background(), booked.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if loaded.Price.Total != booked.Price.Total {
		t.Errorf("expected persisted total %v, got %v", booked.Price.Total, loaded.Price.Total)
	}
	if len(loaded.Price.AppliedRules) != 1 {
		t.Errorf("expected applied rules to survive storage, got %+v", loaded.Price.AppliedRules)
	}
}

func TestReserve_QuoteMatchesReserve(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	req := standardRequest()
	quote, err := manager.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	booked, err := manager.Reserve(context.Background(), req)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if booked.Price.Total != quote.Total {
		t.Errorf("expected reserve total %v to match quote %v", booked.Price.Total, quote.Total)
	}
}

func TestReserve_ConflictCarriesAvailability(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	if _, err := manager.Reserve(context.Background(), standardRequest()); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	_, err := manager.Reserve(context.Background(), standardRequest())
	var conflict ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Availability == nil {
		t.Fatal("expected conflict to carry the availability result")
	}
	if conflict.Availability.AllAvailable {
		t.Error("expected allAvailable false in conflict")
	}
	if conflict.Availability.Court {
		t.Error("expected court false in conflict")
	}
}

func TestReserve_ExactlyOneWinnerUnderContention(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Reserve(context.Background(), standardRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, conflicted int
	for err := range results {
		switch {
		case err == nil:
			won++
		default:
			var conflict ConflictError
			if !errors.As(err, &conflict) {
				t.Errorf("expected ConflictError for loser, got %v", err)
				continue
			}
			conflicted++
		}
	}

	if won != 1 {
		t.Errorf("expected exactly 1 winner, got %d", won)
	}
	if conflicted != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicted)
	}
}

func TestReserve_ValidationErrors(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	cases := []struct {
		name  string
		edit  func(*ReserveRequest)
		field string
	}{
		{"missing requester", func(r *ReserveRequest) { r.Requester = "" }, "requester"},
		{"missing court", func(r *ReserveRequest) { r.CourtID = "" }, "courtId"},
		{"inverted interval", func(r *ReserveRequest) {
			r.Interval.Start, r.Interval.End = r.Interval.End, r.Interval.Start
		}, "endTime"},
		{"negative rackets", func(r *ReserveRequest) { r.Selection.Rackets = -1 }, "rackets"},
		{"cross midnight coach", func(r *ReserveRequest) {
			r.Interval = interval("2026-01-06T23:00:00Z", 2)
		}, "interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := standardRequest()
			tc.edit(&req)

			_, err := manager.Reserve(context.Background(), req)
			var validation ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, validation.Field)
			}
		})
	}
}

func TestCancel_RunsCascadeOnce(t *testing.T) {
	manager, database, notifier := newTestManager(t)
	seedStandardCatalog(t, database)

	booked, err := manager.Reserve(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// A waiting requester for the same slot
	entry, err := manager.JoinWaitlist(context.Background(), ReserveRequest{
		Requester: "waiting@example.com",
		CourtID:   "court-1",
		Interval:  interval("2026-01-06T10:00:00Z", 1.5),
	})
	if err != nil {
		t.Fatalf("join waitlist: %v", err)
	}

	cancelled, err := manager.Cancel(context.Background(), booked.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected cancelledAt to be set")
	}

	notices := notifier.Notices()
	if len(notices) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notices))
	}
	if notices[0].EntryID != entry.ID || notices[0].Requester != "waiting@example.com" {
		t.Errorf("unexpected notice: %+v", notices[0])
	}

	// Cancelling again is a conflict and must not re-run the cascade.
	_, err = manager.Cancel(context.Background(), booked.ID)
	var conflict ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError on repeat cancel, got %v", err)
	}
	if got := len(notifier.Notices()); got != 1 {
		t.Errorf("expected cascade to run once, got %d notifications", got)
	}
}

func TestLifecycleNotices(t *testing.T) {
	manager, database, notifier := newTestManager(t)
	seedStandardCatalog(t, database)

	booked, err := manager.Reserve(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := manager.Cancel(context.Background(), booked.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	confirmed, cancelled := notifier.BookingNotices()
	if len(confirmed) != 1 {
		t.Fatalf("expected 1 confirmation notice, got %d", len(confirmed))
	}
	if confirmed[0].BookingID != booked.ID || confirmed[0].CourtName != "Center Court" {
		t.Errorf("unexpected confirmation notice: %+v", confirmed[0])
	}
	if confirmed[0].Total != booked.Price.Total {
		t.Errorf("expected notice total %v, got %v", booked.Price.Total, confirmed[0].Total)
	}
	if len(cancelled) != 1 || cancelled[0].BookingID != booked.ID {
		t.Errorf("unexpected cancellation notices: %+v", cancelled)
	}
}

func TestCancel_UnknownBooking(t *testing.T) {
	manager, _, _ := newTestManager(t)

	_, err := manager.Cancel(context.Background(), "ghost")
	var notFound NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCancel_FreesSlotForRebooking(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	booked, err := manager.Reserve(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := manager.Cancel(context.Background(), booked.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rebooked, err := manager.Reserve(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("expected rebooking after cancel to succeed: %v", err)
	}
	if rebooked.ID == booked.ID {
		t.Error("expected a fresh booking id")
	}
}

func TestCheckAvailability_DoesNotPersist(t *testing.T) {
	manager, database, _ := newTestManager(t)
	seedStandardCatalog(t, database)

	result, err := manager.CheckAvailability(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if !result.AllAvailable {
		t.Fatalf("expected availability, got %+v", result)
	}

	// The check must not hold the slot.
	again, err := manager.CheckAvailability(context.Background(), standardRequest())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !again.AllAvailable {
		t.Error("expected the slot to remain available after a check")
	}
}
