// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtkeep/courtkeep/internal/api/apiutil"
	"github.com/courtkeep/courtkeep/internal/booking"
)

var (
	engine     *booking.Manager
	engineOnce sync.Once
)

const (
	bookingQueryTimeout = 10 * time.Second

	dateTimeLocalLayout = "2006-01-02T15:04"
	dateTimeLayout      = "2006-01-02 15:04"
)

type bookingRequest struct {
	Requester string `json:"requester,omitempty"`
	CourtID   string `json:"courtId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Rackets   int    `json:"rackets,omitempty"`
	Shoes     int    `json:"shoes,omitempty"`
	CoachID   string `json:"coachId,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(manager *booking.Manager) {
	if manager == nil {
		log.Warn().Msg("bookings.InitHandlers called with nil manager")
		return
	}
	engineOnce.Do(func() {
		engine = manager
	})
}

func loadEngine() *booking.Manager {
	return engine
}

// POST /api/v1/availability
func HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	m := loadEngine()
	if m == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeBookingRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	result, err := m.CheckAvailability(ctx, req)
	if err != nil {
		respondEngineError(w, r, err, "Failed to check availability")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, result); err != nil {
		logger.Error().Err(err).Msg("Failed to write availability response")
	}
}

// POST /api/v1/quote
func HandleQuote(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	m := loadEngine()
	if m == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeBookingRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	breakdown, err := m.Quote(ctx, req)
	if err != nil {
		respondEngineError(w, r, err, "Failed to compute quote")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, breakdown); err != nil {
		logger.Error().Err(err).Msg("Failed to write quote response")
	}
}

// POST /api/v1/bookings
func HandleReserve(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	m := loadEngine()
	if m == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeBookingRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	booked, err := m.Reserve(ctx, req)
	if err != nil {
		respondEngineError(w, r, err, "Failed to create booking")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, booked); err != nil {
		logger.Error().Err(err).Str("booking_id", booked.ID).Msg("Failed to write booking response")
	}
}

// DELETE /api/v1/bookings/{id}
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	m := loadEngine()
	if m == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	bookingID := strings.TrimSpace(r.PathValue("id"))
	if bookingID == "" {
		writeRequestError(w, apiutil.FieldError{Field: "id", Reason: "is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	cancelled, err := m.Cancel(ctx, bookingID)
	if err != nil {
		respondEngineError(w, r, err, "Failed to cancel booking")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, cancelled); err != nil {
		logger.Error().Err(err).Str("booking_id", cancelled.ID).Msg("Failed to write cancel response")
	}
}

// POST /api/v1/waitlist
func HandleWaitlistJoin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	m := loadEngine()
	if m == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeBookingRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	entry, err := m.JoinWaitlist(ctx, req)
	if err != nil {
		respondEngineError(w, r, err, "Failed to join waitlist")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, entry); err != nil {
		logger.Error().Err(err).Str("waitlist_id", entry.ID).Msg("Failed to write waitlist response")
	}
}

func decodeBookingRequest(r *http.Request) (booking.ReserveRequest, error) {
	var raw bookingRequest
	if err := apiutil.DecodeJSON(r, &raw); err != nil {
		return booking.ReserveRequest{}, err
	}

	startTime, err := parseBookingTime(raw.StartTime, "startTime")
	if err != nil {
		return booking.ReserveRequest{}, err
	}
	endTime, err := parseBookingTime(raw.EndTime, "endTime")
	if err != nil {
		return booking.ReserveRequest{}, err
	}

	return booking.ReserveRequest{
		Requester: strings.TrimSpace(raw.Requester),
		CourtID:   strings.TrimSpace(raw.CourtID),
		Interval: booking.Interval{
			Start: startTime,
			End:   endTime,
		},
		Selection: booking.Selection{
			Rackets: raw.Rackets,
			Shoes:   raw.Shoes,
			CoachID: strings.TrimSpace(raw.CoachID),
		},
	}, nil
}

func parseBookingTime(value, field string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apiutil.FieldError{Field: field, Reason: "is required"}
	}

	layouts := []string{time.RFC3339, dateTimeLocalLayout, dateTimeLayout}
	for _, layout := range layouts {
		if layout == time.RFC3339 {
			parsed, err := time.Parse(layout, value)
			if err == nil {
				return parsed.UTC(), nil
			}
			continue
		}
		parsed, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, apiutil.FieldError{Field: field, Reason: "must be a valid datetime"}
}

func writeRequestError(w http.ResponseWriter, err error) {
	var fieldErr apiutil.FieldError
	if errors.As(err, &fieldErr) {
		apiutil.WriteError(w, http.StatusBadRequest, fieldErr.Error(), nil)
		return
	}
	apiutil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), nil)
}

// respondEngineError maps the engine error taxonomy onto HTTP statuses.
// Conflicts carry the granular availability result so the caller can offer
// a waitlist join without a second round trip.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := log.Ctx(r.Context())

	var validation booking.ValidationError
	var notFound booking.NotFoundError
	var conflict booking.ConflictError
	var transient booking.TransientError

	switch {
	case errors.As(err, &validation):
		apiutil.WriteError(w, http.StatusBadRequest, validation.Error(), nil)
	case errors.As(err, &notFound):
		apiutil.WriteError(w, http.StatusNotFound, notFound.Error(), nil)
	case errors.As(err, &conflict):
		var extra map[string]any
		if conflict.Availability != nil {
			extra = map[string]any{"availability": conflict.Availability}
		}
		apiutil.WriteError(w, http.StatusConflict, conflict.Error(), extra)
	case errors.As(err, &transient):
		logger.Error().Err(err).Msg(fallback)
		apiutil.WriteError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry", nil)
	default:
		logger.Error().Err(err).Msg(fallback)
		apiutil.WriteError(w, http.StatusInternalServerError, fallback, nil)
	}
}
