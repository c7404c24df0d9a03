// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/courtkeep/courtkeep/internal/api"
	"github.com/courtkeep/courtkeep/internal/api/bookings"
	"github.com/courtkeep/courtkeep/internal/config"
	"github.com/courtkeep/courtkeep/internal/ratelimit"
)

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	limiter := ratelimit.New(&ratelimit.Config{
		WriteMaxPerMinute: cfg.RateLimit.WriteMaxPerMinute,
		WriteMaxPerHour:   cfg.RateLimit.WriteMaxPerHour,
	})

	handler := api.ChainMiddleware(
		router,
		api.WithRateLimit(limiter, cfg.RateLimit.TrustProxy),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	registerRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/v1/availability", bookings.HandleCheckAvailability)
	mux.HandleFunc("POST /api/v1/quote", bookings.HandleQuote)
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleReserve)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", bookings.HandleCancel)
	mux.HandleFunc("POST /api/v1/waitlist", bookings.HandleWaitlistJoin)
}
