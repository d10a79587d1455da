// Package server exposes the booking, admin and voting-session HTTP API.
package server

import (
	"net/http"

	"github.com/Freeeeeet/launchday/internal/service"
	"go.uber.org/zap"
)

// NewRouter builds the API mux.
func NewRouter(allocator *service.AllocatorService, voting *service.VotingService, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(allocator, voting, logger)

	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return WithLogging(logger, fn)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Booking
	mux.HandleFunc("POST /launches", wrap(h.CreateLaunch))
	mux.HandleFunc("POST /launches/schedule", wrap(h.Book))

	// Admin slot management
	mux.HandleFunc("GET /admin/slots", wrap(h.ListSlots))
	mux.HandleFunc("PUT /admin/slots/{date}/capacity", wrap(h.SetCapacity))
	mux.HandleFunc("POST /admin/launches/{id}/reschedule", wrap(h.ForceReschedule))

	// Voting sessions
	mux.HandleFunc("POST /admin/sessions/{date}/open", wrap(h.OpenSession))
	mux.HandleFunc("POST /admin/sessions/{date}/close", wrap(h.CloseSession))
	mux.HandleFunc("GET /sessions/{date}", wrap(h.GetSession))
	mux.HandleFunc("POST /sessions/{date}/votes", wrap(h.RecordVote))

	return mux
}
