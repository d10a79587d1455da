package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/Freeeeeet/launchday/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handlers struct {
	allocator *service.AllocatorService
	voting    *service.VotingService
	logger    *zap.Logger
}

func NewHandlers(allocator *service.AllocatorService, voting *service.VotingService, logger *zap.Logger) *Handlers {
	return &Handlers{allocator: allocator, voting: voting, logger: logger}
}

// CreateLaunch handles POST /launches
func (h *Handlers) CreateLaunch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID                  string `json:"id"`
		Name                string `json:"name"`
		VotingDurationHours int    `json:"voting_duration_hours"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	launch := &model.Launch{
		ID:                  req.ID,
		Name:                req.Name,
		VotingDurationHours: req.VotingDurationHours,
	}
	if launch.ID == "" {
		launch.ID = uuid.NewString()
	}

	if err := h.allocator.CreateLaunch(r.Context(), launch); err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusCreated, launch)
}

// Book handles POST /launches/schedule
func (h *Handlers) Book(w http.ResponseWriter, r *http.Request) {
	var req service.BookRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	outcome, err := h.allocator.Book(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*service.BookingOutcome
	}{true, outcome})
}

// ListSlots handles GET /admin/slots?from=&to=
func (h *Handlers) ListSlots(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		ErrorResponse(w, http.StatusBadRequest, "from and to are required")
		return
	}

	slots, err := h.allocator.ListSlots(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, slots)
}

// SetCapacity handles PUT /admin/slots/{date}/capacity
func (h *Handlers) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capacity int `json:"capacity"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.allocator.SetCapacity(r.Context(), r.PathValue("date"), req.Capacity); err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// ForceReschedule handles POST /admin/launches/{id}/reschedule
func (h *Handlers) ForceReschedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	outcome, err := h.allocator.ForceReschedule(r.Context(), r.PathValue("id"), req.Date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*service.BookingOutcome
	}{true, outcome})
}

// OpenSession handles POST /admin/sessions/{date}/open
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	date, err := datekey.Parse(r.PathValue("date"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid date")
		return
	}

	// Body is optional; with no launch_ids the day's eligible launches seed
	// the session.
	var req struct {
		LaunchIDs []string `json:"launch_ids"`
	}
	if err := ParseJSONBody(r, &req); err != nil && err != io.EOF {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ids := req.LaunchIDs
	if len(ids) == 0 {
		ids, err = h.voting.TodaysEligibleLaunches(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
	}
	if len(ids) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "no launches eligible for this session")
		return
	}

	session, err := h.voting.Open(r.Context(), date, ids)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, session)
}

// CloseSession handles POST /admin/sessions/{date}/close
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	date, err := datekey.Parse(r.PathValue("date"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid date")
		return
	}

	result, err := h.voting.Close(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, result)
}

// GetSession handles GET /sessions/{date}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	date, err := datekey.Parse(r.PathValue("date"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid date")
		return
	}

	session, err := h.voting.Session(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if session == nil {
		ErrorResponse(w, http.StatusNotFound, "no active session")
		return
	}

	members, err := h.voting.ActiveMembership(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		*model.VotingSession
		Members []string `json:"members"`
	}{session, members})
}

// RecordVote handles POST /sessions/{date}/votes
func (h *Handlers) RecordVote(w http.ResponseWriter, r *http.Request) {
	date, err := datekey.Parse(r.PathValue("date"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid date")
		return
	}

	var req struct {
		LaunchID string `json:"launch_id"`
		UserID   string `json:"user_id"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	total, err := h.voting.RecordVote(r.Context(), date, req.LaunchID, req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		Success bool  `json:"success"`
		Votes   int64 `json:"votes"`
	}{true, total})
}

// writeServiceError maps service failures onto the API's status codes.
// Conflicts tell the caller to change input, not to blindly retry; anything
// unrecognized is a store failure and is retriable with backoff.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, "launch not found")
	case errors.Is(err, service.ErrAlreadyScheduled):
		ErrorResponse(w, http.StatusBadRequest, "already scheduled")
	case errors.Is(err, service.ErrDayFull):
		ErrorResponse(w, http.StatusConflict, "day is full, pick another date")
	case errors.Is(err, service.ErrInvalidRequest):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotInSession):
		ErrorResponse(w, http.StatusConflict, "launch is not in the active session")
	case errors.Is(err, service.ErrAlreadyVoted):
		ErrorResponse(w, http.StatusConflict, "already voted")
	default:
		h.logger.Error("request failed", zap.Error(err))
		ErrorResponse(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	}
}
