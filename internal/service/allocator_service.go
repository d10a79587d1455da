package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/Freeeeeet/launchday/internal/notify"
	"go.uber.org/zap"
)

// NoteExceededCapacity is reported when a premium booking lands on a day that
// is full of premium bookings only. The overflow is deliberate.
const NoteExceededCapacity = "exceeded capacity, nothing to bump"

// AllocatorConfig holds the admission-control knobs.
type AllocatorConfig struct {
	// DefaultDayCapacity seeds lazily created slots.
	DefaultDayCapacity int
	// HorizonDays bounds the forward search for a bumped launch's new home.
	HorizonDays int
}

// BookRequest is a submission asking for a calendar day.
type BookRequest struct {
	LaunchID            string `json:"launch_id"`
	PreferredDate       string `json:"preferred_date"`
	IsPremium           bool   `json:"is_premium"`
	VotingDurationHours int    `json:"voting_duration_hours"`
}

// BookingOutcome reports where the launch landed and what, if anything, was
// displaced to make room.
type BookingOutcome struct {
	Date              datekey.DateKey  `json:"date"`
	BumpedLaunchID    string           `json:"bumped_launch_id,omitempty"`
	BumpedToDate      *datekey.DateKey `json:"bumped_to_date,omitempty"`
	BumpedUnscheduled bool             `json:"bumped_unscheduled,omitempty"`
	Note              string           `json:"note,omitempty"`
}

// AllocatorService is the slot admission controller: capacity enforcement for
// non-premium submissions, premium preemption with bounded rescheduling of
// the displaced launch.
type AllocatorService struct {
	slots    SlotStore
	launches LaunchStore
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      AllocatorConfig
}

func NewAllocatorService(
	slots SlotStore,
	launches LaunchStore,
	notifier notify.Notifier,
	logger *zap.Logger,
	cfg AllocatorConfig,
) *AllocatorService {
	return &AllocatorService{
		slots:    slots,
		launches: launches,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Book admits a launch onto its preferred day.
//
// Non-premium submissions fail with ErrDayFull once the day is at capacity.
// Premium submissions on a full day bump the most recently booked non-premium
// launch, which is rebooked on the first day with room within the horizon, or
// left unscheduled (reported, never hidden) when the horizon is exhausted.
// A day full of premium bookings admits one more premium booking over
// capacity rather than bumping nothing.
func (s *AllocatorService) Book(ctx context.Context, req BookRequest) (*BookingOutcome, error) {
	if req.LaunchID == "" || req.PreferredDate == "" {
		return nil, fmt.Errorf("%w: launch_id and preferred_date are required", ErrInvalidRequest)
	}

	date, err := datekey.Parse(req.PreferredDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	launch, err := s.launches.GetByID(ctx, req.LaunchID)
	if err != nil {
		return nil, fmt.Errorf("get launch: %w", err)
	}
	if launch == nil {
		return nil, ErrNotFound
	}
	if launch.Scheduled() {
		// Idempotent-reject: repeat calls for a scheduled launch always fail.
		return nil, ErrAlreadyScheduled
	}

	votingHours := req.VotingDurationHours
	if votingHours <= 0 {
		votingHours = model.DefaultVotingDurationHours
	}

	if _, err := s.slots.GetOrCreate(ctx, date, s.cfg.DefaultDayCapacity); err != nil {
		return nil, err
	}

	if !req.IsPremium {
		if err := s.slots.Admit(ctx, date, req.LaunchID, false, true, votingHours); err != nil {
			return nil, err
		}

		s.logger.Info("launch booked",
			zap.String("launch_id", req.LaunchID),
			zap.String("date", date.String()),
		)
		return &BookingOutcome{Date: date}, nil
	}

	return s.bookPremium(ctx, date, req.LaunchID, votingHours)
}

func (s *AllocatorService) bookPremium(ctx context.Context, date datekey.DateKey, launchID string, votingHours int) (*BookingOutcome, error) {
	// Room available: a premium booking takes a normal seat.
	err := s.slots.Admit(ctx, date, launchID, true, true, votingHours)
	if err == nil {
		s.logger.Info("premium launch booked",
			zap.String("launch_id", launchID),
			zap.String("date", date.String()),
		)
		return &BookingOutcome{Date: date}, nil
	}
	if !errors.Is(err, ErrDayFull) {
		return nil, err
	}

	// Day is full: displace the most recently booked non-premium launch.
	bumpedID, err := s.slots.BumpMostRecentNonPremium(ctx, date, launchID, votingHours)
	if errors.Is(err, ErrNoNonPremium) {
		// Only premium bookings on this day. Exceed capacity by one instead.
		if err := s.slots.Admit(ctx, date, launchID, true, false, votingHours); err != nil {
			return nil, err
		}

		s.logger.Warn("premium launch booked over capacity",
			zap.String("launch_id", launchID),
			zap.String("date", date.String()),
		)
		return &BookingOutcome{Date: date, Note: NoteExceededCapacity}, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("premium launch bumped a booking",
		zap.String("launch_id", launchID),
		zap.String("bumped_launch_id", bumpedID),
		zap.String("date", date.String()),
	)

	outcome := &BookingOutcome{Date: date, BumpedLaunchID: bumpedID}

	newDate, err := s.rescheduleBumped(ctx, date, bumpedID)
	if err != nil {
		return nil, err
	}
	if newDate == nil {
		outcome.BumpedUnscheduled = true
	} else {
		outcome.BumpedToDate = newDate
	}

	return outcome, nil
}

// rescheduleBumped scans forward day by day looking for the bumped launch's
// next home. Each day is its own read-modify-write unit; a crash mid-scan
// leaves the launch unscheduled, never double-booked. The linear scan is
// intentional: the horizon is small.
func (s *AllocatorService) rescheduleBumped(ctx context.Context, from datekey.DateKey, bumpedID string) (*datekey.DateKey, error) {
	bumped, err := s.launches.GetByID(ctx, bumpedID)
	if err != nil {
		return nil, fmt.Errorf("get bumped launch: %w", err)
	}

	votingHours := model.DefaultVotingDurationHours
	if bumped != nil && bumped.VotingDurationHours > 0 {
		votingHours = bumped.VotingDurationHours
	}

	for i := 1; i <= s.cfg.HorizonDays; i++ {
		candidate := from.AddDays(i)

		if _, err := s.slots.GetOrCreate(ctx, candidate, s.cfg.DefaultDayCapacity); err != nil {
			return nil, err
		}

		err := s.slots.Admit(ctx, candidate, bumpedID, false, true, votingHours)
		if errors.Is(err, ErrDayFull) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("bumped launch rescheduled",
			zap.String("launch_id", bumpedID),
			zap.String("from", from.String()),
			zap.String("to", candidate.String()),
		)
		return &candidate, nil
	}

	s.logger.Warn("bumped launch could not be rescheduled within horizon",
		zap.String("launch_id", bumpedID),
		zap.String("from", from.String()),
		zap.Int("horizon_days", s.cfg.HorizonDays),
	)
	s.notifier.Warn(ctx, fmt.Sprintf(
		"launch %s was bumped from %s and could not be rebooked within %d days; it is now unscheduled",
		bumpedID, from, s.cfg.HorizonDays,
	))

	return nil, nil
}

// SetCapacity adjusts a day's capacity. Admin operation.
func (s *AllocatorService) SetCapacity(ctx context.Context, dateRaw string, capacity int) error {
	date, err := datekey.Parse(dateRaw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if capacity < 0 {
		return fmt.Errorf("%w: capacity must be non-negative", ErrInvalidRequest)
	}

	if err := s.slots.SetCapacity(ctx, date, capacity); err != nil {
		return err
	}

	s.logger.Info("slot capacity adjusted",
		zap.String("date", date.String()),
		zap.Int("capacity", capacity),
	)
	return nil
}

// ForceReschedule moves a booked launch to a new date. The existing booking
// is retracted first, then the launch is re-admitted with fresh-booking
// semantics; a full target day fails with ErrDayFull and leaves the launch
// unscheduled, which is reported to the admin caller.
func (s *AllocatorService) ForceReschedule(ctx context.Context, launchID, newDateRaw string) (*BookingOutcome, error) {
	if launchID == "" || newDateRaw == "" {
		return nil, fmt.Errorf("%w: launch_id and date are required", ErrInvalidRequest)
	}

	newDate, err := datekey.Parse(newDateRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	launch, err := s.launches.GetByID(ctx, launchID)
	if err != nil {
		return nil, fmt.Errorf("get launch: %w", err)
	}
	if launch == nil {
		return nil, ErrNotFound
	}
	if !launch.Scheduled() {
		return nil, fmt.Errorf("%w: launch is not scheduled", ErrInvalidRequest)
	}

	oldDate := *launch.LaunchDate
	wasPremium, err := s.slots.Retract(ctx, oldDate, launchID)
	if err != nil {
		return nil, err
	}

	if _, err := s.slots.GetOrCreate(ctx, newDate, s.cfg.DefaultDayCapacity); err != nil {
		return nil, err
	}

	votingHours := launch.VotingDurationHours
	if votingHours <= 0 {
		votingHours = model.DefaultVotingDurationHours
	}

	if err := s.slots.Admit(ctx, newDate, launchID, wasPremium, true, votingHours); err != nil {
		if errors.Is(err, ErrDayFull) {
			s.logger.Warn("force-reschedule target full, launch left unscheduled",
				zap.String("launch_id", launchID),
				zap.String("from", oldDate.String()),
				zap.String("to", newDate.String()),
			)
		}
		return nil, err
	}

	s.logger.Info("launch force-rescheduled",
		zap.String("launch_id", launchID),
		zap.String("from", oldDate.String()),
		zap.String("to", newDate.String()),
	)
	return &BookingOutcome{Date: newDate}, nil
}

// ListSlots returns the slots in a date range for the admin surface.
func (s *AllocatorService) ListSlots(ctx context.Context, fromRaw, toRaw string) ([]*model.Slot, error) {
	from, err := datekey.Parse(fromRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	to, err := datekey.Parse(toRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return s.slots.ListRange(ctx, from, to)
}

// CreateLaunch seeds a launch record so the allocator has something to
// schedule. Full content management lives outside this service.
func (s *AllocatorService) CreateLaunch(ctx context.Context, launch *model.Launch) error {
	if launch.ID == "" || launch.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidRequest)
	}
	return s.launches.Create(ctx, launch)
}
