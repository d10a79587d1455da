package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/Freeeeeet/launchday/internal/notify"
	"github.com/Freeeeeet/launchday/internal/votestore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VotingConfig holds the session window knobs.
type VotingConfig struct {
	// WindowHours is the voting window length.
	WindowHours int
	// TTLBufferHours extends the volatile expiry past the window so a
	// delayed flush can still read the tallies.
	TTLBufferHours int
}

// FlushResult reports what a session close reconciled into durable storage.
type FlushResult struct {
	Date      datekey.DateKey  `json:"date"`
	NoSession bool             `json:"no_session,omitempty"`
	Counts    map[string]int64 `json:"counts,omitempty"`
	Applied   int              `json:"applied"`
}

// VotingService runs the time-boxed daily voting sessions: volatile tallies
// during the window, an exactly-once flush into the launch records at close.
// While a session is open the volatile store is the sole source of truth for
// its counts; durable cumulative_votes reflects only prior flushed sessions.
type VotingService struct {
	store    votestore.Store
	launches LaunchStore
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      VotingConfig
	now      func() time.Time
}

func NewVotingService(
	store votestore.Store,
	launches LaunchStore,
	notifier notify.Notifier,
	logger *zap.Logger,
	cfg VotingConfig,
) *VotingService {
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = model.DefaultVotingDurationHours
	}
	if cfg.TTLBufferHours <= 0 {
		cfg.TTLBufferHours = 1
	}

	return &VotingService{
		store:    store,
		launches: launches,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *VotingService) window() time.Duration {
	return time.Duration(s.cfg.WindowHours) * time.Hour
}

func (s *VotingService) ttl() time.Duration {
	return s.window() + time.Duration(s.cfg.TTLBufferHours)*time.Hour
}

// Open starts the session for a day over a fixed set of launches. Opening an
// already-open session is safe: existing counters are never reset and the
// original membership is returned unchanged.
func (s *VotingService) Open(ctx context.Context, date datekey.DateKey, launchIDs []string) (*model.VotingSession, error) {
	now := s.now()
	session := &model.VotingSession{
		ID:        uuid.NewString(),
		Date:      date,
		StartTime: now,
		EndTime:   now.Add(s.window()),
		LaunchIDs: launchIDs,
	}

	meta, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	created, err := s.store.SetNX(ctx, votestore.SessionKey(date.String()), string(meta), s.ttl())
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if !created {
		existing, err := s.getSession(ctx, date)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			// The previous session expired between the write attempt and the
			// read-back.
			return nil, fmt.Errorf("session for %s expired during open, retry", date)
		}
		s.logger.Warn("voting session already open, keeping existing state",
			zap.String("date", date.String()),
			zap.String("session_id", existing.ID),
		)
		return existing, nil
	}

	// Seed counters only where absent: a later open attempt must never zero
	// out live tallies.
	for _, id := range launchIDs {
		if _, err := s.store.SetNX(ctx, votestore.CounterKey(date.String(), id), "0", s.ttl()); err != nil {
			return nil, fmt.Errorf("seed counter for %s: %w", id, err)
		}
	}

	if err := s.store.SAdd(ctx, votestore.MembersKey(date.String()), launchIDs, s.ttl()); err != nil {
		return nil, fmt.Errorf("store membership: %w", err)
	}

	s.logger.Info("voting session opened",
		zap.String("date", date.String()),
		zap.String("session_id", session.ID),
		zap.Int("launches", len(launchIDs)),
		zap.Time("end_time", session.EndTime),
	)

	return session, nil
}

// Close reads the session's tallies and reconciles them into the launch
// records as one atomic batch, then clears the volatile state. Closing a day
// with no session is a no-op, not an error, so close may be retried freely;
// the flush markers in durable storage make replays change nothing.
//
// Cleanup failures after a confirmed durable write are logged and swallowed:
// the operation has already succeeded and the leftover keys expire on their
// own.
func (s *VotingService) Close(ctx context.Context, date datekey.DateKey) (*FlushResult, error) {
	session, err := s.getSession(ctx, date)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.logger.Info("no active voting session to close", zap.String("date", date.String()))
		return &FlushResult{Date: date, NoSession: true}, nil
	}

	members, err := s.store.SMembers(ctx, votestore.MembersKey(date.String()))
	if err != nil {
		return nil, fmt.Errorf("read membership: %w", err)
	}
	if len(members) == 0 {
		members = session.LaunchIDs
	}

	counts := make(map[string]int64, len(members))
	counterKeys := make([]string, 0, len(members))
	for _, id := range members {
		key := votestore.CounterKey(date.String(), id)
		counterKeys = append(counterKeys, key)

		val, ok, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read counter for %s: %w", id, err)
		}

		var votes int64
		if ok {
			votes, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("counter for %s is not an integer: %q", id, val)
			}
		}
		counts[id] = votes
	}

	applied, err := s.launches.ApplyVoteFlush(ctx, date, counts)
	if err != nil {
		return nil, fmt.Errorf("flush votes: %w", err)
	}

	// Volatile cleanup runs only after the durable write is confirmed, and
	// its failure must not surface as an error for an operation that already
	// durably succeeded.
	cleanupKeys := append(counterKeys,
		votestore.MembersKey(date.String()),
		votestore.SessionKey(date.String()),
	)
	if err := s.store.Del(ctx, cleanupKeys...); err != nil {
		s.logger.Warn("volatile cleanup failed after flush",
			zap.String("date", date.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("voting session closed",
		zap.String("date", date.String()),
		zap.String("session_id", session.ID),
		zap.Int("launches", len(counts)),
		zap.Int("applied", applied),
	)

	return &FlushResult{Date: date, Counts: counts, Applied: applied}, nil
}

// IsActive reports whether a launch belongs to the day's session. Used by the
// vote-casting surface to reject votes without touching the allocator.
func (s *VotingService) IsActive(ctx context.Context, launchID string, date datekey.DateKey) (bool, error) {
	members, err := s.store.SMembers(ctx, votestore.MembersKey(date.String()))
	if err != nil {
		return false, fmt.Errorf("read membership: %w", err)
	}
	for _, id := range members {
		if id == launchID {
			return true, nil
		}
	}
	return false, nil
}

// ActiveMembership returns the day's fixed session membership.
func (s *VotingService) ActiveMembership(ctx context.Context, date datekey.DateKey) ([]string, error) {
	members, err := s.store.SMembers(ctx, votestore.MembersKey(date.String()))
	if err != nil {
		return nil, fmt.Errorf("read membership: %w", err)
	}
	return members, nil
}

// Session returns the day's session metadata, or nil when none is open.
func (s *VotingService) Session(ctx context.Context, date datekey.DateKey) (*model.VotingSession, error) {
	return s.getSession(ctx, date)
}

// RecordVote counts one vote for a launch in the day's session, deduplicated
// per user.
func (s *VotingService) RecordVote(ctx context.Context, date datekey.DateKey, launchID, userID string) (int64, error) {
	if launchID == "" || userID == "" {
		return 0, fmt.Errorf("%w: launch_id and user_id are required", ErrInvalidRequest)
	}

	active, err := s.IsActive(ctx, launchID, date)
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, ErrNotInSession
	}

	fresh, err := s.store.SetNX(ctx, votestore.VotedKey(date.String(), launchID, userID), "1", s.ttl())
	if err != nil {
		return 0, fmt.Errorf("mark vote: %w", err)
	}
	if !fresh {
		return 0, ErrAlreadyVoted
	}

	total, err := s.store.Incr(ctx, votestore.CounterKey(date.String(), launchID))
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}

	return total, nil
}

// TodaysEligibleLaunches lists approved launches whose launch date is today:
// the seed list for Open.
func (s *VotingService) TodaysEligibleLaunches(ctx context.Context) ([]string, error) {
	today := datekey.Today(s.now)

	launches, err := s.launches.ListByLaunchDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list today's launches: %w", err)
	}

	ids := make([]string, 0, len(launches))
	for _, launch := range launches {
		ids = append(ids, launch.ID)
	}
	return ids, nil
}

func (s *VotingService) getSession(ctx context.Context, date datekey.DateKey) (*model.VotingSession, error) {
	raw, ok, err := s.store.Get(ctx, votestore.SessionKey(date.String()))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var session model.VotingSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
