package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/notify"
	"github.com/Freeeeeet/launchday/internal/service"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// How far back the sweeper looks for sessions that still need closing.
// Anything older has already hit its volatile TTL and is gone.
const sweepLookbackDays = 2

// Sweeper drives the voting session lifecycle in the background: it opens
// today's session for the day's scheduled launches and closes sessions whose
// window has passed, retrying failed flushes. If a session is never closed
// before its TTL its tallies are lost; the sweeper exists so that only
// happens when the process is down for longer than the expiry buffer.
type Sweeper struct {
	voting   *service.VotingService
	notifier notify.Notifier
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
}

func NewSweeper(voting *service.VotingService, notifier notify.Notifier, logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		voting:   voting,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting session sweeper", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop stops the background loop.
func (s *Sweeper) Stop() {
	s.logger.Info("stopping session sweeper")
	close(s.stopChan)
}

func (s *Sweeper) run(ctx context.Context) {
	// First sweep right away, then on the ticker.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("session sweeper cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	today := datekey.FromTime(now)

	s.openToday(ctx, today)
	s.closeExpired(ctx, today, now)
}

// openToday opens today's session when the day has scheduled launches. Open
// is idempotent, so repeat sweeps are harmless.
func (s *Sweeper) openToday(ctx context.Context, today datekey.DateKey) {
	ids, err := s.voting.TodaysEligibleLaunches(ctx)
	if err != nil {
		s.logger.Error("failed to list today's launches", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	if _, err := s.voting.Open(ctx, today, ids); err != nil {
		s.logger.Error("failed to open today's voting session",
			zap.String("date", today.String()),
			zap.Error(err),
		)
	}
}

// closeExpired closes any session in the lookback window whose voting window
// has passed. Close is safe to retry, so flush failures are retried with
// backoff before giving up until the next sweep.
func (s *Sweeper) closeExpired(ctx context.Context, today datekey.DateKey, now time.Time) {
	for i := 0; i <= sweepLookbackDays; i++ {
		date := today.AddDays(-i)

		session, err := s.voting.Session(ctx, date)
		if err != nil {
			s.logger.Error("failed to read session", zap.String("date", date.String()), zap.Error(err))
			continue
		}
		if session == nil || !session.Expired(now) {
			continue
		}

		backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			_, err := s.voting.Close(ctx, date)
			return retry.RetryableError(err)
		})
		if err != nil {
			s.logger.Error("failed to close expired voting session",
				zap.String("date", date.String()),
				zap.Error(err),
			)
			s.notifier.Warn(ctx, fmt.Sprintf(
				"voting session for %s could not be flushed: %v; tallies are lost if this persists past the expiry buffer",
				date, err,
			))
		}
	}
}
