package service

import (
	"context"
	"errors"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/Freeeeeet/launchday/internal/repository"
)

// SlotStore is the durable per-day slot record, one read-modify-write unit
// per date. Implemented by repository.SlotRepository.
type SlotStore interface {
	GetOrCreate(ctx context.Context, date datekey.DateKey, defaultCapacity int) (*model.Slot, error)
	Get(ctx context.Context, date datekey.DateKey) (*model.Slot, error)
	ListRange(ctx context.Context, from, to datekey.DateKey) ([]*model.Slot, error)
	SetCapacity(ctx context.Context, date datekey.DateKey, capacity int) error
	Admit(ctx context.Context, date datekey.DateKey, launchID string, isPremium, enforceCapacity bool, votingHours int) error
	Retract(ctx context.Context, date datekey.DateKey, launchID string) (bool, error)
	BumpMostRecentNonPremium(ctx context.Context, date datekey.DateKey, newLaunchID string, votingHours int) (string, error)
}

// LaunchStore is the durable launch record store. Implemented by
// repository.LaunchRepository.
type LaunchStore interface {
	Create(ctx context.Context, launch *model.Launch) error
	GetByID(ctx context.Context, id string) (*model.Launch, error)
	ListByLaunchDate(ctx context.Context, date datekey.DateKey) ([]*model.Launch, error)
	ApplyVoteFlush(ctx context.Context, date datekey.DateKey, counts map[string]int64) (int, error)
}

// Booking failures are returned as typed conflicts, never as opaque wrapped
// store errors. The repository sentinels are the canonical identities.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrAlreadyScheduled = repository.ErrAlreadyScheduled
	ErrDayFull          = repository.ErrDayFull
	ErrNoNonPremium     = repository.ErrNoNonPremium

	ErrInvalidRequest = errors.New("invalid request")
	ErrNotInSession   = errors.New("launch is not in the active session")
	ErrAlreadyVoted   = errors.New("user already voted for this launch")
)
