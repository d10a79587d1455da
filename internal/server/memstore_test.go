package server

import (
	"context"
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/Freeeeeet/launchday/internal/service"
)

// handlerMemStore backs the services with in-memory state so the handlers can
// be driven end to end without Postgres. It mirrors the repository semantics:
// denormalized non-premium counts, conditional schedule updates, marker-gated
// vote flushes.
type handlerMemStore struct {
	slots    map[datekey.DateKey]*model.Slot
	launches map[string]*model.Launch
	flushed  map[string]struct{}
	clock    time.Time
}

func newHandlerMemStore() *handlerMemStore {
	return &handlerMemStore{
		slots:    make(map[datekey.DateKey]*model.Slot),
		launches: make(map[string]*model.Launch),
		flushed:  make(map[string]struct{}),
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *handlerMemStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *handlerMemStore) GetOrCreate(_ context.Context, date datekey.DateKey, defaultCapacity int) (*model.Slot, error) {
	if slot, ok := m.slots[date]; ok {
		return slot, nil
	}
	slot := &model.Slot{Date: date, Capacity: defaultCapacity, CreatedAt: m.tick()}
	m.slots[date] = slot
	return slot, nil
}

func (m *handlerMemStore) Get(_ context.Context, date datekey.DateKey) (*model.Slot, error) {
	return m.slots[date], nil
}

func (m *handlerMemStore) ListRange(_ context.Context, from, to datekey.DateKey) ([]*model.Slot, error) {
	var out []*model.Slot
	for d := from; d <= to; d = d.AddDays(1) {
		if slot, ok := m.slots[d]; ok {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (m *handlerMemStore) SetCapacity(_ context.Context, date datekey.DateKey, capacity int) error {
	if slot, ok := m.slots[date]; ok {
		slot.Capacity = capacity
		return nil
	}
	m.slots[date] = &model.Slot{Date: date, Capacity: capacity, CreatedAt: m.tick()}
	return nil
}

func (m *handlerMemStore) Admit(_ context.Context, date datekey.DateKey, launchID string, isPremium, enforceCapacity bool, votingHours int) error {
	slot := m.slots[date]
	if enforceCapacity && len(slot.Bookings) >= slot.Capacity {
		return service.ErrDayFull
	}
	if err := m.schedule(launchID, date, votingHours); err != nil {
		return err
	}
	slot.Bookings = append(slot.Bookings, model.Booking{
		LaunchID:  launchID,
		IsPremium: isPremium,
		BookedAt:  m.tick(),
	})
	if !isPremium {
		slot.NonPremiumCount++
	}
	return nil
}

func (m *handlerMemStore) Retract(_ context.Context, date datekey.DateKey, launchID string) (bool, error) {
	slot := m.slots[date]
	for i, b := range slot.Bookings {
		if b.LaunchID == launchID {
			slot.Bookings = append(slot.Bookings[:i], slot.Bookings[i+1:]...)
			if !b.IsPremium {
				slot.NonPremiumCount--
			}
			if launch, ok := m.launches[launchID]; ok {
				launch.LaunchDate = nil
			}
			return b.IsPremium, nil
		}
	}
	return false, service.ErrNotFound
}

func (m *handlerMemStore) BumpMostRecentNonPremium(_ context.Context, date datekey.DateKey, newLaunchID string, votingHours int) (string, error) {
	slot := m.slots[date]

	victim := -1
	for i := len(slot.Bookings) - 1; i >= 0; i-- {
		if !slot.Bookings[i].IsPremium {
			victim = i
			break
		}
	}
	if victim < 0 {
		return "", service.ErrNoNonPremium
	}

	bumpedID := slot.Bookings[victim].LaunchID
	slot.Bookings = append(slot.Bookings[:victim], slot.Bookings[victim+1:]...)
	slot.NonPremiumCount--
	if launch, ok := m.launches[bumpedID]; ok {
		launch.LaunchDate = nil
	}

	if err := m.schedule(newLaunchID, date, votingHours); err != nil {
		return "", err
	}
	slot.Bookings = append(slot.Bookings, model.Booking{
		LaunchID:  newLaunchID,
		IsPremium: true,
		BookedAt:  m.tick(),
	})
	return bumpedID, nil
}

func (m *handlerMemStore) schedule(launchID string, date datekey.DateKey, votingHours int) error {
	launch, ok := m.launches[launchID]
	if !ok {
		return service.ErrNotFound
	}
	if launch.LaunchDate != nil {
		return service.ErrAlreadyScheduled
	}
	d := date
	launch.LaunchDate = &d
	launch.VotingDurationHours = votingHours
	launch.VotingEnded = false
	return nil
}

func (m *handlerMemStore) Create(_ context.Context, launch *model.Launch) error {
	if launch.Status == "" {
		launch.Status = model.LaunchStatusApproved
	}
	if launch.VotingDurationHours <= 0 {
		launch.VotingDurationHours = model.DefaultVotingDurationHours
	}
	launch.CreatedAt = m.tick()
	m.launches[launch.ID] = launch
	return nil
}

func (m *handlerMemStore) GetByID(_ context.Context, id string) (*model.Launch, error) {
	return m.launches[id], nil
}

func (m *handlerMemStore) ListByLaunchDate(_ context.Context, date datekey.DateKey) ([]*model.Launch, error) {
	var out []*model.Launch
	for _, launch := range m.launches {
		if launch.Status == model.LaunchStatusApproved &&
			launch.LaunchDate != nil && *launch.LaunchDate == date {
			out = append(out, launch)
		}
	}
	return out, nil
}

func (m *handlerMemStore) ApplyVoteFlush(_ context.Context, date datekey.DateKey, counts map[string]int64) (int, error) {
	applied := 0
	for launchID, votes := range counts {
		marker := date.String() + "|" + launchID
		if _, done := m.flushed[marker]; done {
			continue
		}
		m.flushed[marker] = struct{}{}

		if launch, ok := m.launches[launchID]; ok {
			launch.CumulativeVotes += votes
			launch.VotingEnded = true
			now := m.tick()
			launch.LastFlushAt = &now
		}
		applied++
	}
	return applied, nil
}
