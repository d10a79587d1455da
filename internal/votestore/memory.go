package votestore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and local runs. Expiry is checked
// lazily on access.
type Memory struct {
	mu   sync.Mutex
	vals map[string]memEntry
	sets map[string]memSet
	now  func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type memSet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemory returns an empty in-memory store using the wall clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock injects the clock, so tests can drive expiry.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		vals: make(map[string]memEntry),
		sets: make(map[string]memSet),
		now:  now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveEntry(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vals[key] = memEntry{value: value, expiresAt: m.deadline(ttl)}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.liveEntry(key); ok {
		return false, nil
	}
	m.vals[key] = memEntry{value: value, expiresAt: m.deadline(ttl)}
	return true, nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	e, ok := m.liveEntry(key)
	if ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = parsed
	}
	n++
	m.vals[key] = memEntry{value: strconv.FormatInt(n, 10), expiresAt: e.expiresAt}
	return n, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.vals, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.liveEntry(key); ok {
		e.expiresAt = m.deadline(ttl)
		m.vals[key] = e
	}
	if s, ok := m.liveSet(key); ok {
		s.expiresAt = m.deadline(ttl)
		m.sets[key] = s
	}
	return nil
}

func (m *Memory) SAdd(_ context.Context, key string, members []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.liveSet(key)
	if !ok {
		s = memSet{members: make(map[string]struct{})}
	}
	for _, member := range members {
		s.members[member] = struct{}{}
	}
	if ttl > 0 {
		s.expiresAt = m.deadline(ttl)
	}
	m.sets[key] = s
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.liveSet(key)
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(s.members))
	for member := range s.members {
		members = append(members, member)
	}
	return members, nil
}

// liveEntry returns the entry unless it is missing or expired. Caller holds mu.
func (m *Memory) liveEntry(key string) (memEntry, bool) {
	e, ok := m.vals[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.vals, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *Memory) liveSet(key string) (memSet, bool) {
	s, ok := m.sets[key]
	if !ok {
		return memSet{}, false
	}
	if !s.expiresAt.IsZero() && m.now().After(s.expiresAt) {
		delete(m.sets, key)
		return memSet{}, false
	}
	return s, true
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
