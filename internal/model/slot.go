package model

import (
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
)

// Booking is one entry in a day's ordered booking list. Ordering is insertion
// order and is never rewritten.
type Booking struct {
	LaunchID  string    `json:"launch_id"`
	IsPremium bool      `json:"is_premium"`
	BookedAt  time.Time `json:"booked_at"`
}

// Slot is the per-day record: capacity plus the ordered bookings. Created
// lazily on the first booking attempt for a date, never deleted.
//
// NonPremiumCount is denormalized from Bookings; it is maintained only by the
// slot repository's mutation statements.
type Slot struct {
	Date            datekey.DateKey `json:"date"`
	Capacity        int             `json:"capacity"`
	NonPremiumCount int             `json:"non_premium_count"`
	Bookings        []Booking       `json:"bookings"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HasRoom reports whether another booking fits under the day's capacity.
func (s *Slot) HasRoom() bool {
	return len(s.Bookings) < s.Capacity
}
