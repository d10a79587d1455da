package model

import (
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
)

// VotingSession is the volatile per-day session record. LaunchIDs is the set
// of launches admitted at open time and is fixed for the session's lifetime.
type VotingSession struct {
	ID        string          `json:"id"`
	Date      datekey.DateKey `json:"date"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	LaunchIDs []string        `json:"launch_ids"`
}

// Expired reports whether the voting window has passed.
func (s *VotingSession) Expired(now time.Time) bool {
	return now.After(s.EndTime)
}
