package model

import (
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
)

// DefaultVotingDurationHours is applied when a booking request does not name
// a voting window.
const DefaultVotingDurationHours = 24

type LaunchStatus string

const (
	LaunchStatusPending  LaunchStatus = "pending"
	LaunchStatusApproved LaunchStatus = "approved"
	LaunchStatusRejected LaunchStatus = "rejected"
)

// Launch is a schedulable item. A nil LaunchDate means unscheduled.
// CumulativeVotes only ever grows, and only via a session flush.
type Launch struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Status              LaunchStatus     `json:"status"`
	LaunchDate          *datekey.DateKey `json:"launch_date"`
	VotingDurationHours int              `json:"voting_duration_hours"`
	CumulativeVotes     int64            `json:"cumulative_votes"`
	VotingEnded         bool             `json:"voting_ended"`
	LastFlushAt         *time.Time       `json:"last_flush_at"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Scheduled reports whether the launch holds a calendar slot.
func (l *Launch) Scheduled() bool {
	return l.LaunchDate != nil
}
