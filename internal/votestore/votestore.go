// Package votestore holds the volatile key/value store behind live vote
// tallies: per-item counters, per-(user,item) dedupe markers, per-day session
// membership and metadata, all with expiry.
package votestore

import (
	"context"
	"time"
)

// Store is the volatile store contract. Implementations must remain
// stateless between calls; expiry is the cleanup mechanism for abandoned
// sessions. Chosen at construction time, never via global state.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes only if the key is absent; reports whether it wrote.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr atomically increments an integer value, creating it at 0.
	Incr(ctx context.Context, key string) (int64, error)
	// Del removes keys; missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	// Expire resets a key's ttl.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// SAdd adds members to a set and applies ttl to the set key.
	SAdd(ctx context.Context, key string, members []string, ttl time.Duration) error
	// SMembers returns all members of a set; empty when the key is absent.
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Key families, scoped by the session's date key.

func CounterKey(date, launchID string) string {
	return "vote:count:" + date + ":" + launchID
}

func VotedKey(date, launchID, userID string) string {
	return "vote:voted:" + date + ":" + launchID + ":" + userID
}

func MembersKey(date string) string {
	return "vote:members:" + date
}

func SessionKey(date string) string {
	return "vote:session:" + date
}
