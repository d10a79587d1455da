package repository

import "errors"

var (
	// ErrNotFound - the referenced launch does not exist.
	ErrNotFound = errors.New("launch not found")
	// ErrAlreadyScheduled - the launch already holds a launch date.
	ErrAlreadyScheduled = errors.New("launch already scheduled")
	// ErrDayFull - the day's bookings have reached capacity.
	ErrDayFull = errors.New("day is full")
	// ErrNoNonPremium - the day holds only premium bookings, nothing to bump.
	ErrNoNonPremium = errors.New("no non-premium booking to bump")
)
