package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/launchday/internal/datekey"
	"github.com/Freeeeeet/launchday/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotRepository owns the per-day slot rows and their ordered booking lists.
// Every mutation runs in a transaction that locks the day's slot row, so one
// day's read-modify-write is serialized; there is no cross-day transaction.
// non_premium_count is maintained exclusively here, in lockstep with the
// booking rows.
type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// GetOrCreate loads the slot for a date, lazily creating it with the default
// capacity on the first booking attempt.
func (r *SlotRepository) GetOrCreate(ctx context.Context, date datekey.DateKey, defaultCapacity int) (*model.Slot, error) {
	query := `
		INSERT INTO slots (date, capacity)
		VALUES ($1, $2)
		ON CONFLICT (date) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, date.Time(), defaultCapacity); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	slot, err := r.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("get slot %s: vanished after create", date)
	}

	return slot, nil
}

// Get loads one slot with its bookings. Returns nil when the date has never
// been booked.
func (r *SlotRepository) Get(ctx context.Context, date datekey.DateKey) (*model.Slot, error) {
	query := `
		SELECT capacity, non_premium_count, created_at
		FROM slots
		WHERE date = $1
	`

	slot := &model.Slot{Date: date}
	err := r.pool.QueryRow(ctx, query, date.Time()).Scan(
		&slot.Capacity,
		&slot.NonPremiumCount,
		&slot.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}

	bookings, err := r.loadBookings(ctx, date)
	if err != nil {
		return nil, err
	}
	slot.Bookings = bookings

	return slot, nil
}

// ListRange returns slots with bookings for dates in [from, to], ordered by
// date.
func (r *SlotRepository) ListRange(ctx context.Context, from, to datekey.DateKey) ([]*model.Slot, error) {
	query := `
		SELECT date, capacity, non_premium_count, created_at
		FROM slots
		WHERE date >= $1 AND date <= $2
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	byDate := make(map[datekey.DateKey]*model.Slot)
	for rows.Next() {
		var date time.Time
		slot := &model.Slot{}
		err := rows.Scan(&date, &slot.Capacity, &slot.NonPremiumCount, &slot.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot.Date = datekey.FromTime(date)
		slots = append(slots, slot)
		byDate[slot.Date] = slot
	}
	rows.Close()

	bookingQuery := `
		SELECT slot_date, launch_id, is_premium, booked_at
		FROM slot_bookings
		WHERE slot_date >= $1 AND slot_date <= $2
		ORDER BY slot_date, position
	`

	bookingRows, err := r.pool.Query(ctx, bookingQuery, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer bookingRows.Close()

	for bookingRows.Next() {
		var date time.Time
		var booking model.Booking
		if err := bookingRows.Scan(&date, &booking.LaunchID, &booking.IsPremium, &booking.BookedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		if slot, ok := byDate[datekey.FromTime(date)]; ok {
			slot.Bookings = append(slot.Bookings, booking)
		}
	}

	return slots, nil
}

// SetCapacity upserts a day's capacity without touching its bookings.
func (r *SlotRepository) SetCapacity(ctx context.Context, date datekey.DateKey, capacity int) error {
	query := `
		INSERT INTO slots (date, capacity)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET capacity = EXCLUDED.capacity
	`

	if _, err := r.pool.Exec(ctx, query, date.Time(), capacity); err != nil {
		return fmt.Errorf("set capacity: %w", err)
	}

	return nil
}

// Admit appends a booking for the date and sets the launch's schedule in the
// same transaction. With enforceCapacity the append fails with ErrDayFull
// once len(bookings) >= capacity; without it the booking is inserted
// regardless (premium overflow). The launch-date update is conditional on the
// launch being unscheduled, so a concurrent double-book of the same launch
// fails with ErrAlreadyScheduled instead of booking twice.
func (r *SlotRepository) Admit(ctx context.Context, date datekey.DateKey, launchID string, isPremium, enforceCapacity bool, votingHours int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin admit: %w", err)
	}
	defer tx.Rollback(ctx)

	capacity, count, err := lockSlot(ctx, tx, date)
	if err != nil {
		return err
	}

	if enforceCapacity && count >= capacity {
		return ErrDayFull
	}

	if err := scheduleLaunch(ctx, tx, launchID, date, votingHours); err != nil {
		return err
	}

	if err := insertBooking(ctx, tx, date, launchID, isPremium); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit admit: %w", err)
	}

	return nil
}

// Retract removes a launch's booking from the date and clears its launch
// date, reporting whether the removed booking was premium.
func (r *SlotRepository) Retract(ctx context.Context, date datekey.DateKey, launchID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin retract: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, _, err := lockSlot(ctx, tx, date); err != nil {
		return false, err
	}

	wasPremium, err := deleteBooking(ctx, tx, date, launchID)
	if err != nil {
		return false, err
	}

	unscheduleQuery := `UPDATE launches SET launch_date = NULL WHERE id = $1`
	if _, err := tx.Exec(ctx, unscheduleQuery, launchID); err != nil {
		return false, fmt.Errorf("unschedule launch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit retract: %w", err)
	}

	return wasPremium, nil
}

// BumpMostRecentNonPremium displaces the newest non-premium booking of a full
// day in favor of a premium one. In one transaction: the victim's booking row
// is deleted and its launch date cleared, the premium booking is appended,
// and the new launch's schedule is set. The bumped launch therefore never
// holds a stale date while its rebooking search runs.
func (r *SlotRepository) BumpMostRecentNonPremium(ctx context.Context, date datekey.DateKey, newLaunchID string, votingHours int) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin bump: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, _, err := lockSlot(ctx, tx, date); err != nil {
		return "", err
	}

	victimQuery := `
		SELECT launch_id
		FROM slot_bookings
		WHERE slot_date = $1 AND NOT is_premium
		ORDER BY position DESC
		LIMIT 1
	`

	var bumpedID string
	if err := tx.QueryRow(ctx, victimQuery, date.Time()).Scan(&bumpedID); err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNoNonPremium
		}
		return "", fmt.Errorf("find bump victim: %w", err)
	}

	if _, err := deleteBooking(ctx, tx, date, bumpedID); err != nil {
		return "", err
	}

	unscheduleQuery := `UPDATE launches SET launch_date = NULL WHERE id = $1`
	if _, err := tx.Exec(ctx, unscheduleQuery, bumpedID); err != nil {
		return "", fmt.Errorf("unschedule bumped launch: %w", err)
	}

	if err := scheduleLaunch(ctx, tx, newLaunchID, date, votingHours); err != nil {
		return "", err
	}

	if err := insertBooking(ctx, tx, date, newLaunchID, true); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit bump: %w", err)
	}

	return bumpedID, nil
}

// lockSlot takes the per-date row lock and returns capacity and the current
// booking count. The lock is held until the surrounding tx ends, serializing
// concurrent mutations of the same day.
func lockSlot(ctx context.Context, tx pgx.Tx, date datekey.DateKey) (capacity, count int, err error) {
	lockQuery := `SELECT capacity FROM slots WHERE date = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, date.Time()).Scan(&capacity); err != nil {
		if err == pgx.ErrNoRows {
			return 0, 0, fmt.Errorf("slot %s does not exist", date)
		}
		return 0, 0, fmt.Errorf("lock slot: %w", err)
	}

	countQuery := `SELECT count(*) FROM slot_bookings WHERE slot_date = $1`
	if err := tx.QueryRow(ctx, countQuery, date.Time()).Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("count bookings: %w", err)
	}

	return capacity, count, nil
}

func scheduleLaunch(ctx context.Context, tx pgx.Tx, launchID string, date datekey.DateKey, votingHours int) error {
	query := `
		UPDATE launches
		SET launch_date = $1, voting_duration_hours = $2, voting_ended = FALSE
		WHERE id = $3 AND launch_date IS NULL
	`

	tag, err := tx.Exec(ctx, query, date.Time(), votingHours, launchID)
	if err != nil {
		return fmt.Errorf("schedule launch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists := false
		existsQuery := `SELECT EXISTS(SELECT 1 FROM launches WHERE id = $1)`
		if err := tx.QueryRow(ctx, existsQuery, launchID).Scan(&exists); err != nil {
			return fmt.Errorf("check launch exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyScheduled
	}

	return nil
}

func insertBooking(ctx context.Context, tx pgx.Tx, date datekey.DateKey, launchID string, isPremium bool) error {
	query := `
		INSERT INTO slot_bookings (slot_date, launch_id, is_premium, booked_at)
		VALUES ($1, $2, $3, now())
	`

	if _, err := tx.Exec(ctx, query, date.Time(), launchID, isPremium); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if !isPremium {
		counterQuery := `UPDATE slots SET non_premium_count = non_premium_count + 1 WHERE date = $1`
		if _, err := tx.Exec(ctx, counterQuery, date.Time()); err != nil {
			return fmt.Errorf("increment non-premium count: %w", err)
		}
	}

	return nil
}

func deleteBooking(ctx context.Context, tx pgx.Tx, date datekey.DateKey, launchID string) (wasPremium bool, err error) {
	query := `
		DELETE FROM slot_bookings
		WHERE slot_date = $1 AND launch_id = $2
		RETURNING is_premium
	`

	if err := tx.QueryRow(ctx, query, date.Time(), launchID).Scan(&wasPremium); err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("delete booking: %w", err)
	}

	if !wasPremium {
		counterQuery := `UPDATE slots SET non_premium_count = non_premium_count - 1 WHERE date = $1`
		if _, err := tx.Exec(ctx, counterQuery, date.Time()); err != nil {
			return false, fmt.Errorf("decrement non-premium count: %w", err)
		}
	}

	return wasPremium, nil
}

func (r *SlotRepository) loadBookings(ctx context.Context, date datekey.DateKey) ([]model.Booking, error) {
	query := `
		SELECT launch_id, is_premium, booked_at
		FROM slot_bookings
		WHERE slot_date = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, date.Time())
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var booking model.Booking
		if err := rows.Scan(&booking.LaunchID, &booking.IsPremium, &booking.BookedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}
