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

// LaunchRepository owns the durable launch records: schedule fields written
// by the allocator and vote totals written by session flushes.
type LaunchRepository struct {
	pool *pgxpool.Pool
}

func NewLaunchRepository(pool *pgxpool.Pool) *LaunchRepository {
	return &LaunchRepository{pool: pool}
}

// Create inserts a new launch record.
func (r *LaunchRepository) Create(ctx context.Context, launch *model.Launch) error {
	if launch.VotingDurationHours <= 0 {
		launch.VotingDurationHours = model.DefaultVotingDurationHours
	}
	if launch.Status == "" {
		launch.Status = model.LaunchStatusApproved
	}

	query := `
		INSERT INTO launches (id, name, status, voting_duration_hours)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, launch.ID, launch.Name, launch.Status, launch.VotingDurationHours).
		Scan(&launch.CreatedAt)
	if err != nil {
		return fmt.Errorf("create launch: %w", err)
	}

	return nil
}

// GetByID returns the launch or nil when it does not exist.
func (r *LaunchRepository) GetByID(ctx context.Context, id string) (*model.Launch, error) {
	query := `
		SELECT id, name, status, launch_date, voting_duration_hours, cumulative_votes,
		       voting_ended, last_flush_at, created_at
		FROM launches
		WHERE id = $1
	`

	launch, err := scanLaunch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get launch by id: %w", err)
	}

	return launch, nil
}

// ListByLaunchDate returns every launch scheduled on the given day.
func (r *LaunchRepository) ListByLaunchDate(ctx context.Context, date datekey.DateKey) ([]*model.Launch, error) {
	query := `
		SELECT id, name, status, launch_date, voting_duration_hours, cumulative_votes,
		       voting_ended, last_flush_at, created_at
		FROM launches
		WHERE launch_date = $1 AND status = 'approved'
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list launches by date: %w", err)
	}
	defer rows.Close()

	var launches []*model.Launch
	for rows.Next() {
		launch, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		launches = append(launches, launch)
	}

	return launches, nil
}

// ApplyVoteFlush reconciles a session's volatile tallies into the launch
// records as one transaction. A marker row per (session date, launch) gates
// each increment: replays after a crash between the durable write and the
// volatile cleanup find the marker and change nothing. Returns how many
// launches were newly applied.
func (r *LaunchRepository) ApplyVoteFlush(ctx context.Context, date datekey.DateKey, counts map[string]int64) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback(ctx)

	markerQuery := `
		INSERT INTO vote_flushes (session_date, launch_id, votes)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_date, launch_id) DO NOTHING
	`
	applyQuery := `
		UPDATE launches
		SET cumulative_votes = cumulative_votes + $1,
		    voting_ended = TRUE,
		    last_flush_at = now()
		WHERE id = $2
	`

	applied := 0
	for launchID, votes := range counts {
		tag, err := tx.Exec(ctx, markerQuery, date.Time(), launchID, votes)
		if err != nil {
			return 0, fmt.Errorf("insert flush marker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			continue // already flushed for this session
		}

		if _, err := tx.Exec(ctx, applyQuery, votes, launchID); err != nil {
			return 0, fmt.Errorf("apply flush for %s: %w", launchID, err)
		}
		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit flush: %w", err)
	}

	return applied, nil
}

func scanLaunch(row pgx.Row) (*model.Launch, error) {
	var launch model.Launch
	var launchDate *time.Time
	err := row.Scan(
		&launch.ID,
		&launch.Name,
		&launch.Status,
		&launchDate,
		&launch.VotingDurationHours,
		&launch.CumulativeVotes,
		&launch.VotingEnded,
		&launch.LastFlushAt,
		&launch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if launchDate != nil {
		key := datekey.FromTime(*launchDate)
		launch.LaunchDate = &key
	}

	return &launch, nil
}
