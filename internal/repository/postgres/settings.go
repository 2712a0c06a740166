package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
)

// GetSettings loads the singleton settings row.
func (r *Repository) GetSettings(ctx context.Context) (*domain.ServerSettings, error) {
	const query = `SELECT registration_limit, registration_open_time, force_closed,
		domain_window_open, game_open_time, puzzle_open_time, stop_the_bar_open_time,
		first_review_open, second_review_open, latest_event_update
		FROM server_settings WHERE singleton = 'main'`
	var s domain.ServerSettings
	err := r.pool.QueryRow(ctx, query).Scan(&s.RegistrationLimit, &s.RegistrationOpenTime,
		&s.ForceClosed, &s.DomainWindowOpen, &s.GameOpenTime, &s.PuzzleOpenTime,
		&s.StopTheBarOpenTime, &s.FirstReviewOpen, &s.SecondReviewOpen, &s.LatestEventUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SaveSettings upserts the singleton settings row.
func (r *Repository) SaveSettings(ctx context.Context, s *domain.ServerSettings) error {
	const query = `INSERT INTO server_settings (singleton, registration_limit, registration_open_time,
		force_closed, domain_window_open, game_open_time, puzzle_open_time,
		stop_the_bar_open_time, first_review_open, second_review_open, latest_event_update)
		VALUES ('main', $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (singleton) DO UPDATE SET
			registration_limit = EXCLUDED.registration_limit,
			registration_open_time = EXCLUDED.registration_open_time,
			force_closed = EXCLUDED.force_closed,
			domain_window_open = EXCLUDED.domain_window_open,
			game_open_time = EXCLUDED.game_open_time,
			puzzle_open_time = EXCLUDED.puzzle_open_time,
			stop_the_bar_open_time = EXCLUDED.stop_the_bar_open_time,
			first_review_open = EXCLUDED.first_review_open,
			second_review_open = EXCLUDED.second_review_open,
			latest_event_update = EXCLUDED.latest_event_update`
	_, err := r.pool.Exec(ctx, query, s.RegistrationLimit, s.RegistrationOpenTime, s.ForceClosed,
		s.DomainWindowOpen, s.GameOpenTime, s.PuzzleOpenTime, s.StopTheBarOpenTime,
		s.FirstReviewOpen, s.SecondReviewOpen, s.LatestEventUpdate)
	return err
}

// InsertReminder stores a broadcast notice.
func (r *Repository) InsertReminder(ctx context.Context, reminder *domain.Reminder) error {
	const query = `INSERT INTO reminders (id, message, created_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, reminder.ID, reminder.Message, reminder.CreatedAt)
	return err
}

// ListReminders returns the most recent notices, newest first.
func (r *Repository) ListReminders(ctx context.Context, limit int) ([]domain.Reminder, error) {
	const query = `SELECT id, message, created_at FROM reminders ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var reminder domain.Reminder
		if err := rows.Scan(&reminder.ID, &reminder.Message, &reminder.CreatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

// InsertSlideDeck stores an uploaded presentation template.
func (r *Repository) InsertSlideDeck(ctx context.Context, deck *domain.SlideDeck) error {
	const query = `INSERT INTO slide_decks (id, file_name, file_url, uploaded_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, deck.ID, deck.FileName, deck.FileURL, deck.UploadedAt)
	return err
}

// LatestSlideDeck returns the newest uploaded template.
func (r *Repository) LatestSlideDeck(ctx context.Context) (*domain.SlideDeck, error) {
	const query = `SELECT id, file_name, file_url, uploaded_at FROM slide_decks
		ORDER BY uploaded_at DESC LIMIT 1`
	var deck domain.SlideDeck
	if err := r.pool.QueryRow(ctx, query).Scan(&deck.ID, &deck.FileName, &deck.FileURL, &deck.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &deck, nil
}
