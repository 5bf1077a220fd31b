package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citifix/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const problemColumns = `id, title, description, category, location, lat, lng, priority, status, image_url, user_id, user_name, votes, created_at, updated_at`

func (s *Store) CreateProblem(ctx context.Context, r models.Report) (models.Report, error) {
	var lat, lng *float64
	if c := r.Location.Coordinates; c != nil {
		lat, lng = &c.Lat, &c.Lng
	}
	var imageURL *string
	if r.ImageURL != "" {
		imageURL = &r.ImageURL
	}
	createdAt := r.Date
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO problems (id, title, description, category, location, lat, lng, priority, status, image_url, user_id, user_name, votes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,0,$13,$13)
		RETURNING `+problemColumns,
		r.ID, r.Title, r.Description, r.Category, r.Location.String(), lat, lng, r.Priority, r.Status, imageURL, r.UserID, r.Reporter, createdAt)
	return scanProblem(row)
}

func (s *Store) GetProblem(ctx context.Context, id string) (models.Report, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id)
	return scanProblem(row)
}

func (s *Store) ListProblems(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+problemColumns+` FROM problems ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectProblems(rows)
}

func (s *Store) ListProblemsByUser(ctx context.Context, userID string) ([]models.Report, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+problemColumns+` FROM problems WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectProblems(rows)
}

func (s *Store) UpdateProblem(ctx context.Context, id string, upd ProblemUpdate) (models.Report, error) {
	var args []any
	sets := []string{"updated_at = NOW()"}
	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, *upd.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if upd.Status != nil {
		args = append(args, string(*upd.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, id)
	query := `UPDATE problems SET ` + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d RETURNING ", len(args)) + problemColumns
	return scanProblem(s.Pool.QueryRow(ctx, query, args...))
}

func (s *Store) DeleteProblem(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IncrementVotes(ctx context.Context, id string) (int, error) {
	var votes *int
	if err := s.Pool.QueryRow(ctx, `SELECT increment_votes($1)`, id).Scan(&votes); err != nil {
		return 0, err
	}
	if votes == nil {
		return 0, ErrNotFound
	}
	return *votes, nil
}

func (s *Store) CreateUserProfile(ctx context.Context, userID, fullName string) (models.UserProfile, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, full_name, points)
		VALUES ($1, $2, 0)
		RETURNING id::text, user_id, full_name, avatar_url, points, created_at
	`, userID, fullName)
	return scanProfile(row)
}

func (s *Store) GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id::text, user_id, full_name, avatar_url, points, created_at FROM user_profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func (s *Store) AddUserPoints(ctx context.Context, userID string, points int) (int, error) {
	var total *int
	if err := s.Pool.QueryRow(ctx, `SELECT add_user_points($1, $2)`, userID, points).Scan(&total); err != nil {
		return 0, err
	}
	if total == nil {
		return 0, ErrNotFound
	}
	return *total, nil
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := s.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM problems),
			(SELECT COUNT(*) FROM problems WHERE status = 'Fixed'),
			(SELECT COUNT(*) FROM user_profiles)
	`).Scan(&st.TotalProblems, &st.FixedProblems, &st.ActiveUsers)
	return st, err
}

func collectProblems(rows pgx.Rows) ([]models.Report, error) {
	defer rows.Close()
	var out []models.Report
	for rows.Next() {
		r, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanProblem(row pgx.Row) (models.Report, error) {
	var (
		r        models.Report
		location string
		lat, lng *float64
		imageURL *string
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Category, &location, &lat, &lng, &r.Priority, &r.Status, &imageURL, &r.UserID, &r.Reporter, &r.Votes, &r.Date, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Report{}, ErrNotFound
		}
		return models.Report{}, err
	}
	if lat != nil && lng != nil {
		r.Location = models.CoordinateLocation(models.Coordinates{Lat: *lat, Lng: *lng})
	} else {
		r.Location = models.AddressLocation(location)
	}
	if imageURL != nil {
		r.ImageURL = *imageURL
	}
	return r, nil
}

func scanProfile(row pgx.Row) (models.UserProfile, error) {
	var (
		p         models.UserProfile
		fullName  *string
		avatarURL *string
	)
	if err := row.Scan(&p.ID, &p.UserID, &fullName, &avatarURL, &p.Points, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserProfile{}, ErrNotFound
		}
		return models.UserProfile{}, err
	}
	if fullName != nil {
		p.FullName = *fullName
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	return p, nil
}

var _ Repository = (*Store)(nil)
