package db

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS problems (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	lat DOUBLE PRECISION,
	lng DOUBLE PRECISION,
	priority TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Reported',
	image_url TEXT,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL,
	votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS problems_created_at_idx ON problems (created_at DESC);
CREATE INDEX IF NOT EXISTS problems_user_id_idx ON problems (user_id);

CREATE TABLE IF NOT EXISTS user_profiles (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id TEXT NOT NULL UNIQUE,
	full_name TEXT,
	avatar_url TEXT,
	points INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION increment_votes(problem_id TEXT) RETURNS INTEGER AS $$
	UPDATE problems SET votes = votes + 1, updated_at = NOW() WHERE id = problem_id RETURNING votes;
$$ LANGUAGE sql;

CREATE OR REPLACE FUNCTION add_user_points(user_id TEXT, points INTEGER) RETURNS INTEGER AS $$
	UPDATE user_profiles SET points = user_profiles.points + add_user_points.points
	WHERE user_profiles.user_id = add_user_points.user_id RETURNING user_profiles.points;
$$ LANGUAGE sql;
`

// EnsureSchema creates the tables and functions when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}
