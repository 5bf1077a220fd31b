package db

import (
	"context"
	"errors"

	"github.com/citifix/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

// DefaultListLimit bounds ListProblems when no limit is given.
const DefaultListLimit = 50

// ProblemUpdate carries the mutable columns of a problem row. Nil fields are left alone.
type ProblemUpdate struct {
	Title       *string
	Description *string
	Status      *models.Status
}

// Repository is the tabular storage behind reports and user profiles.
type Repository interface {
	CreateProblem(ctx context.Context, r models.Report) (models.Report, error)
	GetProblem(ctx context.Context, id string) (models.Report, error)
	ListProblems(ctx context.Context, limit int) ([]models.Report, error)
	ListProblemsByUser(ctx context.Context, userID string) ([]models.Report, error)
	UpdateProblem(ctx context.Context, id string, upd ProblemUpdate) (models.Report, error)
	DeleteProblem(ctx context.Context, id string) error
	IncrementVotes(ctx context.Context, id string) (int, error)

	CreateUserProfile(ctx context.Context, userID, fullName string) (models.UserProfile, error)
	GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error)
	AddUserPoints(ctx context.Context, userID string, points int) (int, error)

	Stats(ctx context.Context) (models.Stats, error)
	Ping(ctx context.Context) error
}
