package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/citifix/backend/internal/models"
)

var ErrUnknownCategory = errors.New("unknown category")

// Analyzer is what the analysis endpoints depend on.
type Analyzer interface {
	Analyze(ctx context.Context) (models.AnalysisResult, error)
	Select(value string) (models.AnalysisResult, error)
	Options() []models.CategoryOption
}

// Manual presents the catalog for a human choice. There is no inference step:
// Analyze only waits Delay and returns a result that asks for review.
type Manual struct {
	Delay time.Duration
	Now   func() time.Time

	options []models.CategoryOption
}

func NewManual(delay time.Duration) *Manual {
	return &Manual{Delay: delay, options: Catalog()}
}

func (m *Manual) Options() []models.CategoryOption {
	if m.options == nil {
		m.options = Catalog()
	}
	return m.options
}

func (m *Manual) Analyze(ctx context.Context) (models.AnalysisResult, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.AnalysisResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	return models.AnalysisResult{
		Category:            "Analyzing...",
		Severity:            "Unknown",
		Description:         "Please select the category that best matches your uploaded image.",
		Recommendations:     []string{"Choose the appropriate category from the options below"},
		Warnings:            []string{},
		NeedsReview:         true,
		HumanReviewRequired: true,
		Timestamp:           m.now(),
	}, nil
}

func (m *Manual) Select(value string) (models.AnalysisResult, error) {
	for _, opt := range m.Options() {
		if string(opt.Value) != value {
			continue
		}
		return models.AnalysisResult{
			Category:            string(opt.Value),
			Confidence:          opt.Confidence,
			OriginalConfidence:  opt.Confidence,
			Severity:            string(opt.Severity),
			Description:         opt.Description,
			Recommendations:     append([]string(nil), opt.Recommendations...),
			Warnings:            []string{},
			NeedsReview:         false,
			HumanReviewRequired: false,
			IsManuallySelected:  true,
			Timestamp:           m.now(),
		}, nil
	}
	return models.AnalysisResult{}, ErrUnknownCategory
}

func (m *Manual) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}
