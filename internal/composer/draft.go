package composer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/citifix/backend/internal/models"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Draft is the user-entered part of a report.
type Draft struct {
	Title       string          `json:"title" validate:"max=100"`
	Description string          `json:"description" validate:"max=500"`
	Location    string          `json:"location"`
	Category    models.Category `json:"category" validate:"omitempty,category"`
	Priority    models.Priority `json:"priority" validate:"omitempty,priority"`
	ImageURL    string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewValidator returns a validator that knows the report enums.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.Priority(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the required fields in order and returns the first failure,
// then the length and enum bounds.
func Validate(v *validator.Validate, d Draft, fix *models.Coordinates) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description", Message: "Description is required"}
	}
	if strings.TrimSpace(d.Location) == "" && fix == nil {
		return &ValidationError{Field: "location", Message: "Location is required when current location is unavailable"}
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ValidationError{Field: "draft", Message: err.Error()}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "max":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())}
	case "category":
		return &ValidationError{Field: field, Message: fmt.Sprintf("Unknown category %q", fe.Value())}
	case "priority":
		return &ValidationError{Field: field, Message: fmt.Sprintf("Unknown priority %q", fe.Value())}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is invalid", fe.Field())}
	}
}

// IDGenerator hands out RPT-<millis> identifiers that never repeat, even
// when two reports are created within the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("RPT-%d", ms)
}
