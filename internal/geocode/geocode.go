package geocode

import (
	"context"
	"errors"

	"github.com/citifix/backend/internal/models"
)

var (
	ErrNotFound           = errors.New("geocode not found")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Place describes a geolocation fix for display.
type Place struct {
	Coordinates models.Coordinates `json:"coordinates"`
	// Label is the fixed-precision coordinate text stored on reports.
	Label string `json:"label"`
	// AreaLabel is the human readable address, empty when unknown.
	AreaLabel string `json:"area_label,omitempty"`
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, c models.Coordinates) (Place, error)
}

func ValidCoordinates(c models.Coordinates) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Describe labels c and, when a geocoder is available, attaches the nearest
// address. Geocoder failures leave AreaLabel empty.
func Describe(ctx context.Context, g ReverseGeocoder, c models.Coordinates) (Place, error) {
	if !ValidCoordinates(c) {
		return Place{}, ErrInvalidCoordinates
	}
	place := Place{Coordinates: c, Label: models.CoordinateLocation(c).String()}
	if g == nil {
		return place, nil
	}
	found, err := g.Reverse(ctx, c)
	if err != nil {
		return place, err
	}
	place.AreaLabel = found.AreaLabel
	return place, nil
}
