package classifier

import (
	"fmt"

	"github.com/citifix/backend/internal/models"
)

var catalog = []models.CategoryOption{
	{
		Value:       models.CategoryPothole,
		Label:       "Pothole / Road Damage",
		Description: "Road surface damage, cracks, holes, or deterioration detected",
		Severity:    models.PriorityHigh,
		Confidence:  0.85,
		Recommendations: []string{
			"Report to highway maintenance department",
			"Mark area for temporary safety measures",
			"Monitor for worsening conditions",
		},
	},
	{
		Value:       models.CategoryTrafficSignal,
		Label:       "Traffic Signal / Traffic Light",
		Description: "Traffic light or signal control equipment detected",
		Severity:    models.PriorityMedium,
		Confidence:  0.82,
		Recommendations: []string{
			"Report signal malfunction to traffic department",
			"Monitor for proper operation during peak hours",
			"Document timing and light sequence issues",
		},
	},
	{
		Value:       models.CategoryRoadSign,
		Label:       "Road Sign / Warning Sign",
		Description: "Road signage, warning signs, or directional markers detected",
		Severity:    models.PriorityMedium,
		Confidence:  0.78,
		Recommendations: []string{
			"Report damaged or obscured signage",
			"Check for proper visibility and positioning",
			"Ensure sign meets visibility standards",
		},
	},
	{
		Value:       models.CategoryStreetLight,
		Label:       "Street Light / Lighting",
		Description: "Street lighting infrastructure or lamp posts detected",
		Severity:    models.PriorityLow,
		Confidence:  0.75,
		Recommendations: []string{
			"Report lighting outages to utilities department",
			"Check for proper illumination levels",
			"Schedule maintenance if flickering",
		},
	},
	{
		Value:       models.CategoryWasteManagement,
		Label:       "Waste / Garbage Issue",
		Description: "Waste collection, disposal, or litter issues detected",
		Severity:    models.PriorityMedium,
		Confidence:  0.73,
		Recommendations: []string{
			"Contact waste management services",
			"Report overflowing containers",
			"Schedule additional pickup if needed",
		},
	},
	{
		Value:       models.CategoryOther,
		Label:       "Other Infrastructure Issue",
		Description: "General infrastructure or maintenance issue detected",
		Severity:    models.PriorityLow,
		Confidence:  0.65,
		Recommendations: []string{
			"Report to appropriate city department",
			"Monitor for changes in condition",
			"Take additional photos if needed",
		},
	},
}

// Catalog returns a copy of the fixed category options in display order.
func Catalog() []models.CategoryOption {
	out := make([]models.CategoryOption, len(catalog))
	for i, opt := range catalog {
		opt.Recommendations = append([]string(nil), opt.Recommendations...)
		out[i] = opt
	}
	return out
}

func ValidateCatalog(options []models.CategoryOption) error {
	seen := map[models.Category]struct{}{}
	for _, opt := range options {
		if _, ok := seen[opt.Value]; ok {
			return fmt.Errorf("duplicate category option %q", opt.Value)
		}
		if opt.Confidence < 0 || opt.Confidence > 1 {
			return fmt.Errorf("category option %q confidence %.2f out of range", opt.Value, opt.Confidence)
		}
		seen[opt.Value] = struct{}{}
	}
	return nil
}
