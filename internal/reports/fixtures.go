package reports

import (
	"context"
	"time"

	"github.com/citifix/backend/internal/models"
)

// Fixtures returns the demo listing used in development mode.
func Fixtures() []models.Report {
	return []models.Report{
		{
			ID:           "RPT-001",
			Title:        "Large pothole on Main Street",
			Category:     models.CategoryPothole,
			Location:     models.AddressLocation("123 Main St, Downtown"),
			Status:       models.StatusInProgress,
			Date:         mustTime("2025-01-15T10:30:00Z"),
			Reporter:     "John D.",
			Description:  "Deep pothole causing damage to vehicles. Located near the traffic light intersection.",
			Priority:     models.PriorityHigh,
			Votes:        23,
			ResponseTime: "2 days",
		},
		{
			ID:          "RPT-002",
			Title:       "Broken street light",
			Category:    models.CategoryStreetLight,
			Location:    models.AddressLocation("456 Oak Ave, Residential"),
			Status:      models.StatusReported,
			Date:        mustTime("2025-01-14T08:15:00Z"),
			Reporter:    "Sarah M.",
			Description: "Street light has been flickering for weeks and now completely dark, making area unsafe.",
			Priority:    models.PriorityMedium,
			Votes:       8,
		},
		{
			ID:           "RPT-003",
			Title:        "Overflowing trash bins",
			Category:     models.CategoryWasteManagement,
			Location:     models.AddressLocation("Central Park Entrance"),
			Status:       models.StatusFixed,
			Date:         mustTime("2025-01-12T14:20:00Z"),
			Reporter:     "Mike R.",
			Description:  "Multiple trash bins overflowing for days, attracting pests and creating unsanitary conditions.",
			Priority:     models.PriorityMedium,
			Votes:        15,
			ResponseTime: "1 day",
		},
		{
			ID:           "RPT-004",
			Title:        "Damaged stop sign",
			Category:     models.CategoryRoadSign,
			Location:     models.AddressLocation("789 Pine St & 2nd Ave"),
			Status:       models.StatusInProgress,
			Date:         mustTime("2025-01-13T11:45:00Z"),
			Reporter:     "Lisa K.",
			Description:  "Stop sign is bent and partially obscured by tree branches, creating safety hazard.",
			Priority:     models.PriorityHigh,
			Votes:        31,
			ResponseTime: "3 days",
		},
		{
			ID:           "RPT-005",
			Title:        "Malfunctioning traffic signal",
			Category:     models.CategoryTrafficSignal,
			Location:     models.AddressLocation("Intersection of 1st & Broadway"),
			Status:       models.StatusFixed,
			Date:         mustTime("2025-01-10T16:00:00Z"),
			Reporter:     "David L.",
			Description:  "Traffic light stuck on red for northbound traffic, causing major delays.",
			Priority:     models.PriorityHigh,
			Votes:        42,
			ResponseTime: "4 hours",
		},
	}
}

func mustTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(err)
	}
	return t
}

// WithFixtures appends the demo listing after whatever src returns.
func WithFixtures(src Source) Source {
	return SourceFunc(func(ctx context.Context) ([]models.Report, error) {
		var out []models.Report
		if src != nil {
			fetched, err := src.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, fetched...)
		}
		return append(out, Fixtures()...), nil
	})
}

// IsFixture reports whether id belongs to the demo listing.
func IsFixture(id string) bool {
	for _, r := range Fixtures() {
		if r.ID == id {
			return true
		}
	}
	return false
}
