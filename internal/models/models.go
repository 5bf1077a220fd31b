package models

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryPothole         Category = "Pothole"
	CategoryTrafficSignal   Category = "Traffic Signal"
	CategoryRoadSign        Category = "Road Sign"
	CategoryStreetLight     Category = "Street Light"
	CategoryWasteManagement Category = "Waste Management"
	CategoryOther           Category = "Other"
)

var Categories = []Category{
	CategoryPothole,
	CategoryTrafficSignal,
	CategoryRoadSign,
	CategoryStreetLight,
	CategoryWasteManagement,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Status string

const (
	StatusReported   Status = "Reported"
	StatusInProgress Status = "In Progress"
	StatusFixed      Status = "Fixed"
	StatusRejected   Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusReported, StatusInProgress, StatusFixed, StatusRejected:
		return true
	}
	return false
}

// AnonymousUserID marks reports submitted without a resolved identity.
const AnonymousUserID = "anonymous"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is either a free-text address or a coordinate pair, never both.
type Location struct {
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

func AddressLocation(address string) Location {
	return Location{Address: strings.TrimSpace(address)}
}

func CoordinateLocation(c Coordinates) Location {
	return Location{Coordinates: &c}
}

func (l Location) IsZero() bool {
	return l.Coordinates == nil && strings.TrimSpace(l.Address) == ""
}

// String renders the location the way it is displayed and searched.
func (l Location) String() string {
	if l.Coordinates != nil {
		return fmt.Sprintf("%.6f, %.6f", l.Coordinates.Lat, l.Coordinates.Lng)
	}
	return l.Address
}

type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	Location    Location  `json:"location"`
	Reporter    string    `json:"reporter"`
	UserID      string    `json:"user_id"`
	Votes       int       `json:"votes"`
	ImageURL    string    `json:"image_url,omitempty"`
	Date        time.Time `json:"date"`
	UpdatedAt   time.Time `json:"updated_at"`
	// ResponseTime is a display hint carried by some listings ("2 days").
	ResponseTime string `json:"response_time,omitempty"`
}

type CategoryOption struct {
	Value           Category `json:"value"`
	Label           string   `json:"label"`
	Description     string   `json:"description"`
	Severity        Priority `json:"severity"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
}

type AnalysisResult struct {
	Category            string    `json:"category"`
	Confidence          float64   `json:"confidence"`
	OriginalConfidence  float64   `json:"original_confidence"`
	Severity            string    `json:"severity"`
	Description         string    `json:"description"`
	Recommendations     []string  `json:"recommendations"`
	Warnings            []string  `json:"warnings"`
	NeedsReview         bool      `json:"needs_review"`
	HumanReviewRequired bool      `json:"human_review_required"`
	IsManuallySelected  bool      `json:"is_manually_selected"`
	ImageURL            string    `json:"image_url,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

type UserProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	TotalProblems int `json:"total_problems"`
	FixedProblems int `json:"fixed_problems"`
	ActiveUsers   int `json:"active_users"`
	UserPoints    int `json:"user_points"`
}

// Identity is the authenticated user as reported by the auth provider.
type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// DisplayName falls back from full name to the email local part to "Anonymous User".
func (i *Identity) DisplayName() string {
	if i == nil {
		return "Anonymous User"
	}
	if name := strings.TrimSpace(i.FullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonymous User"
}

func (i *Identity) ID() string {
	if i == nil || i.UserID == "" {
		return AnonymousUserID
	}
	return i.UserID
}
