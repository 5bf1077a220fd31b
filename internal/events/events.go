package events

import (
	"context"
	"sync"
	"time"

	"github.com/citifix/backend/internal/models"
)

type Type string

const (
	ReportCreated Type = "report.created"
	ReportStatus  Type = "report.status"
	ReportDeleted Type = "report.deleted"
	// ReportModerated is published by the moderation process when it decides a status.
	ReportModerated Type = "report.moderated"
)

type Event struct {
	Type     Type           `json:"type"`
	ReportID string         `json:"report_id"`
	Status   models.Status  `json:"status,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
	Report   *models.Report `json:"report,omitempty"`
	At       time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when NATS_URL is empty.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
