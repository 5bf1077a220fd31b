package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), Event{Type: ReportCreated, ReportID: "RPT-1"})
	_ = r.Publish(context.Background(), Event{Type: ReportStatus, ReportID: "RPT-1", Status: "Fixed"})
	got := r.Events()
	if len(got) != 2 || got[0].Type != ReportCreated || got[1].Status != "Fixed" {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestNATSUnreachableFailsFast(t *testing.T) {
	p, err := NewNATSPublisher("nats://127.0.0.1:1", NATSOptions{ConnectTimeout: 200 * time.Millisecond, Logger: zerolog.Nop()})
	if err == nil {
		p.Close()
		t.Fatalf("expected connect error for an unreachable server")
	}
}

func TestNATSIntegration(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	p, err := NewNATSPublisher(url, NATSOptions{SubjectPrefix: "citifix-test-" + uuid.NewString(), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Event, 1)
	if err := p.Subscribe(ctx, ReportModerated, func(_ context.Context, ev Event) error {
		got <- ev
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := p.Publish(ctx, Event{Type: ReportModerated, ReportID: "RPT-9", Status: "Fixed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case ev := <-got:
		if ev.ReportID != "RPT-9" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}
