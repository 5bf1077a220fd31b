package models

import "testing"

func TestLocationString(t *testing.T) {
	loc := CoordinateLocation(Coordinates{Lat: 51.1605, Lng: 71.4704})
	if got := loc.String(); got != "51.160500, 71.470400" {
		t.Fatalf("unexpected coordinates text: %s", got)
	}
	if got := AddressLocation("  123 Main St ").String(); got != "123 Main St" {
		t.Fatalf("unexpected address text: %q", got)
	}
	if !AddressLocation("   ").IsZero() {
		t.Fatalf("expected blank address to be zero")
	}
}

func TestIdentityDisplayNameFallbacks(t *testing.T) {
	var nilIdentity *Identity
	if nilIdentity.DisplayName() != "Anonymous User" || nilIdentity.ID() != AnonymousUserID {
		t.Fatalf("expected anonymous fallbacks for nil identity")
	}
	id := &Identity{UserID: "u1", Email: "jane@example.com"}
	if id.DisplayName() != "jane" {
		t.Fatalf("expected email local part, got %s", id.DisplayName())
	}
	id.FullName = "Jane Doe"
	if id.DisplayName() != "Jane Doe" {
		t.Fatalf("expected full name, got %s", id.DisplayName())
	}
}

func TestEnumsValid(t *testing.T) {
	if !Category("Road Sign").Valid() || Category("Graffiti").Valid() {
		t.Fatalf("category membership is wrong")
	}
	if !Status("In Progress").Valid() || Status("Closed").Valid() {
		t.Fatalf("status membership is wrong")
	}
	if !PriorityHigh.Valid() || Priority("Urgent").Valid() {
		t.Fatalf("priority membership is wrong")
	}
}
