package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func candidates(names ...string) []PropertyCandidate {
	out := make([]PropertyCandidate, len(names))
	for i, name := range names {
		out[i] = PropertyCandidate{ID: uuid.New(), Name: name}
	}
	return out
}

func TestSelectByIndex(t *testing.T) {
	list := candidates("Depot Plaza", "Mill Creek Office", "Harbor Warehouse")

	if got := Select(list, "2"); got == nil || got.Name != "Mill Creek Office" {
		t.Fatalf("Select(2) = %v", got)
	}
	if got := Select(list, " 1 "); got == nil || got.Name != "Depot Plaza" {
		t.Fatalf("Select(1 with spaces) = %v", got)
	}
	if got := Select(list, "0"); got != nil {
		t.Fatalf("Select(0) = %v, want nil", got)
	}
	if got := Select(list, "4"); got != nil {
		t.Fatalf("Select(4) = %v, want nil", got)
	}
}

func TestSelectBySubstring(t *testing.T) {
	list := candidates("Depot Plaza", "Mill Creek Office", "Harbor Warehouse")

	if got := Select(list, "mill creek"); got == nil || got.Name != "Mill Creek Office" {
		t.Fatalf("Select(mill creek) = %v", got)
	}
	if got := Select(list, "HARBOR"); got == nil || got.Name != "Harbor Warehouse" {
		t.Fatalf("Select(HARBOR) = %v", got)
	}
	if got := Select(list, "airport"); got != nil {
		t.Fatalf("Select(airport) = %v, want nil", got)
	}
	if got := Select(list, ""); got != nil {
		t.Fatalf("Select(empty) = %v, want nil", got)
	}
}

func TestSelectionContextExpiry(t *testing.T) {
	opened := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	sel := SelectionContext{OpenedAt: opened}
	ttl := 30 * time.Minute

	if sel.Expired(opened.Add(29*time.Minute), ttl) {
		t.Fatal("selection expired before TTL")
	}
	if !sel.Expired(opened.Add(31*time.Minute), ttl) {
		t.Fatal("selection still valid after TTL")
	}
}
