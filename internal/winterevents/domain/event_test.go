package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func event(status Status, start time.Time, end *time.Time) WinterEvent {
	return WinterEvent{ID: uuid.New(), StartDate: start, EndDate: end, Status: status}
}

func TestResolveEventPrefersActive(t *testing.T) {
	day := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	older := event(StatusActive, day, nil)
	newer := event(StatusCompleted, day.Add(6*time.Hour), nil)

	got := ResolveEvent([]WinterEvent{newer, older}, day.Add(12*time.Hour))
	if got == nil || got.ID != older.ID {
		t.Fatalf("active event should win over a later-starting completed one")
	}
}

func TestResolveEventLatestStartAmongEqualRank(t *testing.T) {
	day := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	earlier := event(StatusCompleted, day, nil)
	later := event(StatusCompleted, day.Add(6*time.Hour), nil)

	got := ResolveEvent([]WinterEvent{earlier, later}, day.Add(12*time.Hour))
	if got == nil || got.ID != later.ID {
		t.Fatalf("later start date should win among same-status events")
	}
}

func TestResolveEventRespectsWindow(t *testing.T) {
	start := time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	closed := event(StatusCompleted, start, &end)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", start.Add(-time.Minute), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after end", end.Add(time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveEvent([]WinterEvent{closed}, tc.at)
			if (got != nil) != tc.want {
				t.Fatalf("ResolveEvent at %v: matched=%v, want %v", tc.at, got != nil, tc.want)
			}
		})
	}
}

func TestResolveEventNoMatchReturnsNil(t *testing.T) {
	start := time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC)
	ongoing := event(StatusActive, start, nil)

	if got := ResolveEvent([]WinterEvent{ongoing}, start.Add(-time.Hour)); got != nil {
		t.Fatalf("timestamp before any window must resolve to nil, got %v", got.ID)
	}
	if got := ResolveEvent(nil, start); got != nil {
		t.Fatalf("empty candidate set must resolve to nil")
	}
}

func TestResolveEventOngoingWindow(t *testing.T) {
	start := time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC)
	ongoing := event(StatusActive, start, nil)

	got := ResolveEvent([]WinterEvent{ongoing}, start.Add(90*24*time.Hour))
	if got == nil || got.ID != ongoing.ID {
		t.Fatalf("nil end date means the window is open-ended")
	}
}
