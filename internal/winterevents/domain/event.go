// Package domain defines the winter (storm) event model and the timestamp
// resolution rule that binds work records to storm windows.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a winter event.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// WinterEvent is a named operational window: one storm, one billing bucket.
// A nil EndDate means the storm is still ongoing.
type WinterEvent struct {
	ID        uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether t falls inside the event's window.
func (e *WinterEvent) Contains(t time.Time) bool {
	if t.Before(e.StartDate) {
		return false
	}
	return e.EndDate == nil || !t.After(*e.EndDate)
}

// ResolveEvent selects the event whose window contains t, preferring an
// active event over any other status and, within the same status rank, the
// most recent start date. Returns nil when no window contains t — a valid
// outcome, the record simply stays unbound.
func ResolveEvent(candidates []WinterEvent, t time.Time) *WinterEvent {
	var matches []WinterEvent
	for _, e := range candidates {
		if e.Contains(t) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		iActive := matches[i].Status == StatusActive
		jActive := matches[j].Status == StatusActive
		if iActive != jActive {
			return iActive
		}
		return matches[i].StartDate.After(matches[j].StartDate)
	})

	best := matches[0]
	return &best
}
