package domain

import (
	"testing"
	"time"
)

func TestSnap(t *testing.T) {
	base := time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		minute int
		second int
		want   time.Time
	}{
		{"on boundary stays", 0, 0, base},
		{"just after rounds down", 3, 12, base},
		{"just before quarter rounds up", 13, 0, base.Add(15 * time.Minute)},
		{"midpoint rounds up", 7, 30, base.Add(15 * time.Minute)},
		{"just under midpoint rounds down", 7, 29, base},
		{"late in hour rounds to next hour", 55, 0, base.Add(time.Hour)},
		{"midpoint before hour rounds up", 52, 30, base.Add(time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base.Add(time.Duration(tc.minute)*time.Minute + time.Duration(tc.second)*time.Second)
			got := Snap(in)
			if !got.Equal(tc.want) {
				t.Fatalf("Snap(%v) = %v, want %v", in, got, tc.want)
			}
		})
	}
}

func TestSnapIdempotent(t *testing.T) {
	in := time.Date(2026, 2, 3, 22, 41, 17, 0, time.UTC)
	once := Snap(in)
	twice := Snap(once)
	if !once.Equal(twice) {
		t.Fatalf("snap not idempotent: %v vs %v", once, twice)
	}
}
