package model

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ReservationStatus }{
		{StatusPendingPayment, StatusConfirmed},
		{StatusPendingPayment, StatusCancelled},
		{StatusConfirmed, StatusFinalized},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusInProgress},
		{StatusInProgress, StatusFinalized},
		{StatusInProgress, StatusCancelled},
		// Self transitions keep webhook replays idempotent.
		{StatusConfirmed, StatusConfirmed},
		{StatusCancelled, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to ReservationStatus }{
		{StatusConfirmed, StatusPendingPayment},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusPendingPayment},
		{StatusFinalized, StatusCancelled},
		{StatusFinalized, StatusConfirmed},
		{StatusPendingPayment, StatusFinalized},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be forbidden", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []ReservationStatus{StatusFinalized, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []ReservationStatus{StatusPendingPayment, StatusConfirmed, StatusInProgress} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestNightCount(t *testing.T) {
	base := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"same day", base, base, 1},
		{"one night", base, base.AddDate(0, 0, 1), 1},
		{"two nights", base, base.AddDate(0, 0, 2), 2},
		{"partial day rounds up", base, base.Add(36 * time.Hour), 2},
		{"end before start floors to one", base, base.AddDate(0, 0, -1), 1},
	}
	for _, tc := range cases {
		if got := NightCount(tc.start, tc.end); got != tc.want {
			t.Fatalf("%s: NightCount = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestTypePredicates(t *testing.T) {
	if !TypeDayUse.Exclusive() || !TypeCombined.Exclusive() {
		t.Fatal("day-use types must be exclusive")
	}
	if TypeCabin.Exclusive() || TypeBaptism.Exclusive() {
		t.Fatal("cabin and baptism must not be exclusive")
	}
	if !TypeCabin.UsesCabins() || !TypeCombined.UsesCabins() {
		t.Fatal("cabin-bearing types must consume cabin capacity")
	}
	if TypeDayUse.UsesCabins() || TypeBaptism.UsesCabins() {
		t.Fatal("non-cabin types must not consume cabin capacity")
	}
	if ReservationType("SPA_DAY").Valid() {
		t.Fatal("unknown type reported valid")
	}
}
