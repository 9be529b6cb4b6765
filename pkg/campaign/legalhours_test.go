package campaign

import (
	"testing"
	"time"

	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
)

func TestWithinLegalHours_NoConfiguredWindowsAlwaysOpen(t *testing.T) {
	now := time.Date(2026, 7, 29, 3, 0, 0, 0, time.UTC) // Wednesday, 3am
	if !WithinLegalHours(now, nil) {
		t.Fatal("expected no configured windows to mean always open")
	}
}

func TestWithinLegalHours_WeekdayNotConfiguredIsClosed(t *testing.T) {
	windows := map[time.Weekday][]persistenceiface.LegalHoursWindow{
		time.Monday: {{Start: "09:00", End: "17:00"}},
	}
	wednesday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	if WithinLegalHours(wednesday, windows) {
		t.Fatal("expected an unconfigured weekday to be closed")
	}
}

func TestWithinLegalHours_InsideAndOutsideWindow(t *testing.T) {
	windows := map[time.Weekday][]persistenceiface.LegalHoursWindow{
		time.Wednesday: {{Start: "09:00", End: "17:00"}},
	}
	inside := time.Date(2026, 7, 29, 12, 30, 0, 0, time.UTC)
	if !WithinLegalHours(inside, windows) {
		t.Fatal("expected 12:30 to be inside a 09:00-17:00 window")
	}
	outside := time.Date(2026, 7, 29, 20, 0, 0, 0, time.UTC)
	if WithinLegalHours(outside, windows) {
		t.Fatal("expected 20:00 to be outside a 09:00-17:00 window")
	}
}

func TestWithinLegalHours_BoundaryInclusive(t *testing.T) {
	windows := map[time.Weekday][]persistenceiface.LegalHoursWindow{
		time.Wednesday: {{Start: "09:00", End: "17:00"}},
	}
	atStart := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	atEnd := time.Date(2026, 7, 29, 17, 0, 0, 0, time.UTC)
	if !WithinLegalHours(atStart, windows) {
		t.Fatal("expected the window start to be inclusive")
	}
	if !WithinLegalHours(atEnd, windows) {
		t.Fatal("expected the window end to be inclusive")
	}
}

func TestWithinLegalHours_MultipleWindowsSameDay(t *testing.T) {
	windows := map[time.Weekday][]persistenceiface.LegalHoursWindow{
		time.Wednesday: {
			{Start: "09:00", End: "12:00"},
			{Start: "14:00", End: "18:00"},
		},
	}
	lunchBreak := time.Date(2026, 7, 29, 13, 0, 0, 0, time.UTC)
	if WithinLegalHours(lunchBreak, windows) {
		t.Fatal("expected the gap between windows to be closed")
	}
	afternoon := time.Date(2026, 7, 29, 15, 0, 0, 0, time.UTC)
	if !WithinLegalHours(afternoon, windows) {
		t.Fatal("expected the afternoon window to be open")
	}
}
