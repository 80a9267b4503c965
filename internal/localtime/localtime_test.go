package localtime

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	// 2024-03-01 21:30 UTC is 4:30 PM in New York (EST, UTC-5).
	instant := time.Date(2024, 3, 1, 21, 30, 0, 0, time.UTC)

	got, err := Clock(instant, "America/New_York")
	if err != nil {
		t.Fatalf("Clock failed: %v", err)
	}
	if got != "4:30 PM" {
		t.Errorf("Expected 4:30 PM, got %q", got)
	}
}

func TestClockInvalidZone(t *testing.T) {
	_, err := Clock(time.Now(), "Mars/Olympus_Mons")
	if err == nil {
		t.Fatal("Expected error for invalid timezone, got nil")
	}
}

func TestCalendarDate(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		zone string
		want string
	}{
		{
			name: "ordinal st",
			t:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			zone: "UTC",
			want: "Friday - March 1st, 2024",
		},
		{
			name: "ordinal nd",
			t:    time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC),
			zone: "UTC",
			want: "Monday - April 22nd, 2024",
		},
		{
			name: "ordinal rd",
			t:    time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC),
			zone: "UTC",
			want: "Friday - May 3rd, 2024",
		},
		{
			name: "teens use th",
			t:    time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC),
			zone: "UTC",
			want: "Tuesday - June 11th, 2024",
		},
		{
			name: "zone shifts calendar date",
			// Just before midnight UTC is already the next day in Tokyo.
			t:    time.Date(2024, 7, 31, 23, 0, 0, 0, time.UTC),
			zone: "Asia/Tokyo",
			want: "Thursday - August 1st, 2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalendarDate(tt.t, tt.zone)
			if err != nil {
				t.Fatalf("CalendarDate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSameCalendarDay(t *testing.T) {
	morning := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)

	same, err := SameCalendarDay(morning, evening, "UTC")
	if err != nil {
		t.Fatalf("SameCalendarDay failed: %v", err)
	}
	if !same {
		t.Error("Expected same calendar day in UTC")
	}

	// 22:00 UTC is already March 2nd in Tokyo while 08:00 UTC is not.
	same, err = SameCalendarDay(morning, evening, "Asia/Tokyo")
	if err != nil {
		t.Fatalf("SameCalendarDay failed: %v", err)
	}
	if same {
		t.Error("Expected different calendar days in Asia/Tokyo")
	}
}
