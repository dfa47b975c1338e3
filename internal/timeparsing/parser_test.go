package timeparsing

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 5, 15, 10, 0, 0, 0, time.UTC)

func TestParseCompactDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"+6h", testNow.Add(6 * time.Hour)},
		{"-1d", testNow.AddDate(0, 0, -1)},
		{"+2w", testNow.AddDate(0, 0, 14)},
		{"3m", testNow.AddDate(0, 3, 0)},
		{"1y", testNow.AddDate(1, 0, 0)},
		{"-12h", testNow.Add(-12 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, testNow)
			if err != nil {
				t.Fatalf("ParseCompactDuration(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCompactDurationRejectsNonDurations(t *testing.T) {
	for _, input := range []string{"", "6", "h", "+h", "6x", "tomorrow", "6h30m", "+ 6h"} {
		if _, err := ParseCompactDuration(input, testNow); err == nil {
			t.Errorf("ParseCompactDuration(%q) should fail", input)
		}
	}
}

func TestIsCompactDuration(t *testing.T) {
	for _, input := range []string{"+6h", "-1d", "2w"} {
		if !IsCompactDuration(input) {
			t.Errorf("IsCompactDuration(%q) = false, want true", input)
		}
	}
	for _, input := range []string{"tomorrow", "2026-05-01", ""} {
		if IsCompactDuration(input) {
			t.Errorf("IsCompactDuration(%q) = true, want false", input)
		}
	}
}

func TestParseAbsolute(t *testing.T) {
	got, err := ParseAbsolute("2026-06-01T12:30:00Z", time.UTC)
	if err != nil {
		t.Fatalf("ParseAbsolute: %v", err)
	}
	want := time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseAbsolute = %v, want %v", got, want)
	}

	got, err = ParseAbsolute("2026-06-01", time.UTC)
	if err != nil {
		t.Fatalf("ParseAbsolute date-only: %v", err)
	}
	want = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseAbsolute date-only = %v, want %v", got, want)
	}

	if _, err := ParseAbsolute("not a date", time.UTC); err == nil {
		t.Error("ParseAbsolute should reject garbage")
	}
}

func TestParseNatural(t *testing.T) {
	got, err := ParseNatural("tomorrow", testNow)
	if err != nil {
		t.Fatalf("ParseNatural: %v", err)
	}
	if got.Day() != 16 || got.Month() != time.May {
		t.Errorf("ParseNatural(tomorrow) = %v, want May 16", got)
	}

	if _, err := ParseNatural("xyzzy", testNow); err == nil {
		t.Error("ParseNatural should reject non-time text")
	}
}

func TestParseLayering(t *testing.T) {
	// Compact duration takes precedence.
	got, err := Parse("+1d", testNow)
	if err != nil {
		t.Fatalf("Parse(+1d): %v", err)
	}
	if !got.Equal(testNow.AddDate(0, 0, 1)) {
		t.Errorf("Parse(+1d) = %v", got)
	}

	// Absolute dates hit layer 2.
	got, err = Parse("2026-07-04", testNow)
	if err != nil {
		t.Fatalf("Parse(2026-07-04): %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.July || got.Day() != 4 {
		t.Errorf("Parse(2026-07-04) = %v", got)
	}

	// Natural language hits layer 3.
	got, err = Parse("next monday", testNow)
	if err != nil {
		t.Fatalf("Parse(next monday): %v", err)
	}
	if got.Weekday() != time.Monday {
		t.Errorf("Parse(next monday) = %v, want a Monday", got)
	}

	if _, err := Parse("xyzzy", testNow); err == nil {
		t.Error("Parse should reject unrecognized expressions")
	}
}
