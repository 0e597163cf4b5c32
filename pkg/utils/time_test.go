package utils

import (
	"testing"
	"time"
)

func TestGetDayStartFrom(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "middle of day",
			input:    time.Date(2024, 1, 15, 14, 30, 45, 123456789, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "start of day",
			input:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "end of day",
			input:    time.Date(2024, 1, 15, 23, 59, 59, 999999999, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "non-UTC input",
			input:    time.Date(2024, 1, 16, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetDayStartFrom(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("GetDayStartFrom(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetWeekStartFrom(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "wednesday",
			input:    time.Date(2024, 1, 17, 14, 30, 45, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "monday",
			input:    time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "sunday",
			input:    time.Date(2024, 1, 21, 14, 30, 45, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "week spanning months",
			input:    time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetWeekStartFrom(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("GetWeekStartFrom(%v) = %v, want %v", tt.input, result, tt.expected)
			}
			if result.Weekday() != time.Monday {
				t.Errorf("GetWeekStartFrom(%v) returned %v, expected Monday", tt.input, result.Weekday())
			}
		})
	}
}

func TestGetMonthStartFrom(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "middle of month",
			input:    time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC),
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "first day of month",
			input:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "february leap year",
			input:    time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetMonthStartFrom(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("GetMonthStartFrom(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLookbackFrom(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tr := LookbackFrom(now, 365)

	if !tr.End.Equal(now) {
		t.Errorf("End = %v, want %v", tr.End, now)
	}
	want := time.Date(2023, 3, 11, 12, 0, 0, 0, time.UTC)
	if !tr.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", tr.Start, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{45 * time.Second, "45s"},
		{5*time.Minute + 30*time.Second + 400*time.Millisecond, "5m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m0s"},
		{0, "0s"},
		{-5 * time.Minute, "5m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := FormatDuration(tt.input); result != tt.expected {
				t.Errorf("FormatDuration(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func BenchmarkGetWeekStartFrom(b *testing.B) {
	t := time.Date(2024, 1, 17, 14, 30, 45, 0, time.UTC)
	for i := 0; i < b.N; i++ {
		_ = GetWeekStartFrom(t)
	}
}
