package utils

import (
	"time"
)

// time.go - границы календарных периодов для агрегации P/L
//
// Все границы считаются в UTC:
// - день: 00:00:00
// - неделя: понедельник 00:00:00 (ISO 8601)
// - месяц: 1-е число 00:00:00

// GetDayStartFrom возвращает начало дня (00:00:00 UTC) для указанного времени
//
//	// t: 2024-01-15 14:30:45 UTC
//	GetDayStartFrom(t) // 2024-01-15 00:00:00 UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStartFrom возвращает понедельник 00:00:00 UTC недели, содержащей t
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	// 0=Sunday ... 6=Saturday, приводим к ISO 8601 (1=Monday ... 7=Sunday)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStartFrom возвращает 1-е число месяца 00:00:00 UTC
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ============================================================
// Диапазоны
// ============================================================

// TimeRange представляет временной диапазон (границы включительно)
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// LookbackFrom возвращает диапазон [now - days, now]
// Используется для "total" P/L (по умолчанию 365 дней)
func LookbackFrom(now time.Time, days int) TimeRange {
	now = now.UTC()
	return TimeRange{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}
}

// FormatDuration форматирует продолжительность, отбрасывая доли секунды
//
//   - "45s"
//   - "5m30s"
//   - "2h15m0s"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Truncate(time.Second).String()
}
