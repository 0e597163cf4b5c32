// Package pnl считает реализованный P/L по календарным периодам.
//
// Все функции чистые: текущее время передаётся явно, состояние не хранится.
package pnl

import (
	"time"

	"github.com/shopspring/decimal"

	"collector/internal/terminal"
	"collector/pkg/utils"
)

// DefaultLookbackDays - окно для "total" P/L
const DefaultLookbackDays = 365

// Windows - начала периодов агрегации (UTC)
type Windows struct {
	Now        time.Time
	DayStart   time.Time // 00:00 текущего дня
	WeekStart  time.Time // понедельник 00:00
	MonthStart time.Time // 1-е число 00:00
	TotalStart time.Time // now - lookback
}

// Result - реализованный P/L по периодам
type Result struct {
	Day   decimal.Decimal
	Week  decimal.Decimal
	Month decimal.Decimal
	Total decimal.Decimal
}

// WindowsAt вычисляет границы периодов для момента now
func WindowsAt(now time.Time, lookbackDays int) Windows {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	now = now.UTC()
	return Windows{
		Now:        now,
		DayStart:   utils.GetDayStartFrom(now),
		WeekStart:  utils.GetWeekStartFrom(now),
		MonthStart: utils.GetMonthStartFrom(now),
		TotalStart: utils.LookbackFrom(now, lookbackDays).Start,
	}
}

// qualifies - торговая сделка, фиксирующая результат, со временем в [from, to]
func qualifies(d *terminal.Deal, from, to time.Time) bool {
	if d == nil || d.Time.IsZero() {
		return false
	}
	if !d.Type.IsTrade() || !d.Entry.Realizes() {
		return false
	}
	return !d.Time.Before(from) && !d.Time.After(to)
}

// Aggregate раскладывает сделки по периодам за один проход
//
// Пополнения, выводы, кредит и прочие балансовые операции не учитываются,
// как и сделки открытия. Total здесь считается по тем же сделкам; если
// история за весь lookback загружена отдельно, используйте Realized.
func Aggregate(deals []*terminal.Deal, w Windows) Result {
	res := Result{
		Day:   decimal.Zero,
		Week:  decimal.Zero,
		Month: decimal.Zero,
		Total: decimal.Zero,
	}

	for _, d := range deals {
		if !qualifies(d, w.TotalStart, w.Now) {
			continue
		}
		v := d.Result()

		res.Total = res.Total.Add(v)
		if d.Time.Before(w.MonthStart) {
			continue
		}

		// День и неделя считаются только внутри месяца: если неделя
		// началась в прошлом месяце, её сделки до 1-го числа не входят.
		res.Month = res.Month.Add(v)
		if !d.Time.Before(w.WeekStart) {
			res.Week = res.Week.Add(v)
		}
		if !d.Time.Before(w.DayStart) {
			res.Day = res.Day.Add(v)
		}
	}

	return res
}

// Realized суммирует реализованный P/L за [from, to]
func Realized(deals []*terminal.Deal, from, to time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deals {
		if qualifies(d, from, to) {
			sum = sum.Add(d.Result())
		}
	}
	return sum
}

// OpenPL суммирует плавающий результат открытых позиций
func OpenPL(positions []*terminal.Position) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range positions {
		if p != nil {
			sum = sum.Add(p.Profit)
		}
	}
	return sum
}
