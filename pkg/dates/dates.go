package dates

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Форматы, которые встречаются в ячейках реестра
var storedLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Форматы, которые пользователь вводит в боте
var inputLayouts = []string{
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
}

// Day обрезает время до полуночи в указанной зоне
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseStored разбирает дату из ячейки хранилища.
// Строки вида dd/mm/yyyy тоже принимаются, время отбрасывается.
func ParseStored(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range storedLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return Day(t, loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseInput разбирает дату, введенную человеком (ДД.ММ.ГГГГ и варианты)
func ParseInput(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format, use DD.MM.YYYY")
}

// Key возвращает yyyy-mm-dd для сравнения календарных дней
func Key(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Format возвращает дату в виде dd/mm/yyyy
func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006")
}

// DaysBetween считает целые календарные дни между двумя датами,
// не зависит от перехода на летнее время.
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// CeilDays округляет разницу вверх до целых суток
func CeilDays(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
