package model

import (
	"fmt"
	"time"
)

// TimeOfDay время начала/окончания пары без привязки к дате
type TimeOfDay struct {
	Hour   int `json:"hour"`   // 0-23
	Minute int `json:"minute"` // 0-59
}

// NewTimeOfDay создаёт время дня, проверяя диапазоны
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimeOfDay разбирает строку вида "09:00"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf возвращает время дня момента t в его локации
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes возвращает количество минут с полуночи
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before сравнивает два времени дня
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// On привязывает время дня к календарной дате в заданной локации
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DateOf отбрасывает время суток: календарная дата момента t в локации loc.
// Даты храним как полночь UTC, так их возвращает pgx для колонок DATE.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Weekday возвращает день недели 0 = понедельник ... 6 = воскресенье
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}
