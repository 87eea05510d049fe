package service

import (
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
)

// WindowPolicy правила окна посещаемости. Чистые функции без побочных эффектов:
// sweeper, ручные действия и отметки используют один и тот же экземпляр.
type WindowPolicy struct {
	OpenBefore    time.Duration
	CloseAfter    time.Duration
	LateThreshold time.Duration
	Location      *time.Location
}

// Window моменты окна конкретного занятия
type Window struct {
	OpenAt  time.Time
	StartAt time.Time
	LateAt  time.Time
	CloseAt time.Time
}

// NewWindowPolicy создаёт политику с порогами по умолчанию там, где они не заданы
func NewWindowPolicy(openBefore, closeAfter, lateThreshold time.Duration, loc *time.Location) WindowPolicy {
	if closeAfter <= 0 {
		closeAfter = 45 * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return WindowPolicy{
		OpenBefore:    openBefore,
		CloseAfter:    closeAfter,
		LateThreshold: lateThreshold,
		Location:      loc,
	}
}

// Window вычисляет окно шаблона на календарную дату
func (p WindowPolicy) Window(tpl *model.ScheduleTemplate, date time.Time) Window {
	start := tpl.StartTime.On(date, p.Location)
	return Window{
		OpenAt:  start.Add(-p.OpenBefore),
		StartAt: start,
		LateAt:  start.Add(p.LateThreshold),
		CloseAt: start.Add(p.CloseAfter),
	}
}

// ShouldBeOpen open_at <= now < close_at
func (p WindowPolicy) ShouldBeOpen(tpl *model.ScheduleTemplate, date, now time.Time) bool {
	w := p.Window(tpl, date)
	return !now.Before(w.OpenAt) && now.Before(w.CloseAt)
}

// ShouldBeClosed now >= close_at
func (p WindowPolicy) ShouldBeClosed(tpl *model.ScheduleTemplate, date, now time.Time) bool {
	return !now.Before(p.Window(tpl, date).CloseAt)
}

// Classify PRESENT до порога опоздания включительно, дальше LATE
func (p WindowPolicy) Classify(tpl *model.ScheduleTemplate, date, now time.Time) model.AttendanceStatus {
	if now.After(p.Window(tpl, date).LateAt) {
		return model.AttendanceStatusLate
	}
	return model.AttendanceStatusPresent
}

// Remaining сколько осталось до закрытия окна; ноль, если окно уже закрыто
func (p WindowPolicy) Remaining(tpl *model.ScheduleTemplate, date, now time.Time) time.Duration {
	left := p.Window(tpl, date).CloseAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Today календарная дата момента now в рабочей таймзоне
func (p WindowPolicy) Today(now time.Time) time.Time {
	return model.DateOf(now, p.Location)
}
