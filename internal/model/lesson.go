package model

import "time"

type LessonState string

const (
	LessonStatePending LessonState = "pending" // Создан, отметки не принимаются
	LessonStateOpen    LessonState = "open"    // Идёт приём отметок
	LessonStateClosed  LessonState = "closed"  // Закрыт окончательно
)

// Valid проверяет, что состояние из закрытого перечисления
func (s LessonState) Valid() bool {
	switch s {
	case LessonStatePending, LessonStateOpen, LessonStateClosed:
		return true
	}
	return false
}

// Lesson конкретное занятие: шаблон на календарную дату
type Lesson struct {
	ID         int64       `json:"id"`
	TemplateID int64       `json:"template_id"`
	Date       time.Time   `json:"date"` // полночь UTC
	State      LessonState `json:"state"`
	OpenedAt   *time.Time  `json:"opened_at"`
	ClosedAt   *time.Time  `json:"closed_at"`
	OpenedBy   *Actor      `json:"opened_by"`
	ClosedBy   *Actor      `json:"closed_by"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (l *Lesson) IsPending() bool {
	return l.State == LessonStatePending
}

func (l *Lesson) IsOpen() bool {
	return l.State == LessonStateOpen
}

func (l *Lesson) IsClosed() bool {
	return l.State == LessonStateClosed
}
