package model

import (
	"time"

	"github.com/google/uuid"
)

type LessonEventKind string

const (
	LessonEventCreated   LessonEventKind = "lesson.created"
	LessonEventOpened    LessonEventKind = "lesson.opened"
	LessonEventClosed    LessonEventKind = "lesson.closed"
	LessonEventMarked    LessonEventKind = "attendance.marked"
	LessonEventCorrected LessonEventKind = "attendance.corrected"
)

// LessonEvent событие жизненного цикла занятия для внешних подписчиков
type LessonEvent struct {
	ID         uuid.UUID        `json:"id"`
	Kind       LessonEventKind  `json:"kind"`
	LessonID   int64            `json:"lesson_id"`
	TemplateID int64            `json:"template_id"`
	Actor      Actor            `json:"actor"`
	StudentID  *int64           `json:"student_id,omitempty"`
	Status     AttendanceStatus `json:"status,omitempty"`
	At         time.Time        `json:"at"`
}

// NewLessonEvent создаёт событие по занятию
func NewLessonEvent(kind LessonEventKind, lesson *Lesson, actor Actor, at time.Time) LessonEvent {
	return LessonEvent{
		ID:         uuid.New(),
		Kind:       kind,
		LessonID:   lesson.ID,
		TemplateID: lesson.TemplateID,
		Actor:      actor,
		At:         at,
	}
}
