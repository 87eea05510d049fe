package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
)

// Хранилища, с которыми работают сервисы. Реализации в пакете repository;
// отсутствующая запись возвращается как nil без ошибки.

// TemplateStore шаблоны расписания (только чтение)
type TemplateStore interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error)
	// ListStartingBetween активные шаблоны дня недели с началом в [from, to]
	ListStartingBetween(ctx context.Context, weekday int, from, to model.TimeOfDay) ([]*model.ScheduleTemplate, error)
	ListActiveByWeekday(ctx context.Context, weekday int) ([]*model.ScheduleTemplate, error)
	ListForGroup(ctx context.Context, groupID int64, weekday int) ([]*model.ScheduleTemplate, error)
	ListForTeacher(ctx context.Context, teacherID int64, weekday int) ([]*model.ScheduleTemplate, error)
}

// LessonStore занятия. Open/Close выполняют compare-and-set по состоянию
// и возвращают nil, если предусловие уже не выполняется.
type LessonStore interface {
	Ensure(ctx context.Context, templateID int64, date time.Time) (lesson *model.Lesson, created bool, err error)
	GetByID(ctx context.Context, id int64) (*model.Lesson, error)
	Open(ctx context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error)
	Close(ctx context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error)
	ListOpen(ctx context.Context) ([]*model.Lesson, error)
	ListForGroup(ctx context.Context, groupID int64, from, to time.Time) ([]*model.Lesson, error)
}

// AttendanceStore журнал отметок. Запись разрешена только пока занятие
// находится в требуемом состоянии; проверка и запись атомарны.
type AttendanceStore interface {
	// InsertIfAbsent создаёт отметку, если её ещё нет; false если не создана
	InsertIfAbsent(ctx context.Context, mark *model.Attendance, lessonState model.LessonState) (bool, error)
	// Upsert создаёт или перезаписывает отметку; false если занятие не в состоянии lessonState
	Upsert(ctx context.Context, mark *model.Attendance, lessonState model.LessonState) (bool, error)
	Get(ctx context.Context, lessonID, studentID int64) (*model.Attendance, error)
	ListByLesson(ctx context.Context, lessonID int64) ([]*model.Attendance, error)
	ListByStudent(ctx context.Context, studentID int64, lessonIDs []int64) ([]*model.Attendance, error)
}

// RosterStore студенты и преподаватели
type RosterStore interface {
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	GetStudentByUserID(ctx context.Context, userID int64) (*model.Student, error)
	GetTeacherByUserID(ctx context.Context, userID int64) (*model.Teacher, error)
	ListStudentsByGroup(ctx context.Context, groupID int64) ([]*model.Student, error)
}

// EventSink подписчик на события жизненного цикла
type EventSink interface {
	Publish(ctx context.Context, event model.LessonEvent) error
}
