package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/repository/memory"
	"go.uber.org/zap"
)

var (
	_ TemplateStore   = (*memory.Templates)(nil)
	_ LessonStore     = (*memory.Lessons)(nil)
	_ AttendanceStore = (*memory.Attendance)(nil)
	_ RosterStore     = (*memory.Roster)(nil)
	_ UserStore       = (*memory.Users)(nil)
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.LessonEvent
}

func (r *recordingSink) Publish(_ context.Context, event model.LessonEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) kinds() []model.LessonEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LessonEventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recordingSink) count(kind model.LessonEventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *memory.Store
	events  *recordingSink
	lessons *LessonService
	reports *ReportService
	today   *TodayService

	tpl          *model.ScheduleTemplate
	teacherUser  *model.User
	teacher      *model.Teacher
	otherTeacher *model.User
	admin        *model.User
	studentUser  *model.User
	student      *model.Student
	classmate    *model.Student
	outsider     *model.Student
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{store: store, events: &recordingSink{}}

	f.teacherUser = store.AddUser(model.User{TelegramID: 100, FullName: "Teacher", Role: model.UserRoleTeacher})
	f.teacher = store.AddTeacher(model.Teacher{UserID: f.teacherUser.ID})

	f.otherTeacher = store.AddUser(model.User{TelegramID: 101, FullName: "Other", Role: model.UserRoleTeacher})
	store.AddTeacher(model.Teacher{UserID: f.otherTeacher.ID})

	f.admin = store.AddUser(model.User{TelegramID: 102, FullName: "Admin", Role: model.UserRoleAdmin})

	f.studentUser = store.AddUser(model.User{TelegramID: 200, FullName: "Student"})
	f.student = store.AddStudent(model.Student{UserID: f.studentUser.ID, GroupID: 1, StudentCode: "S-1"})

	classmateUser := store.AddUser(model.User{TelegramID: 201, FullName: "Classmate"})
	f.classmate = store.AddStudent(model.Student{UserID: classmateUser.ID, GroupID: 1, StudentCode: "S-2"})

	outsiderUser := store.AddUser(model.User{TelegramID: 202, FullName: "Outsider"})
	f.outsider = store.AddStudent(model.Student{UserID: outsiderUser.ID, GroupID: 2, StudentCode: "S-3"})

	teacherID := f.teacher.ID
	f.tpl = store.AddTemplate(model.ScheduleTemplate{
		GroupID:     1,
		SubjectID:   1,
		TeacherID:   &teacherID,
		DayOfWeek:   0,
		StartTime:   model.TimeOfDay{Hour: 9},
		EndTime:     model.TimeOfDay{Hour: 10, Minute: 20},
		Room:        "101",
		IsActive:    true,
		SubjectName: "Math",
	})

	logger := zap.NewNop()
	f.lessons = NewLessonService(store.Templates(), store.Lessons(), store.Attendance(), store.Roster(), testPolicy(), f.events, logger)
	f.reports = NewReportService(store.Templates(), store.Lessons(), store.Attendance(), store.Roster(), logger)
	f.today = NewTodayService(f.lessons, store.Templates(), store.Attendance(), store.Roster(), logger)

	return f
}

func (f *fixture) teacherActor() model.Actor {
	return model.TeacherActor(f.teacherUser.ID)
}

func (f *fixture) selfActor() model.Actor {
	return model.SelfActor(f.studentUser.ID)
}

// openLesson создаёт занятие на понедельник и открывает его преподавателем
func (f *fixture) openLesson(t *testing.T, now model.TimeOfDay) *model.Lesson {
	t.Helper()
	ctx := context.Background()

	lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	opened, err := f.lessons.Open(ctx, lesson, f.teacherActor(), at(now.Hour, now.Minute))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return opened
}

func outcome(s model.AttendanceStatus) *model.AttendanceStatus {
	return &s
}
