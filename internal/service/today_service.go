package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// TodayService экраны "сегодня" для студента и преподавателя.
// Занятия создаются через LessonService, окна считает его WindowPolicy.
type TodayService struct {
	lessons    *LessonService
	templates  TemplateStore
	attendance AttendanceStore
	roster     RosterStore
	logger     *zap.Logger
}

func NewTodayService(
	lessons *LessonService,
	templates TemplateStore,
	attendance AttendanceStore,
	roster RosterStore,
	logger *zap.Logger,
) *TodayService {
	return &TodayService{
		lessons:    lessons,
		templates:  templates,
		attendance: attendance,
		roster:     roster,
		logger:     logger,
	}
}

// TodayLesson занятие на экране "сегодня"
type TodayLesson struct {
	Lesson        *model.Lesson           `json:"lesson"`
	Template      *model.ScheduleTemplate `json:"template"`
	IsMarked      bool                    `json:"is_marked"`
	MarkedStatus  *model.AttendanceStatus `json:"marked_status,omitempty"`
	CanMark       bool                    `json:"can_mark"`
	TimeRemaining *int                    `json:"time_remaining"` // минуты до закрытия окна
	MarkedCount   int                     `json:"attendance_count"`
	TotalStudents int                     `json:"total_students"`
}

// StudentToday занятия группы студента на сегодня
func (s *TodayService) StudentToday(ctx context.Context, studentID int64, now time.Time) ([]TodayLesson, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}

	policy := s.lessons.Policy()
	today := policy.Today(now)

	templates, err := s.templates.ListForGroup(ctx, student.GroupID, model.Weekday(today))
	if err != nil {
		return nil, fmt.Errorf("list group templates: %w", err)
	}

	total, err := s.groupSize(ctx, student.GroupID)
	if err != nil {
		return nil, err
	}

	result := make([]TodayLesson, 0, len(templates))
	for _, tpl := range templates {
		item, err := s.build(ctx, tpl, today, now, total)
		if err != nil {
			return nil, err
		}

		mark, err := s.attendance.Get(ctx, item.Lesson.ID, student.ID)
		if err != nil {
			return nil, fmt.Errorf("get attendance: %w", err)
		}
		if mark != nil {
			status := mark.Status
			item.IsMarked = true
			item.MarkedStatus = &status
		}
		item.CanMark = item.Lesson.IsOpen() && mark == nil && !policy.ShouldBeClosed(tpl, today, now)

		result = append(result, item)
	}

	return result, nil
}

// TeacherToday занятия преподавателя на сегодня
func (s *TodayService) TeacherToday(ctx context.Context, teacherID int64, now time.Time) ([]TodayLesson, error) {
	today := s.lessons.Policy().Today(now)

	templates, err := s.templates.ListForTeacher(ctx, teacherID, model.Weekday(today))
	if err != nil {
		return nil, fmt.Errorf("list teacher templates: %w", err)
	}

	sizes := make(map[int64]int)
	result := make([]TodayLesson, 0, len(templates))
	for _, tpl := range templates {
		total, ok := sizes[tpl.GroupID]
		if !ok {
			total, err = s.groupSize(ctx, tpl.GroupID)
			if err != nil {
				return nil, err
			}
			sizes[tpl.GroupID] = total
		}

		item, err := s.build(ctx, tpl, today, now, total)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	return result, nil
}

func (s *TodayService) build(ctx context.Context, tpl *model.ScheduleTemplate, today, now time.Time, total int) (TodayLesson, error) {
	lesson, err := s.lessons.EnsureOccurrence(ctx, tpl, today)
	if err != nil {
		return TodayLesson{}, fmt.Errorf("ensure lesson for template %d: %w", tpl.ID, err)
	}

	marks, err := s.attendance.ListByLesson(ctx, lesson.ID)
	if err != nil {
		return TodayLesson{}, fmt.Errorf("list attendance: %w", err)
	}

	item := TodayLesson{
		Lesson:        lesson,
		Template:      tpl,
		MarkedCount:   len(marks),
		TotalStudents: total,
	}

	policy := s.lessons.Policy()
	if lesson.IsOpen() && !policy.ShouldBeClosed(tpl, today, now) {
		minutes := int(policy.Remaining(tpl, today, now) / time.Minute)
		item.TimeRemaining = &minutes
	}

	return item, nil
}

func (s *TodayService) groupSize(ctx context.Context, groupID int64) (int, error) {
	students, err := s.roster.ListStudentsByGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	return len(students), nil
}
