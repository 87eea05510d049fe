package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// ReportService отчёты по посещаемости. Неотмеченные студенты закрытого
// занятия считаются отсутствующими; это вычисляется при чтении и не хранится.
type ReportService struct {
	templates  TemplateStore
	lessons    LessonStore
	attendance AttendanceStore
	roster     RosterStore
	logger     *zap.Logger
}

func NewReportService(
	templates TemplateStore,
	lessons LessonStore,
	attendance AttendanceStore,
	roster RosterStore,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		templates:  templates,
		lessons:    lessons,
		attendance: attendance,
		roster:     roster,
		logger:     logger,
	}
}

// RosterEntry строка ведомости занятия
type RosterEntry struct {
	Student   *model.Student          `json:"student"`
	Status    *model.AttendanceStatus `json:"status"` // nil: ещё не отмечен, занятие не закрыто
	Defaulted bool                    `json:"defaulted"`
	MarkedAt  *time.Time              `json:"marked_at"`
	MarkedBy  model.ActorKind         `json:"marked_by,omitempty"`
	Note      string                  `json:"note,omitempty"`
}

// Roster ведомость занятия
type Roster struct {
	Lesson   *model.Lesson                  `json:"lesson"`
	Template *model.ScheduleTemplate        `json:"template"`
	Entries  []RosterEntry                  `json:"entries"`
	Counts   map[model.AttendanceStatus]int `json:"counts"`
}

// LessonRoster отметка каждого студента группы или вычисленное ABSENT
func (s *ReportService) LessonRoster(ctx context.Context, lessonID int64) (*Roster, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, notFound("lesson", lessonID)
	}

	tpl, err := s.templates.GetByID(ctx, lesson.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return nil, notFound("template", lesson.TemplateID)
	}

	students, err := s.roster.ListStudentsByGroup(ctx, tpl.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	marks, err := s.attendance.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	byStudent := make(map[int64]*model.Attendance, len(marks))
	for _, m := range marks {
		byStudent[m.StudentID] = m
	}

	roster := &Roster{
		Lesson:   lesson,
		Template: tpl,
		Entries:  make([]RosterEntry, 0, len(students)),
		Counts:   make(map[model.AttendanceStatus]int, len(model.AttendanceStatuses)),
	}
	for _, st := range model.AttendanceStatuses {
		roster.Counts[st] = 0
	}

	for _, student := range students {
		entry := RosterEntry{Student: student}
		if mark, ok := byStudent[student.ID]; ok {
			status := mark.Status
			markedAt := mark.MarkedAt
			entry.Status = &status
			entry.MarkedAt = &markedAt
			entry.MarkedBy = mark.MarkedBy
			entry.Note = mark.Note
		} else if lesson.IsClosed() {
			absent := model.AttendanceStatusAbsent
			entry.Status = &absent
			entry.Defaulted = true
		}
		if entry.Status != nil {
			roster.Counts[*entry.Status]++
		}
		roster.Entries = append(roster.Entries, entry)
	}

	return roster, nil
}

// StudentStats сводка посещаемости студента по закрытым занятиям его группы
type StudentStats struct {
	TotalLessons int                            `json:"total_lessons"`
	Counts       map[model.AttendanceStatus]int `json:"counts"`
	Percentage   float64                        `json:"attendance_percentage"`
}

// StudentStats считает статистику за период [from, to]
func (s *ReportService) StudentStats(ctx context.Context, studentID int64, from, to time.Time) (*StudentStats, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}

	lessons, err := s.closedLessons(ctx, student.GroupID, from, to)
	if err != nil {
		return nil, err
	}

	marks, err := s.studentMarks(ctx, studentID, lessons)
	if err != nil {
		return nil, err
	}

	stats := &StudentStats{
		TotalLessons: len(lessons),
		Counts:       make(map[model.AttendanceStatus]int, len(model.AttendanceStatuses)),
	}
	for _, st := range model.AttendanceStatuses {
		stats.Counts[st] = 0
	}

	attended := 0
	for _, l := range lessons {
		status := model.AttendanceStatusAbsent
		if mark, ok := marks[l.ID]; ok {
			status = mark.Status
		}
		stats.Counts[status]++
		if status.Attended() {
			attended++
		}
	}

	stats.Percentage = percent(attended, stats.TotalLessons)

	return stats, nil
}

// HistoryEntry запись истории посещаемости студента
type HistoryEntry struct {
	LessonID    int64                  `json:"lesson_id"`
	Date        time.Time              `json:"date"`
	SubjectName string                 `json:"subject_name"`
	StartTime   string                 `json:"start_time"`
	Status      model.AttendanceStatus `json:"status"`
	Defaulted   bool                   `json:"defaulted"`
	MarkedAt    *time.Time             `json:"marked_at"`
}

// StudentHistory последние отметки студента, новые сверху. В историю попадают
// закрытые занятия (без отметки как ABSENT) и открытые, где отметка уже есть.
func (s *ReportService) StudentHistory(ctx context.Context, studentID int64, from, to time.Time, limit int) ([]HistoryEntry, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("history limit %d: %w", limit, ErrInvalidInput)
	}

	lessons, err := s.lessons.ListForGroup(ctx, student.GroupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list group lessons: %w", err)
	}

	marks, err := s.studentMarks(ctx, studentID, lessons)
	if err != nil {
		return nil, err
	}

	templates := make(map[int64]*model.ScheduleTemplate)
	history := make([]HistoryEntry, 0, len(lessons))
	for _, l := range lessons {
		mark, marked := marks[l.ID]
		if !marked && !l.IsClosed() {
			continue
		}

		tpl, err := s.template(ctx, templates, l.TemplateID)
		if err != nil {
			return nil, err
		}

		entry := HistoryEntry{LessonID: l.ID, Date: l.Date, Status: model.AttendanceStatusAbsent, Defaulted: true}
		if tpl != nil {
			entry.SubjectName = tpl.SubjectName
			entry.StartTime = tpl.StartTime.String()
		}
		if marked {
			markedAt := mark.MarkedAt
			entry.Status = mark.Status
			entry.Defaulted = false
			entry.MarkedAt = &markedAt
		}
		history = append(history, entry)
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].Date.Equal(history[j].Date) {
			return history[i].Date.After(history[j].Date)
		}
		return history[i].StartTime > history[j].StartTime
	})
	if len(history) > limit {
		history = history[:limit]
	}

	return history, nil
}

// SubjectStat посещаемость студента по одному предмету
type SubjectStat struct {
	SubjectID    int64                          `json:"subject_id"`
	SubjectName  string                         `json:"subject_name"`
	TotalLessons int                            `json:"total_lessons"`
	Attended     int                            `json:"attended"`
	Counts       map[model.AttendanceStatus]int `json:"counts"`
	Percentage   float64                        `json:"attendance_percentage"`
}

// SubjectStats разбивка статистики студента по предметам закрытых занятий
func (s *ReportService) SubjectStats(ctx context.Context, studentID int64, from, to time.Time) ([]*SubjectStat, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}

	lessons, err := s.closedLessons(ctx, student.GroupID, from, to)
	if err != nil {
		return nil, err
	}

	marks, err := s.studentMarks(ctx, studentID, lessons)
	if err != nil {
		return nil, err
	}

	templates := make(map[int64]*model.ScheduleTemplate)
	bySubject := make(map[int64]*SubjectStat)
	for _, l := range lessons {
		tpl, err := s.template(ctx, templates, l.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			continue
		}

		stat, ok := bySubject[tpl.SubjectID]
		if !ok {
			stat = &SubjectStat{
				SubjectID:   tpl.SubjectID,
				SubjectName: tpl.SubjectName,
				Counts:      make(map[model.AttendanceStatus]int, len(model.AttendanceStatuses)),
			}
			for _, st := range model.AttendanceStatuses {
				stat.Counts[st] = 0
			}
			bySubject[tpl.SubjectID] = stat
		}

		status := model.AttendanceStatusAbsent
		if mark, ok := marks[l.ID]; ok {
			status = mark.Status
		}
		stat.TotalLessons++
		stat.Counts[status]++
		if status.Attended() {
			stat.Attended++
		}
	}

	stats := make([]*SubjectStat, 0, len(bySubject))
	for _, stat := range bySubject {
		stat.Percentage = percent(stat.Attended, stat.TotalLessons)
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SubjectName == stats[j].SubjectName {
			return stats[i].SubjectID < stats[j].SubjectID
		}
		return stats[i].SubjectName < stats[j].SubjectName
	})

	return stats, nil
}

func (s *ReportService) studentMarks(ctx context.Context, studentID int64, lessons []*model.Lesson) (map[int64]*model.Attendance, error) {
	ids := make([]int64, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}

	list, err := s.attendance.ListByStudent(ctx, studentID, ids)
	if err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}

	marks := make(map[int64]*model.Attendance, len(list))
	for _, m := range list {
		marks[m.LessonID] = m
	}
	return marks, nil
}

func (s *ReportService) template(ctx context.Context, cache map[int64]*model.ScheduleTemplate, id int64) (*model.ScheduleTemplate, error) {
	if tpl, ok := cache[id]; ok {
		return tpl, nil
	}
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	cache[id] = tpl
	return tpl, nil
}

// percent доля посещённых с одним знаком после запятой
func percent(attended, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(attended) / float64(total) * 100
	return float64(int(pct*10+0.5)) / 10
}

// GroupReportLesson колонка отчёта по группе
type GroupReportLesson struct {
	LessonID    int64     `json:"lesson_id"`
	Date        time.Time `json:"date"`
	SubjectName string    `json:"subject_name"`
	StartTime   string    `json:"start_time"`
}

// GroupReportRow строка отчёта: студент и его статусы по колонкам
type GroupReportRow struct {
	Student  *model.Student           `json:"student"`
	Statuses []model.AttendanceStatus `json:"statuses"`
}

// GroupReport матрица студенты × закрытые занятия
type GroupReport struct {
	GroupID int64               `json:"group_id"`
	From    time.Time           `json:"from"`
	To      time.Time           `json:"to"`
	Lessons []GroupReportLesson `json:"lessons"`
	Rows    []GroupReportRow    `json:"rows"`
}

// GroupReport строит отчёт по группе за период
func (s *ReportService) GroupReport(ctx context.Context, groupID int64, from, to time.Time) (*GroupReport, error) {
	students, err := s.roster.ListStudentsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	lessons, err := s.closedLessons(ctx, groupID, from, to)
	if err != nil {
		return nil, err
	}

	report := &GroupReport{
		GroupID: groupID,
		From:    from,
		To:      to,
		Lessons: make([]GroupReportLesson, 0, len(lessons)),
		Rows:    make([]GroupReportRow, 0, len(students)),
	}

	templates := make(map[int64]*model.ScheduleTemplate)
	marks := make(map[int64]map[int64]model.AttendanceStatus, len(lessons))
	for _, l := range lessons {
		tpl, err := s.template(ctx, templates, l.TemplateID)
		if err != nil {
			return nil, err
		}

		col := GroupReportLesson{LessonID: l.ID, Date: l.Date}
		if tpl != nil {
			col.SubjectName = tpl.SubjectName
			col.StartTime = tpl.StartTime.String()
		}
		report.Lessons = append(report.Lessons, col)

		list, err := s.attendance.ListByLesson(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("list attendance: %w", err)
		}
		byStudent := make(map[int64]model.AttendanceStatus, len(list))
		for _, m := range list {
			byStudent[m.StudentID] = m.Status
		}
		marks[l.ID] = byStudent
	}

	for _, student := range students {
		row := GroupReportRow{Student: student, Statuses: make([]model.AttendanceStatus, 0, len(lessons))}
		for _, l := range lessons {
			status, ok := marks[l.ID][student.ID]
			if !ok {
				status = model.AttendanceStatusAbsent
			}
			row.Statuses = append(row.Statuses, status)
		}
		report.Rows = append(report.Rows, row)
	}

	s.logger.Debug("Group report built",
		zap.Int64("group_id", groupID),
		zap.Int("lessons", len(lessons)),
		zap.Int("students", len(students)),
	)

	return report, nil
}

func (s *ReportService) closedLessons(ctx context.Context, groupID int64, from, to time.Time) ([]*model.Lesson, error) {
	all, err := s.lessons.ListForGroup(ctx, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list group lessons: %w", err)
	}

	closed := make([]*model.Lesson, 0, len(all))
	for _, l := range all {
		if l.IsClosed() {
			closed = append(closed, l)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		if closed[i].Date.Equal(closed[j].Date) {
			return closed[i].ID < closed[j].ID
		}
		return closed[i].Date.Before(closed[j].Date)
	})
	return closed, nil
}
