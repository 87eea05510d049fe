package model

import "time"

// ScheduleTemplate еженедельный шаблон пары: группа, предмет, преподаватель, время
type ScheduleTemplate struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	SubjectID int64     `json:"subject_id"`
	TeacherID *int64    `json:"teacher_id"`  // может быть не назначен
	DayOfWeek int       `json:"day_of_week"` // 0 = понедельник, 6 = воскресенье
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Room      string    `json:"room"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`

	// Дополнительные поля для удобства (не из таблицы шаблонов)
	SubjectName string `json:"subject_name,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
}

// Valid проверяет инварианты шаблона
func (t *ScheduleTemplate) Valid() bool {
	return t.DayOfWeek >= 0 && t.DayOfWeek <= 6 && t.StartTime.Before(t.EndTime)
}

// IsTaughtBy проверяет, что пара закреплена за преподавателем
func (t *ScheduleTemplate) IsTaughtBy(teacherID int64) bool {
	return t.TeacherID != nil && *t.TeacherID == teacherID
}
