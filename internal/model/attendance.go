package model

import "time"

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// AttendanceStatuses все допустимые исходы в порядке отображения
var AttendanceStatuses = []AttendanceStatus{
	AttendanceStatusPresent,
	AttendanceStatusLate,
	AttendanceStatusAbsent,
	AttendanceStatusExcused,
}

// Valid проверяет, что статус из закрытого перечисления
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	}
	return false
}

// Attended засчитывается ли статус как посещение
func (s AttendanceStatus) Attended() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate:
		return true
	case AttendanceStatusAbsent, AttendanceStatusExcused:
		return false
	}
	return false
}

// Attendance отметка студента на занятии
type Attendance struct {
	ID        int64            `json:"id"`
	LessonID  int64            `json:"lesson_id"`
	StudentID int64            `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
	MarkedAt  time.Time        `json:"marked_at"`
	MarkedBy  ActorKind        `json:"marked_by"`
	MarkerID  *int64           `json:"marker_id"` // пользователь, поставивший отметку
	Note      string           `json:"note"`
}
