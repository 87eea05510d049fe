package formatting

import "github.com/Freeeeeet/attendance_bot/internal/model"

// StatusDisplay emoji и текст статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetAttendanceStatusDisplay возвращает emoji и текст для отметки
func GetAttendanceStatusDisplay(status model.AttendanceStatus) StatusDisplay {
	displays := map[model.AttendanceStatus]StatusDisplay{
		model.AttendanceStatusPresent: {"✅", "Присутствовал"},
		model.AttendanceStatusLate:    {"🕐", "Опоздал"},
		model.AttendanceStatusAbsent:  {"❌", "Отсутствовал"},
		model.AttendanceStatusExcused: {"📄", "Уважительная причина"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}

// GetLessonStateDisplay возвращает emoji и текст для состояния занятия
func GetLessonStateDisplay(state model.LessonState) StatusDisplay {
	displays := map[model.LessonState]StatusDisplay{
		model.LessonStatePending: {"⏳", "Ещё не началось"},
		model.LessonStateOpen:    {"🟢", "Идёт отметка"},
		model.LessonStateClosed:  {"⚫️", "Завершено"},
	}

	if display, ok := displays[state]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}
